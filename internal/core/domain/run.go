package domain

// TrainRequest locates the inputs and outputs of a supervised training run.
// UnlabeledPath is optional; when set its building types join the encoding.
type TrainRequest struct {
	RunID         string
	TrainPath     string
	TestPath      string
	UnlabeledPath string
	ArtifactPath  string
	ReportPath    string
}

// LabelRequest locates the inputs and outputs of a scoring run. Without
// Retrain the models come from ArtifactPath; with it they are fit on
// TrainPath (and TestPath, when set, joins the encoding).
type LabelRequest struct {
	RunID         string
	UnlabeledPath string
	OutputPath    string
	ArtifactPath  string
	Retrain       bool
	TrainPath     string
	TestPath      string
	// Threshold overrides the calibrated threshold when set.
	Threshold *float64
}

type LabelSummary struct {
	RunID      string
	OutputPath string
	Records    int
	PropagationResult
}

type EnrichmentResult struct {
	Records      int
	Addresses    int
	Failed       int
	Annotated    int
	WithBusiness int
}
