package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/OK-cpu-beep/Energohunt/internal/core/calibration"
	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
	"github.com/OK-cpu-beep/Energohunt/internal/core/encoding"
	"github.com/OK-cpu-beep/Energohunt/internal/core/ensemble"
	"github.com/OK-cpu-beep/Energohunt/internal/core/features"
	"github.com/OK-cpu-beep/Energohunt/internal/core/imputation"
	"github.com/OK-cpu-beep/Energohunt/internal/core/ports"
)

// encodingOrder fixes the partition order the category encoding is fit in.
var encodingOrder = []domain.Partition{domain.PartitionTrain, domain.PartitionTest, domain.PartitionUnlabeled}

const topThresholds = 10

// Dependencies are the collaborators shared by the training and labeling
// pipelines. Reports and Publisher are optional.
type Dependencies struct {
	Corpora   ports.CorpusStore
	Artifacts ports.ArtifactStore
	Codec     ports.ModelCodec
	Trainers  []ports.ClassifierTrainer
	Reports   ports.ReportWriter
	Publisher ports.EventPublisher
	Extractor *features.Extractor
	Grid      calibration.Grid
	Observer  ports.PipelineObserver
	Logger    *slog.Logger

	StageTimeout time.Duration
	Now          func() time.Time
}

func (d Dependencies) normalize() Dependencies {
	if d.Extractor == nil {
		d.Extractor = features.NewExtractor(features.Options{})
	}
	if d.Grid.Steps == 0 {
		d.Grid = calibration.DefaultGrid()
	}
	if d.Observer == nil {
		d.Observer = noopObserver{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

type stages struct {
	deps Dependencies
}

func (s stages) pipeline(list ...Stage) *Pipeline {
	return NewPipeline(s.deps.Observer, s.deps.Logger, s.deps.StageTimeout, list...)
}

// load reads every partition with a non-empty path. A missing file of an
// optional partition is skipped with a warning.
func (s stages) load(paths map[domain.Partition]string, optional ...domain.Partition) Stage {
	return Stage{Name: StageLoad, Run: func(ctx context.Context, state *RunState) error {
		for _, partition := range encodingOrder {
			path := paths[partition]
			if path == "" {
				continue
			}
			corpus, err := s.deps.Corpora.Load(ctx, path, partition)
			if domain.IsKind(err, domain.ErrNotFound) && slices.Contains(optional, partition) {
				state.warn(err)
				s.deps.Logger.Warn("corpus_skipped", "run_id", state.RunID, "partition", partition, "path", path, "error", err)
				continue
			}
			if err != nil {
				return fmt.Errorf("load %s corpus: %w", partition, err)
			}
			state.Corpora[partition] = corpus
			s.deps.Observer.AddRecords(partition, corpus.Len())
			s.deps.Logger.Info("corpus_loaded", "run_id", state.RunID, "partition", partition, "path", path, "records", corpus.Len())
		}
		return nil
	}}
}

// extract builds feature tables. Labeled partitions abort on the first bad
// record; the unlabeled one skips it with a warning.
func (s stages) extract() Stage {
	return Stage{Name: StageExtract, Run: func(_ context.Context, state *RunState) error {
		for _, partition := range encodingOrder {
			corpus, ok := state.Corpora[partition]
			if !ok {
				continue
			}
			if partition != domain.PartitionUnlabeled {
				table, err := s.deps.Extractor.BuildLabeled(corpus)
				if err != nil {
					return err
				}
				state.Tables[partition] = table
				continue
			}

			table, warnings := s.deps.Extractor.BuildUnlabeled(corpus)
			if warnings != nil && len(warnings.Errors) > 0 {
				s.deps.Observer.AddSchemaErrors(len(warnings.Errors))
				for _, w := range warnings.Errors {
					state.warn(w)
					s.deps.Logger.Warn("record_skipped", "run_id", state.RunID, "partition", partition, "error", w)
				}
			}
			state.Tables[partition] = table
		}
		return nil
	}}
}

func (s stages) encode() Stage {
	return Stage{Name: StageEncode, Run: func(_ context.Context, state *RunState) error {
		if state.Encoding == nil {
			values := make([][]string, 0, len(encodingOrder))
			for _, partition := range encodingOrder {
				if table, ok := state.Tables[partition]; ok {
					values = append(values, table.BuildingTypes())
				}
			}
			state.Encoding = encoding.Fit(values...)
		}
		for _, partition := range encodingOrder {
			table, ok := state.Tables[partition]
			if !ok {
				continue
			}
			unknown := state.Encoding.Apply(table)
			if len(unknown) == 0 {
				continue
			}
			s.deps.Observer.AddUnknownCategories(len(unknown))
			for _, category := range unknown {
				state.warn(domain.WrapError(domain.ErrUnknownCategory, "encode "+string(partition), fmt.Errorf("building type %q", category)))
				s.deps.Logger.Warn("unknown_category", "run_id", state.RunID, "partition", partition, "building_type", category, "code", encoding.UnknownCode)
			}
		}
		return nil
	}}
}

func (s stages) impute() Stage {
	return Stage{Name: StageImpute, Run: func(_ context.Context, state *RunState) error {
		if state.Imputer == nil {
			train, ok := state.Tables[domain.PartitionTrain]
			if !ok {
				return domain.WrapError(domain.ErrImputation, "fit imputer", errors.New("no training partition"))
			}
			imputer, err := imputation.Fit(train)
			if err != nil {
				return err
			}
			state.Imputer = imputer
		}
		for partition, table := range state.Tables {
			matrix, err := state.Imputer.Transform(table)
			if err != nil {
				return err
			}
			state.Matrices[partition] = matrix
		}
		return nil
	}}
}

func (s stages) train() Stage {
	return Stage{Name: StageTrain, Run: func(ctx context.Context, state *RunState) error {
		table, ok := state.Tables[domain.PartitionTrain]
		if !ok {
			return domain.WrapError(domain.ErrTraining, "train ensemble", errors.New("no training partition"))
		}
		model, err := ensemble.Train(ctx, s.deps.Trainers, state.Matrices[domain.PartitionTrain], table.Labels)
		if err != nil {
			return err
		}
		state.Ensemble = model
		s.deps.Logger.Info("ensemble_trained", "run_id", state.RunID, "families", model.Families(), "rows", table.Len())
		return nil
	}}
}

func (s stages) calibrate() Stage {
	return Stage{Name: StageCalibrate, Run: func(ctx context.Context, state *RunState) error {
		table, ok := state.Tables[domain.PartitionTest]
		if !ok {
			return domain.WrapError(domain.ErrInvalidInput, "calibrate", errors.New("no test partition"))
		}
		probs, err := state.Ensemble.PredictProba(ctx, state.Matrices[domain.PartitionTest])
		if err != nil {
			return err
		}
		report, err := calibration.Scan(probs, table.Labels, s.deps.Grid)
		if err != nil {
			return err
		}
		final, err := calibration.Classify(probs, table.Labels, report.BestThreshold)
		if err != nil {
			return err
		}

		for rank, row := range calibration.Top(report, topThresholds) {
			s.deps.Logger.Info("threshold_candidate", "run_id", state.RunID, "rank", rank+1,
				"threshold", row.Threshold, "balanced_accuracy", row.BalancedAccuracy,
				"recall_false", row.RecallFalse, "recall_true", row.RecallTrue)
		}
		best := report.Best()
		s.deps.Logger.Info("threshold_selected", "run_id", state.RunID, "threshold", report.BestThreshold,
			"balanced_accuracy", best.BalancedAccuracy, "accuracy", final.Accuracy)
		s.deps.Observer.SetCalibration(report.BestThreshold, best.BalancedAccuracy)

		state.Thresholds = report
		state.Threshold = report.BestThreshold
		state.Evaluation = &domain.EvaluationReport{
			RunID:      state.RunID,
			Thresholds: report,
			Final:      final,
			CreatedAt:  s.deps.Now(),
		}
		return nil
	}}
}

func (s stages) persist(path string) Stage {
	return Stage{Name: StagePersist, Run: func(ctx context.Context, state *RunState) error {
		models := state.Ensemble.Models()
		states := make([]domain.ModelState, 0, len(models))
		for _, m := range models {
			ms, err := s.deps.Codec.Encode(m)
			if err != nil {
				return err
			}
			states = append(states, ms)
		}
		season := s.deps.Extractor.Season()
		set := &domain.ArtifactSet{
			RunID:        state.RunID,
			CreatedAt:    s.deps.Now(),
			Schema:       s.deps.Extractor.Schema(),
			SummerMonths: slices.Clone(season.Summer),
			WinterMonths: slices.Clone(season.Winter),
			Categories:   state.Encoding.Categories(),
			Medians:      state.Imputer.Medians(),
			Models:       states,
			Threshold:    state.Threshold,
		}
		if err := s.deps.Artifacts.Save(ctx, path, set); err != nil {
			return err
		}
		state.Artifact = set
		s.deps.Logger.Info("artifact_saved", "run_id", state.RunID, "path", path, "threshold", set.Threshold, "categories", len(set.Categories))
		return nil
	}}
}

func (s stages) report(path string) Stage {
	return Stage{Name: StageReport, Run: func(ctx context.Context, state *RunState) error {
		if s.deps.Reports == nil || path == "" || state.Evaluation == nil {
			return nil
		}
		if err := s.deps.Reports.WriteEvaluation(ctx, path, *state.Evaluation); err != nil {
			return fmt.Errorf("write evaluation report: %w", err)
		}
		return nil
	}}
}

// restore loads a bundle and rebuilds encoding, imputer and ensemble from it.
// The bundle must describe the same features the extractor produces.
func (s stages) restore(path string) Stage {
	return Stage{Name: StageRestore, Run: func(ctx context.Context, state *RunState) error {
		set, err := s.deps.Artifacts.Load(ctx, path)
		if err != nil {
			return err
		}
		if !set.Schema.Equal(s.deps.Extractor.Schema()) {
			return domain.WrapError(domain.ErrArtifact, "restore artifact",
				fmt.Errorf("bundle schema %v does not match extractor schema %v", set.Schema, s.deps.Extractor.Schema()))
		}
		season := s.deps.Extractor.Season()
		if !slices.Equal(set.SummerMonths, season.Summer) || !slices.Equal(set.WinterMonths, season.Winter) {
			return domain.WrapError(domain.ErrArtifact, "restore artifact",
				fmt.Errorf("bundle seasons %v/%v differ from %v/%v", set.SummerMonths, set.WinterMonths, season.Summer, season.Winter))
		}

		imputer, err := imputation.Restore(set.Schema, set.Medians)
		if err != nil {
			return err
		}
		models := make([]ports.ClassifierModel, 0, len(set.Models))
		for _, ms := range set.Models {
			m, err := s.deps.Codec.Decode(ms)
			if err != nil {
				return err
			}
			models = append(models, m)
		}
		model, err := ensemble.New(models)
		if err != nil {
			return err
		}

		threshold := set.Threshold
		state.Encoding = encoding.FromCategories(set.Categories)
		state.Imputer = imputer
		state.Ensemble = model
		state.BundleThreshold = &threshold
		state.Artifact = set
		s.deps.Logger.Info("artifact_restored", "run_id", state.RunID, "path", path,
			"trained_run_id", set.RunID, "threshold", threshold, "families", model.Families())
		return nil
	}}
}

func (s stages) score() Stage {
	return Stage{Name: StageScore, Run: func(ctx context.Context, state *RunState) error {
		table, ok := state.Tables[domain.PartitionUnlabeled]
		if !ok {
			return domain.WrapError(domain.ErrInvalidInput, "score", errors.New("no unlabeled partition"))
		}
		probs, err := state.Ensemble.PredictProba(ctx, state.Matrices[domain.PartitionUnlabeled])
		if err != nil {
			return err
		}
		scores := make([]domain.ScoredRow, table.Len())
		for i, row := range table.Rows {
			scores[i] = domain.ScoredRow{AccountID: row.AccountID, Probability: probs[i]}
		}
		state.Scores = scores
		return nil
	}}
}

func (s stages) propagate(override *float64) Stage {
	return Stage{Name: StagePropagate, Run: func(_ context.Context, state *RunState) error {
		state.Threshold = ResolveThreshold(override, state.BundleThreshold)
		corpus := state.Corpora[domain.PartitionUnlabeled]
		result, err := Propagate(corpus, state.Scores, state.Threshold)
		if err != nil {
			return err
		}
		if result.MergeMismatches > 0 {
			s.deps.Observer.AddMergeMismatches(result.MergeMismatches)
			state.warn(domain.WrapError(domain.ErrMergeMismatch, "propagate labels",
				fmt.Errorf("%d records without a prediction", result.MergeMismatches)))
			s.deps.Logger.Warn("merge_mismatch", "run_id", state.RunID, "count", result.MergeMismatches, "account_ids", result.MismatchIDs)
		}
		state.Propagation = result
		s.deps.Logger.Info("labels_propagated", "run_id", state.RunID, "threshold", result.Threshold,
			"scored", result.Scored, "commercial", result.Commercial)
		return nil
	}}
}

func (s stages) emit(path string) Stage {
	return Stage{Name: StageEmit, Run: func(ctx context.Context, state *RunState) error {
		corpus := state.Corpora[domain.PartitionUnlabeled]
		if err := s.deps.Corpora.Save(ctx, path, corpus); err != nil {
			return fmt.Errorf("save labeled corpus: %w", err)
		}
		s.deps.Logger.Info("corpus_written", "run_id", state.RunID, "path", path, "records", corpus.Len())
		if s.deps.Publisher == nil {
			return nil
		}
		event := domain.CorpusLabeled{
			RunID:           state.RunID,
			OutputPath:      path,
			Records:         corpus.Len(),
			Threshold:       state.Threshold,
			MergeMismatches: state.Propagation.MergeMismatches,
			ProducedAt:      s.deps.Now(),
		}
		if err := s.deps.Publisher.PublishCorpusLabeled(ctx, event); err != nil {
			return fmt.Errorf("publish corpus labeled event: %w", err)
		}
		return nil
	}}
}
