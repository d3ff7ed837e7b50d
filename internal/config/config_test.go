package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadIncludesPipelineDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("THRESHOLD_MIN", "")
	t.Setenv("THRESHOLD_STEPS", "")
	t.Setenv("LABEL_THRESHOLD", "")
	t.Setenv("OUTPUT_CORPUS_PATH", "")
	t.Setenv("INGEST_INPUT_PATH", "")
	t.Setenv("NATS_URL", "")

	cfg := Load()
	if cfg.ThresholdMin != 0.30 || cfg.ThresholdMax != 0.70 {
		t.Fatalf("expected default threshold range 0.30..0.70, got %v..%v", cfg.ThresholdMin, cfg.ThresholdMax)
	}
	if cfg.ThresholdSteps != 41 {
		t.Fatalf("expected default steps 41, got %d", cfg.ThresholdSteps)
	}
	if cfg.LabelThreshold != nil {
		t.Fatalf("expected no label threshold override, got %v", *cfg.LabelThreshold)
	}
	if cfg.IngestInputPath != cfg.OutputCorpusPath {
		t.Fatalf("expected ingest input to default to output corpus, got %q", cfg.IngestInputPath)
	}
	if cfg.NATSURL != "" {
		t.Fatalf("expected publishing disabled by default, got %q", cfg.NATSURL)
	}
	if cfg.StageTimeoutSeconds != 600 {
		t.Fatalf("expected default stage timeout 600, got %d", cfg.StageTimeoutSeconds)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("ENV_FILE", "")
	t.Setenv("LABEL_THRESHOLD", "0.42")
	t.Setenv("FEATURE_HAS_BUSINESS", "true")
	t.Setenv("OVERPASS_RPS", "2.5")
	t.Setenv("INGEST_MODE", "Worker")
	t.Setenv("THRESHOLD_STEPS", "not-a-number")

	cfg := Load()
	if cfg.LabelThreshold == nil || *cfg.LabelThreshold != 0.42 {
		t.Fatalf("expected label threshold 0.42, got %v", cfg.LabelThreshold)
	}
	if !cfg.FeatureHasBusiness {
		t.Fatalf("expected has_business feature enabled")
	}
	if cfg.OverpassRPS != 2.5 {
		t.Fatalf("expected overpass rps 2.5, got %v", cfg.OverpassRPS)
	}
	if cfg.IngestMode != "worker" {
		t.Fatalf("expected ingest mode worker, got %q", cfg.IngestMode)
	}
	if cfg.ThresholdSteps != 41 {
		t.Fatalf("expected invalid steps to fall back to 41, got %d", cfg.ThresholdSteps)
	}
}

func TestLoadReadsDotEnvWithoutOverridingEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	body := "ARTIFACT_PATH=/tmp/from-file.bundle\nREPORT_DIR=/tmp/file-reports\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("REPORT_DIR", "/tmp/env-reports")
	// t.Setenv restores the variable godotenv sets from the file.
	t.Setenv("ARTIFACT_PATH", "")
	if err := os.Unsetenv("ARTIFACT_PATH"); err != nil {
		t.Fatalf("unset: %v", err)
	}

	cfg := Load()
	if cfg.ArtifactPath != "/tmp/from-file.bundle" {
		t.Fatalf("expected artifact path from file, got %q", cfg.ArtifactPath)
	}
	if cfg.ReportDir != "/tmp/env-reports" {
		t.Fatalf("expected environment to win, got %q", cfg.ReportDir)
	}
}

func TestLoadDisablesOptionalCorpusPaths(t *testing.T) {
	t.Setenv("ENV_FILE", "")
	t.Setenv("UNLABELED_CORPUS_PATH", "")
	t.Setenv("TEST_CORPUS_PATH", "-")

	cfg := Load()
	if cfg.UnlabeledCorpusPath != "" || cfg.TestCorpusPath != "" {
		t.Fatalf("expected optional paths disabled, got %q and %q", cfg.UnlabeledCorpusPath, cfg.TestCorpusPath)
	}

	if err := os.Unsetenv("UNLABELED_CORPUS_PATH"); err != nil {
		t.Fatalf("unset: %v", err)
	}
	if got := Load().UnlabeledCorpusPath; got != "data/data.json" {
		t.Fatalf("expected default unlabeled path when unset, got %q", got)
	}
}
