// Package ports declares the contracts between the classification core and
// its adapters.
package ports

import (
	"time"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
)

type PipelineObserver interface {
	ObserveStage(stage string, seconds float64, err error)
	AddRecords(partition domain.Partition, n int)
	AddMergeMismatches(n int)
	AddUnknownCategories(n int)
	AddSchemaErrors(n int)
	SetCalibration(threshold, balancedAccuracy float64)
}

type IngestObserver interface {
	StartIngest()
	FinishIngest(duration time.Duration, stored int, err error)
	ObserveEventLag(lag time.Duration)
}
