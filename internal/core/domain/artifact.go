package domain

import (
	"encoding/json"
	"time"
)

// ArtifactFormatVersion is bumped whenever the bundle layout changes.
const ArtifactFormatVersion = 1

type ModelState struct {
	Family  string          `json:"family"`
	Payload json.RawMessage `json:"payload"`
}

type ArtifactSet struct {
	FormatVersion int          `json:"format_version"`
	RunID         string       `json:"run_id"`
	CreatedAt     time.Time    `json:"created_at"`
	Schema        Schema       `json:"schema"`
	SummerMonths  []int        `json:"summer_months"`
	WinterMonths  []int        `json:"winter_months"`
	Categories    []string     `json:"categories"`
	Medians       []float64    `json:"medians"`
	Models        []ModelState `json:"models"`
	Threshold     float64      `json:"threshold"`
}
