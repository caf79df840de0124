// internal/workers/matching/recalibrate-weights/models.go
package recalibrateweights

import "freight-match-engine/internal/models"

type Input struct{}

type Output struct {
	Published    bool            `json:"published"`
	ModelVersion int             `json:"modelVersion"`
	Weights      *models.Weights `json:"weights,omitempty"`
	Samples      int             `json:"samples"`
	Reason       string          `json:"reason,omitempty"`
}
