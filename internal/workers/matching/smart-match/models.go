// internal/workers/matching/smart-match/models.go
package smartmatch

import "freight-match-engine/internal/models"

type Input struct {
	FreightOfferID string `json:"freightOfferId"`
	Limit          int    `json:"limit,omitempty"`
}

type Output struct {
	FreightOfferID string                `json:"freightOfferId"`
	Matches        []*models.MatchResult `json:"matches"`
	MatchCount     int                   `json:"matchCount"`
	TopScore       float64               `json:"topScore"`
}
