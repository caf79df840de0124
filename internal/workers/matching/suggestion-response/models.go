// internal/workers/matching/suggestion-response/models.go
package suggestionresponse

import "freight-match-engine/internal/models"

type Input struct {
	MatchID string `json:"matchId"`
	Action  string `json:"action"`
	Reason  string `json:"reason,omitempty"`
}

type Output struct {
	Match  *models.MatchResult `json:"match"`
	Status string              `json:"status"`
}
