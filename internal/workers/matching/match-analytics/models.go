// internal/workers/matching/match-analytics/models.go
package matchanalytics

import (
	"freight-match-engine/internal/matching"
	"freight-match-engine/internal/models"
)

type Input struct {
	CompanyID string `json:"companyId,omitempty"`
	Page      int    `json:"page,omitempty"`
	PerPage   int    `json:"perPage,omitempty"`
}

type Output struct {
	Report      *matching.AnalyticsReport `json:"report,omitempty"`
	Suggestions []*models.MatchResult     `json:"suggestions,omitempty"`
	History     *matching.Page            `json:"history,omitempty"`
}
