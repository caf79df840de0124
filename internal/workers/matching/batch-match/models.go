// internal/workers/matching/batch-match/models.go
package batchmatch

type Input struct {
	HoursBack       int `json:"hoursBack,omitempty"`
	LimitPerFreight int `json:"limitPerFreight,omitempty"`
}

type Output struct {
	Processed      int   `json:"processed"`
	ZeroMatch      int   `json:"zeroMatch"`
	MatchesWritten int   `json:"matchesWritten"`
	FailedOffers   int   `json:"failedOffers"`
	Cancelled      bool  `json:"cancelled"`
	DurationMs     int64 `json:"durationMs"`
}
