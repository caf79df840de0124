// internal/models/match.go
package models

import "time"

// MatchStatus is the lifecycle status of a match result. suggested is the
// only live state; accepted, rejected and expired are terminal.
type MatchStatus string

const (
	MatchStatusSuggested MatchStatus = "suggested"
	MatchStatusAccepted  MatchStatus = "accepted"
	MatchStatusRejected  MatchStatus = "rejected"
	MatchStatusExpired   MatchStatus = "expired"
)

// IsTerminal reports whether no further transition may leave the status.
func (s MatchStatus) IsTerminal() bool {
	return s == MatchStatusAccepted || s == MatchStatusRejected || s == MatchStatusExpired
}

// Tier is the discrete quality bucket derived from the composite score.
type Tier string

const (
	TierPremium Tier = "premium"
	TierGood    Tier = "good"
	TierFair    Tier = "fair"
)

// SubScores is the fixed, enumerated set of named feature scores, each in
// [0, 100]. Keeping this a struct rather than a string-keyed map rules out
// feature-key typos and makes weight validation trivial.
type SubScores struct {
	Distance    float64 `json:"distanceScore"`
	Capacity    float64 `json:"capacityScore"`
	Timing      float64 `json:"timingScore"`
	Reliability float64 `json:"reliabilityScore"`
	Price       float64 `json:"priceScore"`
	Carbon      float64 `json:"carbonScore"`
}

// MatchResult is the engine's scored, tiered pairing of one freight offer
// with one vehicle offer.
type MatchResult struct {
	ID              string      `json:"id"`
	FreightOfferID  string      `json:"freightOfferId"`
	VehicleOfferID  string      `json:"vehicleOfferId"`
	AIScore         float64     `json:"aiScore"`
	SubScores       SubScores   `json:"subScores"`
	ModelVersion    int         `json:"modelVersion"`
	FeatureWeights  Weights     `json:"featureWeights"`
	Tier            Tier        `json:"tier"`
	Status          MatchStatus `json:"status"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
	AcceptedAt      *time.Time  `json:"acceptedAt,omitempty"`
	RejectedAt      *time.Time  `json:"rejectedAt,omitempty"`
	RejectionReason string      `json:"rejectionReason,omitempty"`
}

// FeedbackAction is an operator decision on a suggested match.
type FeedbackAction string

const (
	FeedbackAccept FeedbackAction = "accept"
	FeedbackReject FeedbackAction = "reject"
)

// FeedbackEntry is one row of the append-only outcome ledger: the sub-score
// snapshot at suggestion time together with the operator decision. Written
// only by the feedback recorder, read by the recalibrator and analytics.
type FeedbackEntry struct {
	ID               int64          `json:"id"`
	MatchID          string         `json:"matchId"`
	FreightCompanyID string         `json:"freightCompanyId"`
	VehicleCompanyID string         `json:"vehicleCompanyId"`
	Action           FeedbackAction `json:"action"`
	SubScores        SubScores      `json:"subScores"`
	ModelVersion     int            `json:"modelVersion"`
	Tier             Tier           `json:"tier"`
	RecordedAt       time.Time      `json:"recordedAt"`
}
