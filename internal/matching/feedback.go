// internal/matching/feedback.go
package matching

import (
	"context"
	"fmt"
	"time"

	"freight-match-engine/internal/common/errors"
	"freight-match-engine/internal/common/logger"
	"freight-match-engine/internal/common/metrics"
	"freight-match-engine/internal/models"
)

// Recorder applies operator accept/reject decisions to suggested matches and
// appends them to the feedback ledger. The state machine is strict:
// suggested -> accepted|rejected, both terminal; expiry is the repository
// sweep's job, never an operator action.
type Recorder struct {
	store  FeedbackStore
	logger logger.Logger
	now    func() time.Time
}

func NewRecorder(store FeedbackStore, log logger.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: log.WithFields(map[string]interface{}{"component": "feedback-recorder"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RespondToSuggestion records the operator decision. Responding to a match
// that is no longer suggested fails with an invalid-state error; the store's
// optimistic status check serializes concurrent responses to the same match
// so it can never be both accepted and rejected.
func (r *Recorder) RespondToSuggestion(ctx context.Context, matchID string, action models.FeedbackAction, reason string) (*models.MatchResult, error) {
	if action != models.FeedbackAccept && action != models.FeedbackReject {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("unknown action %q", action))
	}

	updated, err := r.store.RespondToSuggestion(ctx, matchID, action, reason, r.now())
	if err != nil {
		return nil, err
	}

	metrics.FeedbackRecorded.WithLabelValues(string(action)).Inc()
	r.logger.Info("suggestion response recorded", map[string]interface{}{
		"matchId": matchID,
		"action":  action,
		"tier":    updated.Tier,
	})
	return updated, nil
}
