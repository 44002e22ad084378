package analyses

import (
	"context"

	"defectmaster-backend/internal/shared/telemetry"
)

// EventSink receives pipeline outcomes. The messaging gateway subscribes to
// deliver reports back to users and to congratulate referrers; the default
// sink just logs.
type EventSink interface {
	AnalysisCompleted(ctx context.Context, analysis Analysis, defects []Defect, newBalance int)
	AnalysisRejected(ctx context.Context, analysis Analysis, joke string)
	ReferralBonusAwarded(ctx context.Context, referrerID, invitedUserID string, amount int)
}

// LogSink writes events to the structured log.
type LogSink struct{}

func (LogSink) AnalysisCompleted(ctx context.Context, analysis Analysis, defects []Defect, newBalance int) {
	telemetry.Info("analysis completed", map[string]any{
		"analysis_id":   analysis.ID,
		"user_id":       analysis.UserID,
		"defects_found": analysis.DefectsFound,
		"photo_url":     analysis.PhotoURL,
		"new_balance":   newBalance,
	})
}

func (LogSink) AnalysisRejected(ctx context.Context, analysis Analysis, joke string) {
	telemetry.Info("analysis rejected", map[string]any{
		"analysis_id": analysis.ID,
		"user_id":     analysis.UserID,
	})
}

func (LogSink) ReferralBonusAwarded(ctx context.Context, referrerID, invitedUserID string, amount int) {
	telemetry.Info("referral bonus awarded", map[string]any{
		"referrer_id": referrerID,
		"invited_id":  invitedUserID,
		"amount":      amount,
	})
}

var _ EventSink = LogSink{}
