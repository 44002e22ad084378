package analyses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"defectmaster-backend/internal/aiqueue"
	"defectmaster-backend/internal/ledger"
	"defectmaster-backend/internal/shared/metrics"
	"defectmaster-backend/internal/shared/storage/photos"
	"defectmaster-backend/internal/shared/telemetry"
	"defectmaster-backend/internal/vision"
)

// fallbackJoke is sent when the relevance gate itself fails: the photo is
// treated as rejected and the user keeps the credit.
const fallbackJoke = "⚠️ Не удалось проверить фото. Попробуй еще раз."

// Service is the admission and billing controller. It admits a photo only
// for a registered user with an object context and a positive balance, runs
// the two-stage analysis through the shared AI queue, and debits exactly one
// credit per successful relevant analysis.
type Service struct {
	Repo   Repo
	Ledger *ledger.Service
	Vision vision.Client
	Queue  *aiqueue.Queue
	Photos photos.Store
	Events EventSink

	now func() time.Time
}

func NewService(repo Repo, ledgerSvc *ledger.Service, visionClient vision.Client, queue *aiqueue.Queue, photoStore photos.Store, events EventSink) *Service {
	if events == nil {
		events = LogSink{}
	}
	return &Service{
		Repo:   repo,
		Ledger: ledgerSvc,
		Vision: visionClient,
		Queue:  queue,
		Photos: photoStore,
		Events: events,
		now:    time.Now,
	}
}

// SubmitInput is one photo to analyze. MessageRef optionally ties the result
// back to the originating chat message.
type SubmitInput struct {
	UserID     string
	Photo      []byte
	MessageRef string
}

// Submit runs the full pipeline for one photo.
//
// Outcomes:
//   - rejected (not a construction photo, or the relevance gate failed):
//     the analysis is recorded with Relevant=false, nothing is charged, and
//     the outcome carries the joke to relay;
//   - billable: one credit is debited after the detailed analysis succeeds,
//     the photo and records are persisted, and the referral bonus is paid on
//     the user's first billable analysis;
//   - failed (detailed stage error): a typed error is returned, nothing is
//     charged and nothing is recorded.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Outcome, error) {
	if len(in.Photo) == 0 {
		return Outcome{}, fmt.Errorf("%w: photo is required", ErrNotAdmitted)
	}

	user, err := s.Ledger.Get(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return Outcome{}, fmt.Errorf("%w: user is not registered", ErrNotAdmitted)
		}
		return Outcome{}, fmt.Errorf("load user: %w", err)
	}
	if strings.TrimSpace(user.Context) == "" {
		return Outcome{}, fmt.Errorf("%w: object context is not set", ErrNotAdmitted)
	}
	if user.Balance <= 0 {
		return Outcome{}, ErrNoCredits
	}

	metrics.IncAnalysisStarted()
	started := s.now()

	// Each stage is its own queue submission, so the global inter-call
	// spacing holds between the relevance call and the detailed call too.
	var (
		rel    vision.RelevanceResult
		relErr error
	)
	err = s.Queue.Submit(ctx, func(ctx context.Context) error {
		metrics.ObserveQueueWaitMs(float64(s.now().Sub(started).Milliseconds()))
		rel, relErr = s.Vision.CheckRelevance(ctx, in.Photo, user.Context)
		return nil
	})
	if err != nil {
		// Caller gave up while queued.
		return Outcome{}, err
	}
	if relErr != nil || !rel.IsRelevant {
		return s.reject(ctx, user, in, rel, relErr), nil
	}

	var (
		report    vision.DefectReport
		reportErr error
	)
	err = s.Queue.Submit(ctx, func(ctx context.Context) error {
		report, reportErr = s.Vision.AnalyzeDefects(ctx, in.Photo, user.Context)
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	if reportErr != nil {
		metrics.IncAnalysisFailed()
		telemetry.Error("detailed analysis failed", map[string]any{
			"user_id": user.ID,
			"error":   reportErr.Error(),
		})
		return Outcome{}, mapVisionError(reportErr)
	}

	return s.bill(ctx, user, in, report, started)
}

// reject records a non-relevant submission. The user is never charged for a
// rejection, including the case where the relevance gate errored out.
func (s *Service) reject(ctx context.Context, user ledger.User, in SubmitInput, rel vision.RelevanceResult, relErr error) Outcome {
	joke := rel.Joke
	if relErr != nil {
		joke = fallbackJoke
		telemetry.Warn("relevance check failed, treating as rejected", map[string]any{
			"user_id": user.ID,
			"error":   relErr.Error(),
		})
	}
	if joke == "" {
		joke = "Фото не относится к строительству."
	}

	analysis := Analysis{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		Context:    user.Context,
		Relevant:   false,
		MessageRef: in.MessageRef,
		CreatedAt:  s.now().UTC(),
	}
	s.persist(ctx, analysis, nil)

	metrics.IncAnalysisRejected()
	s.Events.AnalysisRejected(ctx, analysis, joke)
	return Outcome{Analysis: analysis, Joke: joke}
}

// bill finishes a successful relevant analysis: debit, photo upload, record
// persistence and the referral payout, in that order.
func (s *Service) bill(ctx context.Context, user ledger.User, in SubmitInput, report vision.DefectReport, started time.Time) (Outcome, error) {
	balance, err := s.Ledger.Debit(ctx, user.ID, 1)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			// A concurrent analysis spent the last credit between admission
			// and here. Not billable; the balance stays where it is.
			metrics.IncAnalysisFailed()
			telemetry.Warn("last credit spent by a concurrent analysis", map[string]any{
				"user_id": user.ID,
			})
			return Outcome{}, ErrNoCredits
		}
		metrics.IncAnalysisFailed()
		telemetry.Error("debit failed after successful analysis", map[string]any{
			"user_id": user.ID,
			"error":   err.Error(),
		})
		return Outcome{}, fmt.Errorf("%w: billing unavailable", ErrServiceUnavailable)
	}

	photoKey, photoURL, err := s.Photos.Save(ctx, user.ID, in.Photo)
	if err != nil {
		// The report is still delivered; only the stored link is lost.
		telemetry.Error("photo upload failed", map[string]any{
			"user_id": user.ID,
			"error":   err.Error(),
		})
		photoKey, photoURL = "", ""
	}

	now := s.now().UTC()
	analysis := Analysis{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		PhotoKey:     photoKey,
		PhotoURL:     photoURL,
		Context:      user.Context,
		Relevant:     true,
		DefectsFound: len(report.Items),
		Summary:      report.Summary,
		MessageRef:   in.MessageRef,
		CreatedAt:    now,
	}
	defects := buildDefects(analysis, report, now)
	s.persist(ctx, analysis, defects)

	award, err := s.Ledger.AwardReferralBonus(ctx, user)
	if err != nil {
		telemetry.Warn("referral bonus payout failed", map[string]any{
			"user_id": user.ID,
			"error":   err.Error(),
		})
	} else if award != nil {
		s.Events.ReferralBonusAwarded(ctx, award.ReferrerID, award.InvitedUserID, award.Amount)
	}

	metrics.IncAnalysisBillable()
	metrics.ObserveAnalysisDurationMs(float64(s.now().Sub(started).Milliseconds()))
	s.Events.AnalysisCompleted(ctx, analysis, defects, balance)

	return Outcome{
		Analysis: analysis,
		Defects:  defects,
		Billable: true,
		Balance:  balance,
	}, nil
}

// persist writes the records with one retry. Both saves are idempotent by
// id, so the retry can never duplicate. A final failure is escalated in the
// log but does not fail the submission: the user already has the report and,
// for billable analyses, has already been charged.
func (s *Service) persist(ctx context.Context, analysis Analysis, defects []Defect) {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if err = s.Repo.SaveAnalysis(ctx, analysis); err != nil {
			continue
		}
		if err = s.Repo.SaveDefects(ctx, defects); err != nil {
			continue
		}
		return
	}
	telemetry.Error("analysis persistence failed", map[string]any{
		"analysis_id": analysis.ID,
		"user_id":     analysis.UserID,
		"error":       err.Error(),
	})
}

func buildDefects(analysis Analysis, report vision.DefectReport, now time.Time) []Defect {
	if len(report.Items) == 0 {
		return []Defect{{
			ID:         uuid.NewString(),
			AnalysisID: analysis.ID,
			UserID:     analysis.UserID,
			Idx:        0,
			Name:       SentinelDefectName,
			CreatedAt:  now,
		}}
	}
	defects := make([]Defect, 0, len(report.Items))
	for i, item := range report.Items {
		defects = append(defects, Defect{
			ID:             uuid.NewString(),
			AnalysisID:     analysis.ID,
			UserID:         analysis.UserID,
			Idx:            i + 1,
			Name:           item.Name,
			Location:       item.Location,
			Criticality:    item.Criticality,
			Cause:          item.Cause,
			Norm:           item.Norm,
			Recommendation: item.Recommendation,
			Status:         DefectStatusOpen,
			CreatedAt:      now,
		})
	}
	return defects
}

func mapVisionError(err error) error {
	switch {
	case errors.Is(err, vision.ErrMalformedOutput):
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	case errors.Is(err, vision.ErrQuotaExhausted):
		return fmt.Errorf("%w: %v", ErrQuotaExhausted, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
}

// Get returns one of the user's analyses with its defects.
func (s *Service) Get(ctx context.Context, userID, analysisID string) (Analysis, []Defect, error) {
	analysis, err := s.Repo.GetAnalysis(ctx, userID, analysisID)
	if err != nil {
		return Analysis{}, nil, err
	}
	defects, err := s.Repo.ListDefects(ctx, analysisID)
	if err != nil {
		return Analysis{}, nil, err
	}
	return analysis, defects, nil
}

// List returns the user's analyses, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// SetMessageRef attaches the transport's chat-message reference to one of the
// user's analyses, so a later status change can edit the original message.
func (s *Service) SetMessageRef(ctx context.Context, userID, analysisID, messageRef string) error {
	if strings.TrimSpace(messageRef) == "" {
		return errors.New("message ref is required")
	}
	return s.Repo.SetMessageRef(ctx, userID, analysisID, messageRef)
}

// UpdateDefectStatus moves a defect along its workflow on behalf of its
// owner. Sentinel rows have no workflow.
func (s *Service) UpdateDefectStatus(ctx context.Context, userID, defectID, to string) (Defect, error) {
	defect, err := s.Repo.GetDefect(ctx, defectID)
	if err != nil {
		return Defect{}, err
	}
	if defect.UserID != userID {
		return Defect{}, ErrNotFound
	}
	if defect.IsSentinel() {
		return Defect{}, fmt.Errorf("%w: sentinel record has no status", ErrInvalidTransition)
	}
	if !CanTransition(defect.Status, to) {
		return Defect{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, defect.Status, to)
	}
	if err := s.Repo.UpdateDefectStatus(ctx, defectID, defect.Status, to); err != nil {
		return Defect{}, err
	}
	defect.Status = to
	return defect, nil
}

// PurgeUser removes all analysis history for a user. Used by the admin
// surface alongside account deletion.
func (s *Service) PurgeUser(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("user id is required")
	}
	return s.Repo.DeleteByUser(ctx, userID)
}
