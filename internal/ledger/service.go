package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"defectmaster-backend/internal/shared/metrics"
	"defectmaster-backend/internal/shared/telemetry"
)

// Service owns credit accounting: signup grants, admin top-ups, analysis
// debits and the one-time referral bonus.
type Service struct {
	Repo         Repo
	FreeCredits  int
	BonusInviter int
	BonusInvited int
}

func NewService(repo Repo, freeCredits, bonusInviter, bonusInvited int) *Service {
	return &Service{
		Repo:         repo,
		FreeCredits:  freeCredits,
		BonusInviter: bonusInviter,
		BonusInvited: bonusInvited,
	}
}

// Register creates the user with the signup grant. Registering with a
// referrer adds the invited-side bonus immediately; the inviter's side is
// paid later, on the invited user's first billable analysis. Re-registering
// an existing user is a no-op that returns the stored row.
func (s *Service) Register(ctx context.Context, userID, username, referredBy string) (User, bool, error) {
	if strings.TrimSpace(userID) == "" {
		return User{}, false, errors.New("user id is required")
	}
	referredBy = strings.TrimSpace(referredBy)
	if referredBy == userID {
		// Self-referrals earn nothing.
		referredBy = ""
	}

	balance := s.FreeCredits
	if referredBy != "" {
		balance += s.BonusInvited
	}
	user := User{
		ID:         userID,
		Username:   strings.TrimSpace(username),
		Balance:    balance,
		ReferredBy: referredBy,
	}
	created, err := s.Repo.Create(ctx, user)
	if err != nil {
		return User{}, false, fmt.Errorf("create user: %w", err)
	}
	stored, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		return User{}, false, fmt.Errorf("load user: %w", err)
	}
	if created {
		telemetry.Info("user registered", map[string]any{
			"user_id":     userID,
			"balance":     stored.Balance,
			"referred_by": referredBy,
		})
	}
	return stored, created, nil
}

func (s *Service) Get(ctx context.Context, userID string) (User, error) {
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.New("user id is required")
	}
	return s.Repo.GetByID(ctx, userID)
}

// SetContext stores the object/location description attached to every
// subsequent analysis.
func (s *Service) SetContext(ctx context.Context, userID, objectContext string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("user id is required")
	}
	objectContext = strings.TrimSpace(objectContext)
	if objectContext == "" {
		return errors.New("context is required")
	}
	return s.Repo.SetContext(ctx, userID, objectContext)
}

// Credit tops up a user's balance and returns the new value.
func (s *Service) Credit(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, errors.New("credit amount must be positive")
	}
	balance, err := s.Repo.AdjustBalance(ctx, userID, amount)
	if err != nil {
		return 0, err
	}
	telemetry.Info("credits granted", map[string]any{
		"user_id": userID,
		"amount":  amount,
		"balance": balance,
	})
	return balance, nil
}

// Debit removes credits after a billable analysis and returns the new
// balance. The decrement is conditional on the balance covering the amount;
// a concurrent analysis that spent the last credit first surfaces as
// ErrInsufficientCredits, never as a negative balance.
func (s *Service) Debit(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, errors.New("debit amount must be positive")
	}
	return s.Repo.DebitIfAvailable(ctx, userID, amount)
}

// BonusAward describes a paid-out referral bonus.
type BonusAward struct {
	ReferrerID    string
	InvitedUserID string
	Amount        int
	NewBalance    int
}

// AwardReferralBonus pays the inviter's side of the referral bonus, at most
// once per invited user, and returns the award when this call paid it. The
// flag flip is the commit point: if the inviter's account is gone by then the
// bonus is forfeited, not retried.
func (s *Service) AwardReferralBonus(ctx context.Context, invited User) (*BonusAward, error) {
	if invited.ReferredBy == "" || invited.ReferralBonusPaid {
		return nil, nil
	}
	won, err := s.Repo.TrySetReferralBonusPaid(ctx, invited.ID)
	if err != nil {
		return nil, fmt.Errorf("mark referral bonus: %w", err)
	}
	if !won {
		return nil, nil
	}
	balance, err := s.Repo.AdjustBalance(ctx, invited.ReferredBy, s.BonusInviter)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			telemetry.Warn("referral bonus forfeited, inviter gone", map[string]any{
				"invited_id": invited.ID,
				"inviter_id": invited.ReferredBy,
			})
			return nil, nil
		}
		return nil, fmt.Errorf("pay referral bonus: %w", err)
	}
	metrics.IncReferralBonus()
	telemetry.Info("referral bonus paid", map[string]any{
		"invited_id":      invited.ID,
		"inviter_id":      invited.ReferredBy,
		"amount":          s.BonusInviter,
		"inviter_balance": balance,
	})
	return &BonusAward{
		ReferrerID:    invited.ReferredBy,
		InvitedUserID: invited.ID,
		Amount:        s.BonusInviter,
		NewBalance:    balance,
	}, nil
}

func (s *Service) Delete(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("user id is required")
	}
	return s.Repo.Delete(ctx, userID)
}
