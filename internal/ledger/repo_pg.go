package ledger

import (
	"context"
	"database/sql"
	"errors"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, user User) (bool, error) {
	const query = `
INSERT INTO users (id, username, balance, object_context, referred_by, referral_bonus_paid, created_at)
VALUES ($1, $2, $3, $4, $5, FALSE, now())
ON CONFLICT (id) DO NOTHING`
	res, err := r.DB.ExecContext(ctx, query,
		user.ID,
		nullableString(user.Username),
		user.Balance,
		nullableString(user.Context),
		nullableString(user.ReferredBy),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	const query = `
SELECT id, username, balance, object_context, referred_by, referral_bonus_paid, created_at
FROM users
WHERE id = $1
LIMIT 1`
	var user User
	var username sql.NullString
	var objectContext sql.NullString
	var referredBy sql.NullString
	err := r.DB.QueryRowContext(ctx, query, userID).Scan(
		&user.ID,
		&username,
		&user.Balance,
		&objectContext,
		&referredBy,
		&user.ReferralBonusPaid,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	if username.Valid {
		user.Username = username.String
	}
	if objectContext.Valid {
		user.Context = objectContext.String
	}
	if referredBy.Valid {
		user.ReferredBy = referredBy.String
	}
	return user, nil
}

func (r *PGRepo) SetContext(ctx context.Context, userID, objectContext string) error {
	const query = `UPDATE users SET object_context = $2 WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, userID, nullableString(objectContext))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) AdjustBalance(ctx context.Context, userID string, delta int) (int, error) {
	const query = `UPDATE users SET balance = balance + $2 WHERE id = $1 RETURNING balance`
	var balance int
	err := r.DB.QueryRowContext(ctx, query, userID, delta).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return balance, nil
}

func (r *PGRepo) DebitIfAvailable(ctx context.Context, userID string, amount int) (int, error) {
	const query = `
UPDATE users SET balance = balance - $2
WHERE id = $1 AND balance >= $2
RETURNING balance`
	var balance int
	err := r.DB.QueryRowContext(ctx, query, userID, amount).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	// Distinguish a too-low balance from a missing user.
	if _, err := r.GetByID(ctx, userID); err != nil {
		return 0, err
	}
	return 0, ErrInsufficientCredits
}

func (r *PGRepo) TrySetReferralBonusPaid(ctx context.Context, userID string) (bool, error) {
	const query = `
UPDATE users SET referral_bonus_paid = TRUE
WHERE id = $1 AND referral_bonus_paid = FALSE`
	res, err := r.DB.ExecContext(ctx, query, userID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 1 {
		return true, nil
	}
	// Distinguish an already-paid flag from a missing user.
	if _, err := r.GetByID(ctx, userID); err != nil {
		return false, err
	}
	return false, nil
}

func (r *PGRepo) Delete(ctx context.Context, userID string) error {
	const query = `DELETE FROM users WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ Repo = (*PGRepo)(nil)
