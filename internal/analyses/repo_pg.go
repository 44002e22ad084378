package analyses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"defectmaster-backend/internal/vision"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) SaveAnalysis(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO analyses (id, user_id, photo_key, photo_url, object_context, relevant, defects_found, summary, message_ref, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO NOTHING`
	_, err := r.DB.ExecContext(ctx, query,
		analysis.ID,
		analysis.UserID,
		nullableString(analysis.PhotoKey),
		nullableString(analysis.PhotoURL),
		nullableString(analysis.Context),
		analysis.Relevant,
		analysis.DefectsFound,
		nullableString(analysis.Summary),
		nullableString(analysis.MessageRef),
		analysis.CreatedAt,
	)
	return err
}

func (r *PGRepo) SaveDefects(ctx context.Context, defects []Defect) error {
	const query = `
INSERT INTO defects (id, analysis_id, user_id, idx, name, location, criticality, cause, norm, recommendation, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO NOTHING`
	for _, d := range defects {
		_, err := r.DB.ExecContext(ctx, query,
			d.ID,
			d.AnalysisID,
			d.UserID,
			d.Idx,
			d.Name,
			nullableString(d.Location),
			nullableString(string(d.Criticality)),
			nullableString(d.Cause),
			nullableString(d.Norm),
			nullableString(d.Recommendation),
			nullableString(d.Status),
			d.CreatedAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

const analysisColumns = `id, user_id, photo_key, photo_url, object_context, relevant, defects_found, summary, message_ref, created_at`

func (r *PGRepo) GetAnalysis(ctx context.Context, userID, analysisID string) (Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1 AND user_id = $2 LIMIT 1`
	row := r.DB.QueryRowContext(ctx, query, analysisID, userID)
	analysis, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	return analysis, nil
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE user_id = $1 ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Analysis, 0)
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, analysis)
	}
	return out, rows.Err()
}

func (r *PGRepo) SetMessageRef(ctx context.Context, userID, analysisID, messageRef string) error {
	const query = `UPDATE analyses SET message_ref = $3 WHERE id = $1 AND user_id = $2`
	res, err := r.DB.ExecContext(ctx, query, analysisID, userID, nullableString(messageRef))
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

func (r *PGRepo) ListDefects(ctx context.Context, analysisID string) ([]Defect, error) {
	const query = `
SELECT id, analysis_id, user_id, idx, name, location, criticality, cause, norm, recommendation, status, created_at
FROM defects
WHERE analysis_id = $1
ORDER BY idx ASC`
	rows, err := r.DB.QueryContext(ctx, query, analysisID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Defect, 0)
	for rows.Next() {
		defect, err := scanDefect(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, defect)
	}
	return out, rows.Err()
}

func (r *PGRepo) GetDefect(ctx context.Context, defectID string) (Defect, error) {
	const query = `
SELECT id, analysis_id, user_id, idx, name, location, criticality, cause, norm, recommendation, status, created_at
FROM defects
WHERE id = $1
LIMIT 1`
	defect, err := scanDefect(r.DB.QueryRowContext(ctx, query, defectID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Defect{}, ErrNotFound
		}
		return Defect{}, err
	}
	return defect, nil
}

func (r *PGRepo) UpdateDefectStatus(ctx context.Context, defectID, from, to string) error {
	const query = `UPDATE defects SET status = $3 WHERE id = $1 AND status = $2`
	res, err := r.DB.ExecContext(ctx, query, defectID, from, to)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}
	if _, err := r.GetDefect(ctx, defectID); err != nil {
		return err
	}
	return ErrInvalidTransition
}

func (r *PGRepo) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM defects WHERE user_id = $1`, userID); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx, `DELETE FROM analyses WHERE user_id = $1`, userID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var analysis Analysis
	var photoKey, photoURL, objectContext, summary, messageRef sql.NullString
	err := row.Scan(
		&analysis.ID,
		&analysis.UserID,
		&photoKey,
		&photoURL,
		&objectContext,
		&analysis.Relevant,
		&analysis.DefectsFound,
		&summary,
		&messageRef,
		&analysis.CreatedAt,
	)
	if err != nil {
		return Analysis{}, err
	}
	analysis.PhotoKey = photoKey.String
	analysis.PhotoURL = photoURL.String
	analysis.Context = objectContext.String
	analysis.Summary = summary.String
	analysis.MessageRef = messageRef.String
	return analysis, nil
}

func scanDefect(row rowScanner) (Defect, error) {
	var defect Defect
	var location, criticality, cause, norm, recommendation, status sql.NullString
	err := row.Scan(
		&defect.ID,
		&defect.AnalysisID,
		&defect.UserID,
		&defect.Idx,
		&defect.Name,
		&location,
		&criticality,
		&cause,
		&norm,
		&recommendation,
		&status,
		&defect.CreatedAt,
	)
	if err != nil {
		return Defect{}, err
	}
	defect.Location = location.String
	defect.Criticality = vision.Tier(criticality.String)
	defect.Cause = cause.String
	defect.Norm = norm.String
	defect.Recommendation = recommendation.String
	defect.Status = status.String
	return defect, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ Repo = (*PGRepo)(nil)
