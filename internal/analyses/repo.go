package analyses

import "context"

// Repo persists analyses and defects. Both saves are idempotent by id so the
// controller can retry without duplicating rows.
type Repo interface {
	SaveAnalysis(ctx context.Context, analysis Analysis) error
	SaveDefects(ctx context.Context, defects []Defect) error
	GetAnalysis(ctx context.Context, userID, analysisID string) (Analysis, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error)
	// SetMessageRef stores the chat-message reference the transport attached
	// to an already delivered analysis.
	SetMessageRef(ctx context.Context, userID, analysisID, messageRef string) error
	ListDefects(ctx context.Context, analysisID string) ([]Defect, error)
	GetDefect(ctx context.Context, defectID string) (Defect, error)
	// UpdateDefectStatus moves a defect from one status to another. It
	// returns ErrInvalidTransition when the stored status no longer matches
	// from, and ErrNotFound for an unknown defect.
	UpdateDefectStatus(ctx context.Context, defectID, from, to string) error
	// DeleteByUser removes all of a user's analyses and defects.
	DeleteByUser(ctx context.Context, userID string) error
}
