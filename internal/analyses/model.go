package analyses

import (
	"time"

	"defectmaster-backend/internal/vision"
)

// Analysis is one processed photo. Rejected photos (not a construction site)
// are recorded with Relevant=false and no defects; only relevant analyses
// cost a credit.
type Analysis struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	PhotoKey     string    `json:"photoKey,omitempty"`
	PhotoURL     string    `json:"photoUrl,omitempty"`
	Context      string    `json:"context"`
	Relevant     bool      `json:"relevant"`
	DefectsFound int       `json:"defectsFound"`
	Summary      string    `json:"summary,omitempty"`
	MessageRef   string    `json:"messageRef,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Defect statuses form a linear workflow.
const (
	DefectStatusOpen     = "open"
	DefectStatusFixed    = "fixed"
	DefectStatusVerified = "verified"
)

// Defect is one finding within an analysis. Idx numbers findings from 1; a
// relevant analysis with nothing to report stores a single sentinel row at
// Idx 0 which has no status workflow.
type Defect struct {
	ID             string      `json:"id"`
	AnalysisID     string      `json:"analysisId"`
	UserID         string      `json:"userId"`
	Idx            int         `json:"idx"`
	Name           string      `json:"name"`
	Location       string      `json:"location,omitempty"`
	Criticality    vision.Tier `json:"criticality,omitempty"`
	Cause          string      `json:"cause,omitempty"`
	Norm           string      `json:"norm,omitempty"`
	Recommendation string      `json:"recommendation,omitempty"`
	Status         string      `json:"status,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// IsSentinel reports whether this is the no-defects placeholder row.
func (d Defect) IsSentinel() bool { return d.Idx == 0 }

// CanTransition validates the defect workflow: open -> fixed -> verified,
// forward only.
func CanTransition(from, to string) bool {
	switch from {
	case DefectStatusOpen:
		return to == DefectStatusFixed
	case DefectStatusFixed:
		return to == DefectStatusVerified
	default:
		return false
	}
}

// SentinelDefectName is stored when a relevant photo has no findings.
const SentinelDefectName = "Дефекты не обнаружены"

// Outcome is what a submission produces once the pipeline finishes.
type Outcome struct {
	Analysis Analysis `json:"analysis"`
	Defects  []Defect `json:"defects,omitempty"`
	// Joke is set on rejected submissions.
	Joke string `json:"joke,omitempty"`
	// Billable reports whether a credit was debited.
	Billable bool `json:"billable"`
	// Balance is the user's balance after the debit, when Billable.
	Balance int `json:"balance"`
}
