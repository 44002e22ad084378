// Package vision defines the contract with the AI photo-analysis providers:
// a fast relevance gate followed by a detailed defect analysis, both returning
// strict JSON.
package vision

import "context"

// Tier is the normalized criticality of a detected defect.
type Tier string

const (
	TierCritical    Tier = "critical"
	TierSignificant Tier = "significant"
	TierMinor       Tier = "minor"
)

// RelevanceResult is the outcome of the fast relevance gate.
type RelevanceResult struct {
	IsRelevant bool
	// Joke is the provider's lighthearted rejection line when the photo is
	// not a construction site. Empty for relevant photos.
	Joke string
}

// DefectItem is a single defect found on the photo.
type DefectItem struct {
	Name           string
	Location       string
	Criticality    Tier
	Cause          string
	Norm           string
	Recommendation string
}

// DefectReport is the result of the detailed analysis stage.
type DefectReport struct {
	Items   []DefectItem
	Summary string
}

// Client is implemented by each AI provider. Both calls carry the
// user-supplied object context so the model can anchor its findings.
type Client interface {
	CheckRelevance(ctx context.Context, photo []byte, objectContext string) (RelevanceResult, error)
	AnalyzeDefects(ctx context.Context, photo []byte, objectContext string) (DefectReport, error)
}
