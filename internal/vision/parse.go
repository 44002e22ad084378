package vision

import (
	"encoding/json"
	"fmt"
	"strings"
)

// wireResult is the JSON shape both stages ask the model for. The field names
// and the Russian criticality labels are part of the prompt contract.
type wireResult struct {
	IsRelevant    bool       `json:"is_relevant"`
	Joke          *string    `json:"joke"`
	Items         []wireItem `json:"items"`
	ExpertSummary *string    `json:"expert_summary"`
}

type wireItem struct {
	Defect         string `json:"defect"`
	Location       string `json:"location"`
	Criticality    string `json:"criticality"`
	Cause          string `json:"cause"`
	Norm           string `json:"norm"`
	Recommendation string `json:"recommendation"`
}

// ParseRelevance decodes a relevance-stage payload. Decode failures wrap
// ErrMalformedOutput.
func ParseRelevance(raw []byte) (RelevanceResult, error) {
	wire, err := decodeWire(raw)
	if err != nil {
		return RelevanceResult{}, err
	}
	out := RelevanceResult{IsRelevant: wire.IsRelevant}
	if wire.Joke != nil {
		out.Joke = strings.TrimSpace(*wire.Joke)
	}
	return out, nil
}

// ParseReport decodes a detailed-analysis payload. Decode failures wrap
// ErrMalformedOutput.
func ParseReport(raw []byte) (DefectReport, error) {
	wire, err := decodeWire(raw)
	if err != nil {
		return DefectReport{}, err
	}
	report := DefectReport{Items: make([]DefectItem, 0, len(wire.Items))}
	if wire.ExpertSummary != nil {
		report.Summary = strings.TrimSpace(*wire.ExpertSummary)
	}
	for _, item := range wire.Items {
		report.Items = append(report.Items, DefectItem{
			Name:           strings.TrimSpace(item.Defect),
			Location:       strings.TrimSpace(item.Location),
			Criticality:    normalizeTier(item.Criticality),
			Cause:          strings.TrimSpace(item.Cause),
			Norm:           strings.TrimSpace(item.Norm),
			Recommendation: strings.TrimSpace(item.Recommendation),
		})
	}
	return report, nil
}

func decodeWire(raw []byte) (wireResult, error) {
	trimmed := stripCodeFence(raw)
	var wire wireResult
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return wireResult{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return wire, nil
}

// stripCodeFence tolerates models that wrap the JSON in a markdown fence
// despite the JSON response mode.
func stripCodeFence(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(s, "```") {
		return raw
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return []byte(strings.TrimSpace(s))
}

// normalizeTier maps the prompt's Russian criticality labels onto the stored
// tiers. Unrecognized labels land on the middle tier rather than dropping the
// defect.
func normalizeTier(label string) Tier {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "критический", "critical":
		return TierCritical
	case "значительный", "significant":
		return TierSignificant
	case "малозначительный", "minor":
		return TierMinor
	default:
		return TierSignificant
	}
}
