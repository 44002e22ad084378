package vision

import (
	"errors"
	"testing"
)

func TestParseRelevanceRejection(t *testing.T) {
	raw := []byte(`{"is_relevant": false, "joke": "Красивый кот, но это не стройплощадка!", "items": [], "expert_summary": null}`)
	res, err := ParseRelevance(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsRelevant {
		t.Fatal("expected not relevant")
	}
	if res.Joke == "" {
		t.Fatal("expected joke text")
	}
}

func TestParseRelevanceAcceptsCodeFence(t *testing.T) {
	raw := []byte("```json\n{\"is_relevant\": true, \"joke\": null}\n```")
	res, err := ParseRelevance(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsRelevant {
		t.Fatal("expected relevant")
	}
}

func TestParseReportNormalizesTiers(t *testing.T) {
	raw := []byte(`{
		"is_relevant": true,
		"items": [
			{"defect": "Трещина в стяжке", "location": "Пол, центр кадра", "criticality": "Критический", "cause": "Нарушение ухода за бетоном", "norm": "СП 29.13330 п. 8.2", "recommendation": "Устранить трещину"},
			{"defect": "Подтеки", "location": "Стена слева", "criticality": "Малозначительный", "cause": "Протечка", "norm": "СП 71.13330", "recommendation": "Просушить"},
			{"defect": "Прочее", "location": "Угол", "criticality": "что-то новое", "cause": "", "norm": "", "recommendation": ""}
		],
		"expert_summary": "Требуется ремонт стяжки."
	}`)
	report, err := ParseReport(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(report.Items))
	}
	if report.Items[0].Criticality != TierCritical {
		t.Fatalf("expected critical, got %s", report.Items[0].Criticality)
	}
	if report.Items[1].Criticality != TierMinor {
		t.Fatalf("expected minor, got %s", report.Items[1].Criticality)
	}
	if report.Items[2].Criticality != TierSignificant {
		t.Fatalf("unknown label should map to significant, got %s", report.Items[2].Criticality)
	}
	if report.Summary != "Требуется ремонт стяжки." {
		t.Fatalf("unexpected summary %q", report.Summary)
	}
}

func TestParseReportMalformed(t *testing.T) {
	if _, err := ParseReport([]byte("not json at all")); !errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}
}

func TestInstructionsCarryContext(t *testing.T) {
	withCtx := RelevanceInstruction("ЖК Пионер, 5 этаж")
	if withCtx == RelevanceInstruction("") {
		t.Fatal("context should change the instruction")
	}
	if got := AnalysisInstruction(""); got == "" {
		t.Fatal("expected a default analysis instruction")
	}
}
