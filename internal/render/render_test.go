package render

import (
	"testing"

	"imgclassd/internal/model"
)

func TestResults(t *testing.T) {
	preds := []model.Prediction{
		{Label: "tabby_cat", Score: 0.82},
		{Label: "tiger_cat", Score: 0.10},
		{Label: "egyptian_cat", Score: 0.041},
	}

	entries := Results(preds)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	if entries[0].Rank != 1 || entries[0].Label != "tabby cat" || entries[0].Score != "82.0%" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Rank != 2 || entries[1].Label != "tiger cat" || entries[1].Score != "10.0%" {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
	if entries[2].Score != "4.1%" {
		t.Errorf("expected one decimal place, got %q", entries[2].Score)
	}

	// Rendering must not mutate the underlying labels.
	if preds[0].Label != "tabby_cat" {
		t.Errorf("prediction label mutated: %q", preds[0].Label)
	}
}

func TestResultsEmpty(t *testing.T) {
	entries := Results(nil)
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
	if Placeholder == "" {
		t.Error("placeholder prompt must not be empty")
	}
}
