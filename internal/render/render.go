// Package render projects classification results into the shape the
// page displays. It never mutates workflow state.
package render

import (
	"fmt"
	"strings"

	"imgclassd/internal/model"
)

// Placeholder is shown when there is no result to display.
const Placeholder = "Upload an image and pick a model to see predictions."

// Entry is one displayable result row.
type Entry struct {
	Rank  int    `json:"rank"`
	Label string `json:"label"`
	Score string `json:"score"`
}

// Results converts predictions into display entries: 1-based rank,
// underscores in labels replaced with spaces (the underlying label is
// left untouched), and the score as a percentage with one decimal.
func Results(preds []model.Prediction) []Entry {
	entries := make([]Entry, 0, len(preds))
	for i, p := range preds {
		entries = append(entries, Entry{
			Rank:  i + 1,
			Label: strings.ReplaceAll(p.Label, "_", " "),
			Score: fmt.Sprintf("%.1f%%", float64(p.Score)*100),
		})
	}
	return entries
}
