package normalize

import "github.com/August26/nidsclient-go/internal/model"

// Snapshot normalizes an `update` event payload.
func Snapshot(raw map[string]any) model.Snapshot {
	if raw == nil {
		raw = map[string]any{}
	}
	results := Array(raw["results"])
	snap := model.Snapshot{
		Timestamp: String(raw["timestamp"]),
		Results:   make([]model.DetectionResult, 0, len(results)),
	}
	for _, r := range results {
		obj := Object(r)
		label := String(First(obj, "Statut", "status"))
		snap.Results = append(snap.Results, model.DetectionResult{
			Model:       String(First(obj, "Modèle", "model")),
			Status:      ParseVerdict(label),
			StatusLabel: label,
			Confidence:  FiniteNonNegative(First(obj, "Confiance", "confidence")),
			RawValue:    FiniteNonNegative(First(obj, "Valeur brute", "raw_value")),
		})
	}
	return snap
}
