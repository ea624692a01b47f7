// Package normalize turns backend payloads into the typed result model.
// The backend evolves independently, so every field is coerced here and
// nothing downstream has to check for missing or malformed values.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/August26/nidsclient-go/internal/model"
)

// Decode parses a raw response body and normalizes it for mode.
// Bare NaN/Infinity tokens, which Python's json module emits, are read
// as null.
func Decode(mode model.Mode, body []byte) (model.AnalysisResult, error) {
	raw, err := DecodeObject(body)
	if err != nil {
		return model.AnalysisResult{}, err
	}
	return Normalize(mode, raw), nil
}

// DecodeObject parses body into a JSON object.
func DecodeObject(body []byte) (map[string]any, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(SanitizeNonFinite(body)))
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode response: expected object, got %s", describe(v))
	}
	return obj, nil
}

// Normalize builds an AnalysisResult from raw. It never fails: absent or
// malformed fields become zero values and empty collections.
func Normalize(mode model.Mode, raw map[string]any) model.AnalysisResult {
	if raw == nil {
		raw = map[string]any{}
	}

	res := model.AnalysisResult{
		Mode:                 mode,
		Success:              raw["success"] == true,
		ExecutionTimeSeconds: FiniteNonNegative(raw["execution_time"]),
		Message:              String(raw["message"]),
	}

	switch mode {
	case model.GenericAnalysis:
		res.Details = generic(raw)
	case model.BinaryDetection:
		res.Details = binary(raw)
	case model.MulticlassDetection:
		res.Details = multiclass(raw)
	}
	return res
}

func generic(raw map[string]any) *model.GenericReport {
	info := Object(raw["file_info"])
	missing := Object(raw["missing_analysis"])

	stats := Object(raw["column_stats"])
	columns := make(map[string]model.ColumnStat, len(stats))
	for name, v := range stats {
		col := Object(v)
		columns[name] = model.ColumnStat{
			Type:           String(col["type"]),
			UniqueCount:    Count(First(col, "unique", "unique_count")),
			MissingCount:   Count(First(col, "missing", "missing_count", "manquants")),
			MissingPercent: FiniteNonNegative(First(col, "missing_percent", "% missing", "% manquants")),
		}
	}

	return &model.GenericReport{
		FileInfo: model.FileInfo{
			Rows:       Count(First(info, "rows", "row_count")),
			Columns:    Count(First(info, "columns", "column_count")),
			FileSizeMB: FiniteNonNegative(info["file_size_mb"]),
		},
		Plots:       Strings(raw["plots"]),
		ColumnStats: columns,
		Issues:      Strings(raw["issues"]),
		Missing: model.MissingAnalysis{
			TotalMissing:           Count(missing["total_missing"]),
			MissingPercentTotal:    FiniteNonNegative(missing["missing_percent_total"]),
			ColumnsWithMissing:     Counts(missing["columns_with_missing"]),
			MissingPercentByColumn: Floats(missing["missing_percent_by_column"]),
		},
	}
}

func binary(raw map[string]any) *model.BinaryReport {
	stats := Object(raw["stats"])
	preds := Array(raw["predictions"])

	out := &model.BinaryReport{
		Image:       String(raw["image"]),
		Predictions: make([]model.BinaryPrediction, 0, len(preds)),
		Stats: model.BinaryStats{
			Total:     Count(stats["total"]),
			Benign:    Count(stats["benign"]),
			Malicious: Count(stats["malicious"]),
		},
	}
	for _, p := range preds {
		obj := Object(p)
		out.Predictions = append(out.Predictions, model.BinaryPrediction{
			Model:             String(First(obj, "Model", "model")),
			FinalPrediction:   ParseVerdict(String(First(obj, "Final Prediction", "final_prediction"))),
			ConfidencePercent: FiniteNonNegative(First(obj, "Confidence (%)", "confidence")),
			BenignPercent:     FiniteNonNegative(First(obj, "Benign (%)", "benign")),
			MaliciousPercent:  FiniteNonNegative(First(obj, "Malicious (%)", "malicious")),
		})
	}
	return out
}

func multiclass(raw map[string]any) *model.MulticlassReport {
	stats := Object(raw["stats"])
	preds := Array(raw["predictions"])

	out := &model.MulticlassReport{
		Image:       String(raw["image"]),
		Predictions: make([]model.MulticlassPrediction, 0, len(preds)),
		Stats: model.MulticlassStats{
			Total:              Count(stats["total"]),
			Benign:             Count(stats["benign"]),
			Malicious:          Count(stats["malicious"]),
			AttackDistribution: Counts(stats["attack_distribution"]),
			TopAttack:          String(stats["top_attack"]),
		},
		ClassNames: Strings(raw["classNames"]),
	}
	for _, p := range preds {
		obj := Object(p)
		counts := make(map[string]int, len(obj))
		for k, v := range obj {
			switch k {
			case "Model", "model", "Total", "total":
				continue
			}
			counts[k] = Count(v)
		}
		out.Predictions = append(out.Predictions, model.MulticlassPrediction{
			Model:          String(First(obj, "Model", "model")),
			PerClassCounts: counts,
			Total:          Count(First(obj, "Total", "total")),
		})
	}
	return out
}

// ParseVerdict maps a backend label onto a Verdict. The live channel
// uses decorated French labels ("🔴 Malicieux", "🟢 Bénin").
func ParseVerdict(label string) model.Verdict {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "malic"):
		return model.Malicious
	case strings.Contains(l, "benign"), strings.Contains(l, "bénin"), strings.Contains(l, "benin"):
		return model.Benign
	default:
		return model.Unknown
	}
}
