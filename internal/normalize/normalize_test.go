package normalize

import (
	"math"
	"reflect"
	"testing"

	"github.com/August26/nidsclient-go/internal/model"
)

func TestFiniteNonNegative(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{12.5, 12.5},
		{0.0, 0},
		{-3.0, 0},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{"42", 42},
		{"91.2%", 91.2},
		{"NaN", 0},
		{"abc", 0},
		{nil, 0},
		{true, 0},
		{map[string]any{}, 0},
	}
	for _, c := range cases {
		if got := FiniteNonNegative(c.in); got != c.want {
			t.Fatalf("FiniteNonNegative(%#v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestDecodeBinaryScenario(t *testing.T) {
	body := []byte(`{"success":true,"stats":{"total":100,"benign":80,"malicious":20},"image":"Zm9v",
		"predictions":[{"Model":"SVM","Final Prediction":"Benign","Confidence (%)":91.2,"Benign (%)":91.2,"Malicious (%)":8.8}]}`)

	res, err := Decode(model.BinaryDetection, body)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	b := res.Binary()
	if b == nil {
		t.Fatalf("expected binary report, got %#v", res.Details)
	}
	if !res.Success {
		t.Fatalf("expected success")
	}
	if b.Stats.Total != 100 || b.Stats.Benign != 80 || b.Stats.Malicious != 20 {
		t.Fatalf("bad stats: %#v", b.Stats)
	}
	if len(b.Predictions) != 1 || b.Predictions[0].FinalPrediction != model.Benign {
		t.Fatalf("bad predictions: %#v", b.Predictions)
	}
	if b.Predictions[0].Model != "SVM" || b.Predictions[0].MaliciousPercent != 8.8 {
		t.Fatalf("bad prediction fields: %#v", b.Predictions[0])
	}
	img, err := model.DecodeImage(b.Image)
	if err != nil || string(img) != "foo" {
		t.Fatalf("image did not decode: %q %v", img, err)
	}
}

func TestDecodeMulticlass(t *testing.T) {
	body := []byte(`{"success":true,"image":"","classNames":["Benign","DDoS","PortScan"],
		"predictions":[{"Model":"RF","Benign":70,"DDoS":20,"PortScan":10,"Total":100}],
		"stats":{"total":100,"benign":70,"malicious":30,"attack_distribution":{"Benign":70,"DDoS":20,"PortScan":"10"},"top_attack":"DDoS"}}`)

	res, err := Decode(model.MulticlassDetection, body)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	m := res.Multiclass()
	if m == nil {
		t.Fatalf("expected multiclass report")
	}
	p := m.Predictions[0]
	if p.Model != "RF" || p.Total != 100 {
		t.Fatalf("bad prediction: %#v", p)
	}
	if _, ok := p.PerClassCounts["Model"]; ok {
		t.Fatalf("Model leaked into class counts: %#v", p.PerClassCounts)
	}
	if p.PerClassCounts["DDoS"] != 20 || len(p.PerClassCounts) != 3 {
		t.Fatalf("bad class counts: %#v", p.PerClassCounts)
	}
	if m.Stats.AttackDistribution["PortScan"] != 10 || m.Stats.TopAttack != "DDoS" {
		t.Fatalf("bad stats: %#v", m.Stats)
	}
	if !reflect.DeepEqual(m.ClassNames, []string{"Benign", "DDoS", "PortScan"}) {
		t.Fatalf("bad class names: %#v", m.ClassNames)
	}
}

func TestDecodeGenericWithBackendKeys(t *testing.T) {
	body := []byte(`{"success":true,"message":"done","execution_time":"3.5",
		"file_info":{"rows":1000,"columns":"12","file_size_mb":1.25},
		"plots":["aaa",7,"bbb"],
		"column_stats":{"Flow Duration":{"type":"float64","unique":900,"manquants":3,"% manquants":0.3},"Label":"oops"},
		"missing_analysis":{"total_missing":3,"missing_percent_total":NaN,"columns_with_missing":{"Flow Duration":3}},
		"issues":["Colonne constante: X = 0", null]}`)

	res, err := Decode(model.GenericAnalysis, body)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	g := res.Generic()
	if g == nil {
		t.Fatalf("expected generic report")
	}
	if res.ExecutionTimeSeconds != 3.5 || res.Message != "done" {
		t.Fatalf("bad common fields: %#v", res)
	}
	if g.FileInfo.Rows != 1000 || g.FileInfo.Columns != 12 || g.FileInfo.FileSizeMB != 1.25 {
		t.Fatalf("bad file info: %#v", g.FileInfo)
	}
	if !reflect.DeepEqual(g.Plots, []string{"aaa", "bbb"}) {
		t.Fatalf("bad plots: %#v", g.Plots)
	}
	fd := g.ColumnStats["Flow Duration"]
	if fd.Type != "float64" || fd.UniqueCount != 900 || fd.MissingCount != 3 || fd.MissingPercent != 0.3 {
		t.Fatalf("bad column stat: %#v", fd)
	}
	if label := g.ColumnStats["Label"]; label != (model.ColumnStat{}) {
		t.Fatalf("malformed column stat should be zero, got %#v", label)
	}
	if g.Missing.MissingPercentTotal != 0 || g.Missing.TotalMissing != 3 {
		t.Fatalf("bad missing analysis: %#v", g.Missing)
	}
	if len(g.Issues) != 1 {
		t.Fatalf("bad issues: %#v", g.Issues)
	}
}

func TestNormalizeMalformedPayloadsAreTotal(t *testing.T) {
	payloads := []map[string]any{
		nil,
		{},
		{"success": "yes", "stats": "none", "predictions": map[string]any{"a": 1}, "image": 5},
		{"stats": map[string]any{"total": -4, "benign": math.NaN(), "malicious": math.Inf(-1)}},
		{"predictions": []any{nil, "x", 3, map[string]any{"Confidence (%)": -1, "Model": nil}}},
		{"file_info": []any{1, 2}, "column_stats": []any{}, "plots": nil, "issues": "none", "execution_time": -2},
		{"stats": map[string]any{"attack_distribution": []any{"DDoS"}, "top_attack": nil}},
	}

	for _, p := range payloads {
		for _, mode := range model.Modes {
			res := Normalize(mode, p)
			if res.ExecutionTimeSeconds < 0 || math.IsNaN(res.ExecutionTimeSeconds) {
				t.Fatalf("bad execution time for %v: %v", mode, res.ExecutionTimeSeconds)
			}
			if res.Details == nil || res.Details.Mode() != mode {
				t.Fatalf("details missing for %v: %#v", mode, res.Details)
			}
			checkTotal(t, res)
		}
	}
}

func checkTotal(t *testing.T, res model.AnalysisResult) {
	t.Helper()
	finite := func(name string, f float64) {
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			t.Fatalf("%s not finite non-negative: %v", name, f)
		}
	}
	switch d := res.Details.(type) {
	case *model.GenericReport:
		if d.Plots == nil || d.Issues == nil || d.ColumnStats == nil ||
			d.Missing.ColumnsWithMissing == nil || d.Missing.MissingPercentByColumn == nil {
			t.Fatalf("nil collection in generic report: %#v", d)
		}
		finite("file_size_mb", d.FileInfo.FileSizeMB)
		if d.FileInfo.Rows < 0 || d.FileInfo.Columns < 0 {
			t.Fatalf("negative file info: %#v", d.FileInfo)
		}
	case *model.BinaryReport:
		if d.Predictions == nil {
			t.Fatalf("nil predictions")
		}
		if d.Stats.Total < 0 || d.Stats.Benign < 0 || d.Stats.Malicious < 0 {
			t.Fatalf("negative stats: %#v", d.Stats)
		}
		for _, p := range d.Predictions {
			finite("confidence", p.ConfidencePercent)
			finite("benign", p.BenignPercent)
			finite("malicious", p.MaliciousPercent)
			if p.FinalPrediction == "" {
				t.Fatalf("empty verdict")
			}
		}
	case *model.MulticlassReport:
		if d.Predictions == nil || d.ClassNames == nil || d.Stats.AttackDistribution == nil {
			t.Fatalf("nil collection in multiclass report: %#v", d)
		}
		for _, p := range d.Predictions {
			if p.PerClassCounts == nil || p.Total < 0 {
				t.Fatalf("bad prediction: %#v", p)
			}
		}
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	raw, err := DecodeObject([]byte(`{"success":true,"stats":{"total":"7","attack_distribution":{"A":1}},
		"predictions":[{"Model":"M","A":1,"Total":1}],"classNames":["A"]}`))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	for _, mode := range model.Modes {
		first := Normalize(mode, raw)
		second := Normalize(mode, raw)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("normalize not idempotent for %v:\n%#v\n%#v", mode, first, second)
		}
	}
}

func TestDecodeRejectsNonObject(t *testing.T) {
	if _, err := Decode(model.BinaryDetection, []byte(`[1,2]`)); err == nil {
		t.Fatalf("expected error for array body")
	}
	if _, err := Decode(model.BinaryDetection, []byte(`<html>`)); err == nil {
		t.Fatalf("expected error for html body")
	}
}

func TestSanitizeNonFinite(t *testing.T) {
	in := []byte(`{"a":NaN,"b":"NaN stays","c":[Infinity,-Infinity],"d":"esc \" NaN"}`)
	want := `{"a":null,"b":"NaN stays","c":[null,null],"d":"esc \" NaN"}`
	if got := string(SanitizeNonFinite(in)); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestSnapshotFrenchKeys(t *testing.T) {
	raw := map[string]any{
		"timestamp": "12:00:03",
		"results": []any{
			map[string]any{"Modèle": "CNN", "Statut": "🔴 Malicieux", "Confiance": "97.1%", "Valeur brute": "0.9710"},
			map[string]any{"Modèle": "LSTM", "Statut": "🟢 Bénin", "Confiance": "12.0%", "Valeur brute": "0.1200"},
			"garbage",
		},
	}
	snap := Snapshot(raw)
	if snap.Timestamp != "12:00:03" || len(snap.Results) != 3 {
		t.Fatalf("bad snapshot: %#v", snap)
	}
	if snap.Results[0].Status != model.Malicious || snap.Results[0].Confidence != 97.1 || snap.Results[0].RawValue != 0.971 {
		t.Fatalf("bad first result: %#v", snap.Results[0])
	}
	if snap.Results[1].Status != model.Benign {
		t.Fatalf("bad second result: %#v", snap.Results[1])
	}
	if snap.Results[2].Status != model.Unknown {
		t.Fatalf("garbage entry should be unknown: %#v", snap.Results[2])
	}
	if !snap.Malicious() {
		t.Fatalf("snapshot should be flagged")
	}
}
