package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/August26/nidsclient-go/internal/model"
	"github.com/August26/nidsclient-go/internal/normalize"
)

func binaryResult() *model.AnalysisResult {
	return &model.AnalysisResult{
		Mode:    model.BinaryDetection,
		Success: true,
		Details: &model.BinaryReport{
			Image: "Zm9v",
			Predictions: []model.BinaryPrediction{
				{Model: "SVM", FinalPrediction: model.Malicious, ConfidencePercent: 97.1, BenignPercent: 2.9, MaliciousPercent: 97.1},
			},
			Stats: model.BinaryStats{Total: 10, Benign: 3, Malicious: 7},
		},
	}
}

func multiclassResult() *model.AnalysisResult {
	return &model.AnalysisResult{
		Mode: model.MulticlassDetection,
		Details: &model.MulticlassReport{
			ClassNames: []string{"Benign", "DDoS"},
			Predictions: []model.MulticlassPrediction{
				{Model: "RF", PerClassCounts: map[string]int{"Benign": 8, "DDoS": 2}, Total: 10},
			},
		},
	}
}

func TestPrintResultTables(t *testing.T) {
	var buf bytes.Buffer
	PrintResult(&buf, binaryResult())
	out := buf.String()
	if !strings.Contains(out, "MODEL") || !strings.Contains(out, "SVM") || !strings.Contains(out, "97.1") {
		t.Fatalf("binary table:\n%s", out)
	}

	buf.Reset()
	PrintResult(&buf, multiclassResult())
	out = buf.String()
	if !strings.Contains(out, "DDoS") || !strings.Contains(out, "TOTAL") {
		t.Fatalf("multiclass table:\n%s", out)
	}
}

func TestPrintSnapshot(t *testing.T) {
	var buf bytes.Buffer
	PrintSnapshot(&buf, model.Snapshot{
		Timestamp: "10:00:00",
		Results: []model.DetectionResult{
			{Model: "CNN", Status: model.Malicious, Confidence: 97.1, RawValue: 0.971},
		},
	})
	out := buf.String()
	if !strings.Contains(out, "[10:00:00]") || !strings.Contains(out, "CNN") || !strings.Contains(out, "97.1%") {
		t.Fatalf("snapshot:\n%s", out)
	}
}

func TestWriteFileJSONAndCSV(t *testing.T) {
	dir := t.TempDir()
	res := binaryResult()

	jsonPath := filepath.Join(dir, "out.json")
	if err := WriteFile(jsonPath, "json", res, model.Summary{Total: 10}); err != nil {
		t.Fatalf("WriteFile json: %v", err)
	}
	raw, _ := os.ReadFile(jsonPath)
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if decoded["mode"] != "predict" {
		t.Fatalf("mode = %v", decoded["mode"])
	}

	csvPath := filepath.Join(dir, "out.csv")
	if err := WriteFile(csvPath, "csv", multiclassResult(), model.Summary{}); err != nil {
		t.Fatalf("WriteFile csv: %v", err)
	}
	f, _ := os.Open(csvPath)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 || strings.Join(rows[0], ",") != "model,Benign,DDoS,total" || strings.Join(rows[1], ",") != "RF,8,2,10" {
		t.Fatalf("rows = %v", rows)
	}

	if err := WriteFile(filepath.Join(dir, "x"), "xml", res, model.Summary{}); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestWriteCSVMulticlassWithoutClassNames(t *testing.T) {
	res, err := normalize.Decode(model.MulticlassDetection, []byte(`{"predictions":[{"Model":"RF","DDoS":7,"BENIGN":3,"Total":10}]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out.csv")
	if err := WriteFile(path, "csv", &res, model.Summary{}); err != nil {
		t.Fatalf("WriteFile csv: %v", err)
	}
	f, _ := os.Open(path)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 || strings.Join(rows[0], ",") != "model,BENIGN,DDoS,total" || strings.Join(rows[1], ",") != "RF,3,7,10" {
		t.Fatalf("rows = %v", rows)
	}

	var buf bytes.Buffer
	PrintResult(&buf, &res)
	if out := buf.String(); !strings.Contains(out, "BENIGN") || !strings.Contains(out, "DDoS") {
		t.Fatalf("table:\n%s", out)
	}
}

func TestWriteImages(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	paths, err := WriteImages(dir, binaryResult())
	if err != nil {
		t.Fatalf("WriteImages: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("paths = %v", paths)
	}
	data, _ := os.ReadFile(paths[0])
	if string(data) != "foo" {
		t.Fatalf("image bytes = %q", data)
	}
}
