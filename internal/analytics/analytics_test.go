package analytics

import (
	"math"
	"testing"

	"github.com/August26/nidsclient-go/internal/model"
)

func TestSummarizeBinary(t *testing.T) {
	res := &model.AnalysisResult{
		Mode: model.BinaryDetection,
		Details: &model.BinaryReport{
			Stats: model.BinaryStats{Total: 10, Benign: 3, Malicious: 7},
		},
	}
	s := Summarize(res)
	if s.Total != 10 || s.Malicious != 7 || s.MaliciousRatePct != 70 {
		t.Fatalf("summary = %+v", s)
	}
}

func TestSummarizeMulticlass(t *testing.T) {
	res := &model.AnalysisResult{
		Mode: model.MulticlassDetection,
		Details: &model.MulticlassReport{
			Stats: model.MulticlassStats{
				Total:     200,
				Benign:    150,
				Malicious: 50,
				AttackDistribution: map[string]int{
					"Benign":   150,
					"DDoS":     30,
					"PortScan": 20,
				},
			},
		},
	}
	s := Summarize(res)
	if s.TotalAttacks != 50 {
		t.Fatalf("total attacks = %d, want 50", s.TotalAttacks)
	}
	if s.TopAttack != "DDoS" {
		t.Fatalf("top attack = %q", s.TopAttack)
	}
	if len(s.AttackShares) != 3 || s.AttackShares[0].Class != "Benign" || s.AttackShares[1].Class != "DDoS" {
		t.Fatalf("shares = %+v", s.AttackShares)
	}
	if math.Abs(s.AttackShares[1].Percent-15) > 1e-9 {
		t.Fatalf("DDoS share = %v", s.AttackShares[1].Percent)
	}
	if s.MaliciousRatePct != 25 {
		t.Fatalf("malicious rate = %v", s.MaliciousRatePct)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.Total != 0 || s.AttackShares != nil {
		t.Fatalf("summary = %+v", s)
	}
	s = Summarize(&model.AnalysisResult{Mode: model.MulticlassDetection, Details: &model.MulticlassReport{}})
	if s.MaliciousRatePct != 0 || s.TopAttack != "" {
		t.Fatalf("summary = %+v", s)
	}
}
