package analytics

import (
	"sort"
	"strings"

	"github.com/August26/nidsclient-go/internal/model"
)

// Summarize derives the display figures for a result: totals, the
// malicious rate and, for multiclass results, each class's share.
func Summarize(res *model.AnalysisResult) model.Summary {
	if res == nil {
		return model.Summary{}
	}
	s := model.Summary{
		Mode:              res.Mode,
		ExecutionTimeSecs: res.ExecutionTimeSeconds,
	}

	switch d := res.Details.(type) {
	case *model.GenericReport:
		s.Total = d.FileInfo.Rows
	case *model.BinaryReport:
		s.Total = d.Stats.Total
		s.Benign = d.Stats.Benign
		s.Malicious = d.Stats.Malicious
		s.TotalAttacks = d.Stats.Malicious
	case *model.MulticlassReport:
		summarizeMulticlass(&s, d)
	}

	if s.Total > 0 {
		s.MaliciousRatePct = float64(s.Malicious) / float64(s.Total) * 100.0
	}
	return s
}

func summarizeMulticlass(s *model.Summary, d *model.MulticlassReport) {
	s.Total = d.Stats.Total
	s.Benign = d.Stats.Benign
	s.Malicious = d.Stats.Malicious
	s.TopAttack = d.Stats.TopAttack

	var sum int
	for class, n := range d.Stats.AttackDistribution {
		sum += n
		if !isBenign(class) {
			s.TotalAttacks += n
		}
	}
	denom := s.Total
	if denom <= 0 {
		denom = sum
	}

	for class, n := range d.Stats.AttackDistribution {
		share := model.ClassShare{Class: class, Count: n}
		if denom > 0 {
			share.Percent = float64(n) / float64(denom) * 100.0
		}
		s.AttackShares = append(s.AttackShares, share)
	}
	sort.Slice(s.AttackShares, func(i, j int) bool {
		a, b := s.AttackShares[i], s.AttackShares[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Class < b.Class
	})

	if s.TopAttack == "" {
		for _, share := range s.AttackShares {
			if !isBenign(share.Class) && share.Count > 0 {
				s.TopAttack = share.Class
				break
			}
		}
	}
}

func isBenign(class string) bool {
	return strings.EqualFold(strings.TrimSpace(class), "benign")
}
