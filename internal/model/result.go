package model

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// Verdict is the per-model classification of traffic.
type Verdict string

const (
	Benign    Verdict = "Benign"
	Malicious Verdict = "Malicious"
	// Unknown is used when the backend sends a label that is neither.
	Unknown Verdict = "Unknown"
)

// AnalysisResult is the normalized outcome of one batch submission.
// Details holds exactly one of *GenericReport, *BinaryReport or
// *MulticlassReport, matching Mode.
type AnalysisResult struct {
	Mode                 Mode          `json:"-"`
	Success              bool          `json:"success"`
	ExecutionTimeSeconds float64       `json:"execution_time"`
	Message              string        `json:"message,omitempty"`
	RequestID            string        `json:"request_id,omitempty"`
	Elapsed              time.Duration `json:"-"`
	Details              Details       `json:"details"`
}

// Details is implemented by the three mode-specific report shapes.
type Details interface {
	Mode() Mode
}

// Generic returns the generic analysis report, or nil for other modes.
func (r *AnalysisResult) Generic() *GenericReport {
	g, _ := r.Details.(*GenericReport)
	return g
}

// Binary returns the binary detection report, or nil for other modes.
func (r *AnalysisResult) Binary() *BinaryReport {
	b, _ := r.Details.(*BinaryReport)
	return b
}

// Multiclass returns the multiclass detection report, or nil for other modes.
func (r *AnalysisResult) Multiclass() *MulticlassReport {
	m, _ := r.Details.(*MulticlassReport)
	return m
}

type FileInfo struct {
	Rows       int     `json:"rows"`
	Columns    int     `json:"columns"`
	FileSizeMB float64 `json:"file_size_mb"`
}

type ColumnStat struct {
	Type           string  `json:"type"`
	UniqueCount    int     `json:"unique"`
	MissingCount   int     `json:"missing"`
	MissingPercent float64 `json:"missing_percent"`
}

type MissingAnalysis struct {
	TotalMissing           int                `json:"total_missing"`
	MissingPercentTotal    float64            `json:"missing_percent_total"`
	ColumnsWithMissing     map[string]int     `json:"columns_with_missing"`
	MissingPercentByColumn map[string]float64 `json:"missing_percent_by_column"`
}

// GenericReport describes the exploratory analysis of an uploaded dataset.
type GenericReport struct {
	FileInfo    FileInfo              `json:"file_info"`
	Plots       []string              `json:"plots"`
	ColumnStats map[string]ColumnStat `json:"column_stats"`
	Issues      []string              `json:"issues"`
	Missing     MissingAnalysis       `json:"missing_analysis"`
}

func (*GenericReport) Mode() Mode { return GenericAnalysis }

type BinaryPrediction struct {
	Model             string  `json:"model"`
	FinalPrediction   Verdict `json:"final_prediction"`
	ConfidencePercent float64 `json:"confidence_percent"`
	BenignPercent     float64 `json:"benign_percent"`
	MaliciousPercent  float64 `json:"malicious_percent"`
}

type BinaryStats struct {
	Total     int `json:"total"`
	Benign    int `json:"benign"`
	Malicious int `json:"malicious"`
}

// BinaryReport is the benign/malicious classification of every flow.
type BinaryReport struct {
	Image       string             `json:"image"`
	Predictions []BinaryPrediction `json:"predictions"`
	Stats       BinaryStats        `json:"stats"`
}

func (*BinaryReport) Mode() Mode { return BinaryDetection }

type MulticlassPrediction struct {
	Model          string         `json:"model"`
	PerClassCounts map[string]int `json:"per_class_counts"`
	Total          int            `json:"total"`
}

type MulticlassStats struct {
	Total              int            `json:"total"`
	Benign             int            `json:"benign"`
	Malicious          int            `json:"malicious"`
	AttackDistribution map[string]int `json:"attack_distribution"`
	TopAttack          string         `json:"top_attack"`
}

// MulticlassReport is the per-attack-class breakdown of every flow.
type MulticlassReport struct {
	Image       string                 `json:"image"`
	Predictions []MulticlassPrediction `json:"predictions"`
	Stats       MulticlassStats        `json:"stats"`
	ClassNames  []string               `json:"class_names"`
}

func (*MulticlassReport) Mode() Mode { return MulticlassDetection }

// DecodeImage decodes a base64 image as sent by the backend. A leading
// data URI prefix is tolerated.
func DecodeImage(b64 string) ([]byte, error) {
	s := strings.TrimSpace(b64)
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	if s == "" {
		return nil, errors.New("empty image")
	}
	return base64.StdEncoding.DecodeString(s)
}

// Summary aggregates display figures derived from a result.
type Summary struct {
	Mode              Mode         `json:"-"`
	Total             int          `json:"total"`
	Benign            int          `json:"benign"`
	Malicious         int          `json:"malicious"`
	MaliciousRatePct  float64      `json:"malicious_rate_pct"`
	TotalAttacks      int          `json:"total_attacks"`
	TopAttack         string       `json:"top_attack,omitempty"`
	AttackShares      []ClassShare `json:"attack_shares,omitempty"`
	ExecutionTimeSecs float64      `json:"execution_time_secs"`
}

type ClassShare struct {
	Class   string  `json:"class"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}
