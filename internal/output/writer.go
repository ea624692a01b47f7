package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/August26/nidsclient-go/internal/model"
	"github.com/August26/nidsclient-go/internal/normalize"
)

var (
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// PrintResult prints a human-readable table for the result's mode.
func PrintResult(w io.Writer, res *model.AnalysisResult) {
	switch d := res.Details.(type) {
	case *model.GenericReport:
		printGeneric(w, d)
	case *model.BinaryReport:
		printBinary(w, d)
	case *model.MulticlassReport:
		printMulticlass(w, d)
	default:
		fmt.Fprintln(w, "no details")
	}
	if res.Message != "" {
		fmt.Fprintf(w, "\n%s\n", res.Message)
	}
}

func printGeneric(w io.Writer, d *model.GenericReport) {
	fmt.Fprintf(w, "File: %d rows, %d columns, %.2f MB\n\n", d.FileInfo.Rows, d.FileInfo.Columns, d.FileInfo.FileSizeMB)

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tTYPE\tUNIQUE\tMISSING\tMISSING(%)")
	for _, name := range normalize.SortedKeys(d.ColumnStats) {
		c := d.ColumnStats[name]
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.2f\n", name, dashIfEmpty(c.Type), c.UniqueCount, c.MissingCount, c.MissingPercent)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nMissing values: %d (%.2f%%)\n", d.Missing.TotalMissing, d.Missing.MissingPercentTotal)
	if len(d.Issues) > 0 {
		fmt.Fprintln(w, "Issues:")
		for _, issue := range d.Issues {
			fmt.Fprintf(w, "  - %s\n", yellow(issue))
		}
	}
	if n := len(d.Plots); n > 0 {
		fmt.Fprintf(w, "Plots: %d\n", n)
	}
}

func printBinary(w io.Writer, d *model.BinaryReport) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tPREDICTION\tCONFIDENCE(%)\tBENIGN(%)\tMALICIOUS(%)")
	for _, p := range d.Predictions {
		fmt.Fprintf(tw, "%s\t%s\t%.1f\t%.1f\t%.1f\n",
			dashIfEmpty(p.Model),
			verdict(p.FinalPrediction),
			p.ConfidencePercent,
			p.BenignPercent,
			p.MaliciousPercent,
		)
	}
	tw.Flush()
}

// classColumns returns the declared class names, or the sorted union of
// the per-class count keys when the backend sent none.
func classColumns(d *model.MulticlassReport) []string {
	if len(d.ClassNames) > 0 {
		return d.ClassNames
	}
	seen := map[string]int{}
	for _, p := range d.Predictions {
		for k, v := range p.PerClassCounts {
			seen[k] = v
		}
	}
	return normalize.SortedKeys(seen)
}

func printMulticlass(w io.Writer, d *model.MulticlassReport) {
	classes := classColumns(d)

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprint(tw, "MODEL")
	for _, c := range classes {
		fmt.Fprintf(tw, "\t%s", c)
	}
	fmt.Fprintln(tw, "\tTOTAL")
	for _, p := range d.Predictions {
		fmt.Fprint(tw, dashIfEmpty(p.Model))
		for _, c := range classes {
			fmt.Fprintf(tw, "\t%d", p.PerClassCounts[c])
		}
		fmt.Fprintf(tw, "\t%d\n", p.Total)
	}
	tw.Flush()
}

// PrintSummary prints the aggregated figures.
func PrintSummary(w io.Writer, s model.Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, bold("Summary:"))
	fmt.Fprintf(w, "  Total flows:         %d\n", s.Total)
	if s.Mode != model.GenericAnalysis {
		fmt.Fprintf(w, "  Benign:              %d\n", s.Benign)
		fmt.Fprintf(w, "  Malicious:           %d (%.1f%%)\n", s.Malicious, s.MaliciousRatePct)
	}
	if s.Mode == model.MulticlassDetection {
		fmt.Fprintf(w, "  Total attacks:       %d\n", s.TotalAttacks)
		fmt.Fprintf(w, "  Top attack:          %s\n", dashIfEmpty(s.TopAttack))
		for _, share := range s.AttackShares {
			fmt.Fprintf(w, "    %-18s %6d  %5.1f%%\n", share.Class, share.Count, share.Percent)
		}
	}
	if s.ExecutionTimeSecs > 0 {
		fmt.Fprintf(w, "  Execution time:      %.2f s\n", s.ExecutionTimeSecs)
	}
}

// PrintSnapshot prints one live detection snapshot.
func PrintSnapshot(w io.Writer, snap model.Snapshot) {
	fmt.Fprintf(w, "[%s]\n", dashIfEmpty(snap.Timestamp))
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tSTATUS\tCONFIDENCE\tRAW")
	for _, r := range snap.Results {
		label := verdict(r.Status)
		if r.Status == model.Unknown && r.StatusLabel != "" {
			label = yellow(r.StatusLabel)
		}
		fmt.Fprintf(tw, "%s\t%s\t%.1f%%\t%.4f\n", dashIfEmpty(r.Model), label, r.Confidence, r.RawValue)
	}
	tw.Flush()
}

func verdict(v model.Verdict) string {
	switch v {
	case model.Malicious:
		return red(string(v))
	case model.Benign:
		return green(string(v))
	default:
		return yellow(string(v))
	}
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// WriteFile writes the result and summary to path in json or csv format.
func WriteFile(path string, format string, res *model.AnalysisResult, s model.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch format {
	case "json":
		return writeJSON(f, res, s)
	case "csv":
		return writeCSV(f, res)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// writeJSON writes an object with "mode", "result" and "summary".
func writeJSON(w io.Writer, res *model.AnalysisResult, s model.Summary) error {
	payload := struct {
		Mode    string                `json:"mode"`
		Result  *model.AnalysisResult `json:"result"`
		Summary model.Summary         `json:"summary"`
	}{
		Mode:    res.Mode.String(),
		Result:  res,
		Summary: s,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// writeCSV writes the mode's main table, one row per model or column.
func writeCSV(w io.Writer, res *model.AnalysisResult) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	var rows [][]string
	switch d := res.Details.(type) {
	case *model.GenericReport:
		rows = append(rows, []string{"column", "type", "unique", "missing", "missing_percent"})
		for _, name := range normalize.SortedKeys(d.ColumnStats) {
			c := d.ColumnStats[name]
			rows = append(rows, []string{name, c.Type, strconv.Itoa(c.UniqueCount), strconv.Itoa(c.MissingCount), ftoa(c.MissingPercent)})
		}
	case *model.BinaryReport:
		rows = append(rows, []string{"model", "final_prediction", "confidence_percent", "benign_percent", "malicious_percent"})
		for _, p := range d.Predictions {
			rows = append(rows, []string{p.Model, string(p.FinalPrediction), ftoa(p.ConfidencePercent), ftoa(p.BenignPercent), ftoa(p.MaliciousPercent)})
		}
	case *model.MulticlassReport:
		classes := classColumns(d)
		header := append([]string{"model"}, classes...)
		rows = append(rows, append(header, "total"))
		for _, p := range d.Predictions {
			row := []string{p.Model}
			for _, c := range classes {
				row = append(row, strconv.Itoa(p.PerClassCounts[c]))
			}
			rows = append(rows, append(row, strconv.Itoa(p.Total)))
		}
	default:
		return fmt.Errorf("result has no details")
	}

	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// WriteImages decodes every chart in res into dir as PNG files and returns
// the paths written.
func WriteImages(dir string, res *model.AnalysisResult) ([]string, error) {
	var images []string
	switch d := res.Details.(type) {
	case *model.GenericReport:
		images = d.Plots
	case *model.BinaryReport:
		images = []string{d.Image}
	case *model.MulticlassReport:
		images = []string{d.Image}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for i, img := range images {
		if img == "" {
			continue
		}
		data, err := model.DecodeImage(img)
		if err != nil {
			return paths, fmt.Errorf("image %d: %w", i, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%d.png", res.Mode.String(), i+1))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
