// Package app ties file selection to batch analysis: picking a new file
// forgets the previous file's result.
package app

import (
	"context"

	"github.com/August26/nidsclient-go/internal/analysis"
	"github.com/August26/nidsclient-go/internal/intake"
	"github.com/August26/nidsclient-go/internal/model"
)

// Workbench owns one intake and one analysis client.
type Workbench struct {
	intake *intake.Intake
	client *analysis.Client
}

func NewWorkbench(client *analysis.Client) *Workbench {
	return &Workbench{
		intake: intake.New(client.Reset),
		client: client,
	}
}

// Select validates the candidates and holds the accepted file.
func (w *Workbench) Select(candidates ...model.InputFile) (*model.InputFile, error) {
	return w.intake.Select(candidates...)
}

// SelectPath selects a file from disk.
func (w *Workbench) SelectPath(path string) (*model.InputFile, error) {
	f, err := intake.FromPath(path)
	if err != nil {
		return nil, err
	}
	return w.intake.Select(f)
}

// Submit sends the held file for analysis in mode.
func (w *Workbench) Submit(ctx context.Context, mode model.Mode) (*model.AnalysisResult, error) {
	return w.client.Submit(ctx, w.intake.Current(), mode)
}

func (w *Workbench) Current() *model.InputFile { return w.intake.Current() }

func (w *Workbench) State() model.RequestState { return w.client.State() }

func (w *Workbench) Result() *model.AnalysisResult { return w.client.Result() }

func (w *Workbench) LastError() string { return w.client.LastError() }
