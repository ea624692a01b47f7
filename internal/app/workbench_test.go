package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/August26/nidsclient-go/internal/analysis"
	"github.com/August26/nidsclient-go/internal/intake"
	"github.com/August26/nidsclient-go/internal/mockbackend"
	"github.com/August26/nidsclient-go/internal/model"
)

func newWorkbench(t *testing.T) *Workbench {
	t.Helper()
	srv := httptest.NewServer(mockbackend.New(mockbackend.Options{}).Handler())
	t.Cleanup(srv.Close)
	client, err := analysis.New(analysis.Options{BaseURL: srv.URL, HTTPClient: &http.Client{}, Timeout: time.Minute})
	if err != nil {
		t.Fatalf("analysis.New: %v", err)
	}
	return NewWorkbench(client)
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReselectionResetsResult(t *testing.T) {
	w := newWorkbench(t)

	if _, err := w.SelectPath(writeFile(t, "a.csv", "x,y\n1,2\n3,4\n")); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := w.Submit(context.Background(), model.BinaryDetection); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if w.State() != model.Succeeded || w.Result() == nil {
		t.Fatalf("state=%s result=%v", w.State(), w.Result())
	}

	if _, err := w.SelectPath(writeFile(t, "b.parquet", "PAR1")); err != nil {
		t.Fatalf("reselect: %v", err)
	}
	if w.Result() != nil || w.State() != model.Idle || w.LastError() != "" {
		t.Fatalf("reselection kept old outcome: state=%s result=%v err=%q", w.State(), w.Result(), w.LastError())
	}
	if w.Current().Name != "b.parquet" {
		t.Fatalf("current = %q", w.Current().Name)
	}
}

func TestRejectedSelectionThenSubmit(t *testing.T) {
	w := newWorkbench(t)

	_, err := w.SelectPath(writeFile(t, "notes.txt", "hello"))
	if !errors.Is(err, &intake.ValidationError{Kind: intake.UnsupportedType}) {
		t.Fatalf("expected UnsupportedType, got %v", err)
	}
	_, err = w.Submit(context.Background(), model.GenericAnalysis)
	if !errors.Is(err, &analysis.Error{Kind: analysis.NoFileSelected}) {
		t.Fatalf("expected NoFileSelected, got %v", err)
	}
	if w.LastError() != "Details: please select a file. Verify the server is running." {
		t.Fatalf("LastError = %q", w.LastError())
	}
}
