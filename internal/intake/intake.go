package intake

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/August26/nidsclient-go/internal/model"
)

const (
	csvMediaType     = "text/csv"
	parquetExtension = ".parquet"
)

// ErrorKind classifies a rejected selection.
type ErrorKind int

const (
	UnsupportedType ErrorKind = iota + 1
	TooManyFiles
	EmptySelection
)

func (k ErrorKind) String() string {
	switch k {
	case UnsupportedType:
		return "unsupported type"
	case TooManyFiles:
		return "too many files"
	case EmptySelection:
		return "empty selection"
	default:
		return "unknown"
	}
}

// ValidationError is returned by Select. It never involves the network.
type ValidationError struct {
	Kind ErrorKind
	Name string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case UnsupportedType:
		return fmt.Sprintf("only CSV (.csv) and Parquet (.parquet) files are accepted, got %q", e.Name)
	case TooManyFiles:
		return "only one file can be analysed at a time"
	case EmptySelection:
		return "no file selected"
	default:
		return "invalid selection"
	}
}

// Is lets errors.Is match on kind: errors.Is(err, &ValidationError{Kind: TooManyFiles}).
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Kind == e.Kind
}

// Intake holds at most one selected input file.
type Intake struct {
	mu      sync.Mutex
	current *model.InputFile
	onReset func()
}

// New returns an Intake. onReset, if not nil, runs after every accepted
// selection so the owner can clear results and errors downstream.
func New(onReset func()) *Intake {
	return &Intake{onReset: onReset}
}

// Select validates the offered candidates and, when exactly one acceptable
// file is offered, makes it the current file. A rejected selection
// discards the previously held file.
func (in *Intake) Select(candidates ...model.InputFile) (*model.InputFile, error) {
	file, err := validate(candidates)

	in.mu.Lock()
	if err != nil {
		in.current = nil
		in.mu.Unlock()
		return nil, err
	}
	f := file
	in.current = &f
	reset := in.onReset
	in.mu.Unlock()

	if reset != nil {
		reset()
	}
	return &f, nil
}

// Current returns the held file, or nil.
func (in *Intake) Current() *model.InputFile {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.current
}

// Clear drops the held file.
func (in *Intake) Clear() {
	in.mu.Lock()
	in.current = nil
	in.mu.Unlock()
}

func validate(candidates []model.InputFile) (model.InputFile, error) {
	switch len(candidates) {
	case 0:
		return model.InputFile{}, &ValidationError{Kind: EmptySelection}
	case 1:
	default:
		return model.InputFile{}, &ValidationError{Kind: TooManyFiles}
	}

	c := candidates[0]
	if !Accepts(c.Name, c.MediaType) {
		return model.InputFile{}, &ValidationError{Kind: UnsupportedType, Name: c.Name}
	}
	return c, nil
}

// Accepts reports whether a file is a CSV by media type or a Parquet
// file by name.
func Accepts(name, mediaType string) bool {
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil && mt == csvMediaType {
		return true
	}
	return strings.HasSuffix(strings.ToLower(name), parquetExtension)
}

// FromPath builds a candidate for the file at path. Only metadata is read;
// the contents are opened on demand at submission time.
func FromPath(path string) (model.InputFile, error) {
	st, err := os.Stat(path)
	if err != nil {
		return model.InputFile{}, fmt.Errorf("stat input file: %w", err)
	}
	if st.IsDir() {
		return model.InputFile{}, fmt.Errorf("input %q is a directory", path)
	}

	name := filepath.Base(path)
	open := func() (io.ReadCloser, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input file: %w", err)
		}
		return f, nil
	}
	return model.NewInputFile(name, st.Size(), MediaTypeFor(name), open), nil
}

// MediaTypeFor guesses the declared media type from the file extension.
func MediaTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".csv":
		return csvMediaType
	case parquetExtension, "":
		return "application/octet-stream"
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	return "application/octet-stream"
}
