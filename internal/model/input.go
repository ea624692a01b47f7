package model

import (
	"errors"
	"io"
)

// InputFile is a single captured-traffic file picked for submission.
// The contents are not read until the file is submitted; Open hands
// back a fresh reader every time it is called.
type InputFile struct {
	Name      string
	Size      int64
	MediaType string

	open func() (io.ReadCloser, error)
}

// NewInputFile builds an InputFile around an opener for its bytes.
func NewInputFile(name string, size int64, mediaType string, open func() (io.ReadCloser, error)) InputFile {
	if size < 0 {
		size = 0
	}
	return InputFile{
		Name:      name,
		Size:      size,
		MediaType: mediaType,
		open:      open,
	}
}

// Open returns a reader over the raw file bytes.
func (f InputFile) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, errors.New("input file has no content source")
	}
	return f.open()
}
