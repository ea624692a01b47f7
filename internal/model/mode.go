package model

import (
	"fmt"
	"strings"
)

// Mode selects which inference endpoint a file is submitted to and which
// response shape comes back.
type Mode int

const (
	GenericAnalysis Mode = iota + 1
	BinaryDetection
	MulticlassDetection
)

// Modes lists every supported mode in display order.
var Modes = []Mode{GenericAnalysis, BinaryDetection, MulticlassDetection}

// Path returns the backend endpoint bound to the mode.
func (m Mode) Path() string {
	switch m {
	case GenericAnalysis:
		return "/analyse"
	case BinaryDetection:
		return "/predict"
	case MulticlassDetection:
		return "/predict-multiclass"
	default:
		return ""
	}
}

func (m Mode) String() string {
	switch m {
	case GenericAnalysis:
		return "analyse"
	case BinaryDetection:
		return "predict"
	case MulticlassDetection:
		return "predict-multiclass"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Valid reports whether m is one of the three known modes.
func (m Mode) Valid() bool {
	return m >= GenericAnalysis && m <= MulticlassDetection
}

// ParseMode accepts the endpoint names (analyse, predict, predict-multiclass)
// as well as the short aliases generic, binary and multiclass.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "analyse", "analyze", "generic":
		return GenericAnalysis, nil
	case "predict", "binary":
		return BinaryDetection, nil
	case "predict-multiclass", "multiclass":
		return MulticlassDetection, nil
	default:
		return 0, fmt.Errorf("unknown analysis mode %q", s)
	}
}
