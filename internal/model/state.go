package model

// RequestState is the lifecycle of a batch submission.
type RequestState int

const (
	Idle RequestState = iota
	Submitting
	Succeeded
	Failed
)

func (s RequestState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether a new submission may start from s.
func (s RequestState) Terminal() bool {
	return s == Succeeded || s == Failed
}

// ControlState is the surveillance session's view of the live channel.
type ControlState int

const (
	Disconnected ControlState = iota
	Connected                 // connected, detection not running
	Running
)

func (s ControlState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "idle"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}
