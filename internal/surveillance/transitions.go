package surveillance

import "github.com/August26/nidsclient-go/internal/model"

type event int

const (
	connected event = iota
	start
	stop
	update
	disconnect
)

func (e event) String() string {
	switch e {
	case connected:
		return "connected"
	case start:
		return "start"
	case stop:
		return "stop"
	case update:
		return "update"
	case disconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// transitions lists every legal move. Events missing for a state leave
// it unchanged. Running is only entered by an explicit start: updates are
// broadcast to every client and may still be in flight after a stop, so
// they never move the state.
var transitions = map[model.ControlState]map[event]model.ControlState{
	model.Disconnected: {
		connected: model.Connected,
	},
	model.Connected: {
		start:      model.Running,
		disconnect: model.Disconnected,
	},
	model.Running: {
		stop:       model.Connected,
		disconnect: model.Disconnected,
	},
}

// next returns the state after ev and whether ev applies in from.
func next(from model.ControlState, ev event) (model.ControlState, bool) {
	to, ok := transitions[from][ev]
	if !ok {
		return from, false
	}
	return to, true
}

// apply moves the session along ev. Callers hold s.mu.
func (s *Session) apply(ev event) bool {
	to, ok := next(s.state, ev)
	if !ok || to == s.state {
		return false
	}
	s.log.Debug("state change", "event", ev.String(), "from", s.state.String(), "to", to.String())
	s.state = to
	return true
}
