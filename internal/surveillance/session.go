// Package surveillance keeps a live channel open to the backend, lets the
// operator start and stop real-time detection, and holds the most recent
// snapshot the backend pushed.
package surveillance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/August26/nidsclient-go/internal/metrics"
	"github.com/August26/nidsclient-go/internal/model"
	"github.com/August26/nidsclient-go/internal/normalize"
	"github.com/August26/nidsclient-go/internal/socketio"
	"github.com/August26/nidsclient-go/internal/transport"
)

// ErrNotConnected is returned by Toggle while there is no live channel.
var ErrNotConnected = errors.New("surveillance: not connected")

const (
	eventStart  = "start_detection"
	eventStop   = "stop_detection"
	eventUpdate = "update"

	dialTimeout = 20 * time.Second
)

// Channel is the live connection the session drives. *socketio.Conn
// implements it.
type Channel interface {
	Emit(event string, args ...any) error
	Next() (socketio.Event, error)
	Close() error
}

// DialFunc opens one Channel.
type DialFunc func(ctx context.Context) (Channel, error)

// Options configure a Session. Either BaseURL or Dial must be set.
type Options struct {
	BaseURL string
	Proxy   model.ProxyConfig
	Dial    DialFunc

	Reconnect model.ReconnectPolicy

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// OnChange is called after every control state change.
	OnChange func(model.ControlState)
	// OnSnapshot is called for every update received.
	OnSnapshot func(model.Snapshot)
}

// Session is one surveillance session. Create it with New, start it with
// Open, and always Close it.
type Session struct {
	id       string
	dial     DialFunc
	policy   model.ReconnectPolicy
	log      *slog.Logger
	metrics  *metrics.Metrics
	onChange func(model.ControlState)
	onSnap   func(model.Snapshot)

	mu         sync.Mutex
	state      model.ControlState
	ch         Channel
	snapshot   *model.Snapshot
	connecting bool
	closed     bool
	cancel     context.CancelFunc
	done       chan struct{}
}

// New builds a session. Nothing is dialed until Open.
func New(opts Options) (*Session, error) {
	dial := opts.Dial
	if dial == nil {
		if opts.BaseURL == "" {
			return nil, errors.New("surveillance: base url is required")
		}
		if _, err := socketio.EndpointURL(opts.BaseURL); err != nil {
			return nil, err
		}
		dialer, err := transport.NewDialer(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("build dialer: %w", err)
		}
		baseURL := opts.BaseURL
		dial = func(ctx context.Context) (Channel, error) {
			ctx, cancel := context.WithTimeout(ctx, dialTimeout)
			defer cancel()
			return socketio.Dial(ctx, baseURL, dialer)
		}
	}

	policy := opts.Reconnect
	if policy.Attempts < 0 {
		policy.Attempts = 0
	}
	if policy.Delay <= 0 {
		policy.Delay = model.DefaultReconnectPolicy().Delay
	}

	id := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{
		id:       id,
		dial:     dial,
		policy:   policy,
		log:      logger.With("session", id),
		metrics:  opts.Metrics,
		onChange: opts.OnChange,
		onSnap:   opts.OnSnapshot,
	}, nil
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Open starts connecting in the background. It is a no-op while the
// session is connected or already trying to connect, and after Close.
// Cancelling ctx tears the session down like Close, without waiting.
func (s *Session) Open(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.connecting || s.ch != nil {
		return
	}
	if s.cancel != nil {
		// The previous loop gave up; release its context.
		s.cancel()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.connecting = true
	go s.run(loopCtx, done)
}

// Close stops the connect loop, closes the channel and waits for the
// loop to exit. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	cancel, ch, done := s.cancel, s.ch, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ch != nil {
		_ = ch.Close()
	}
	if done != nil {
		<-done
	}
	return nil
}

// State is the current control state.
func (s *Session) State() model.ControlState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connecting reports whether the session is dialing or waiting to redial.
func (s *Session) Connecting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connecting && s.ch == nil
}

// Snapshot returns the most recent snapshot, if any arrived yet.
func (s *Session) Snapshot() (model.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return model.Snapshot{}, false
	}
	return *s.snapshot, true
}

// StatusText is the operator-facing status line.
func (s *Session) StatusText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case model.Running:
		return "Detection running"
	case model.Connected:
		return "Connected, detection stopped"
	default:
		if s.connecting {
			return "Connecting to server..."
		}
		return "Disconnected from server"
	}
}

// Toggle starts detection when it is stopped and stops it when it is
// running. It returns the new state. While disconnected the request is
// dropped and ErrNotConnected is returned.
func (s *Session) Toggle() (model.ControlState, error) {
	s.mu.Lock()
	if s.ch == nil || s.state == model.Disconnected {
		st := s.state
		s.mu.Unlock()
		return st, ErrNotConnected
	}

	ev, name := start, eventStart
	if s.state == model.Running {
		ev, name = stop, eventStop
	}
	if err := s.ch.Emit(name); err != nil {
		st := s.state
		s.mu.Unlock()
		s.log.Warn("control signal failed", "event", name, "err", err)
		return st, fmt.Errorf("send %s: %w", name, err)
	}
	changed := s.apply(ev)
	st := s.state
	s.mu.Unlock()

	s.metrics.ControlSignal(name)
	s.log.Info("control signal sent", "event", name, "state", st.String())
	if changed {
		s.notify(st)
	}
	return st, nil
}

func (s *Session) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		s.connecting = false
		s.mu.Unlock()
	}()

	used := 0
	retrying := false
	for {
		if retrying {
			if used >= s.policy.Attempts {
				s.log.Error("giving up on live channel", "attempts", used)
				return
			}
			used++
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.policy.Delay):
			}
		}

		ch, err := s.dial(ctx)
		if err != nil {
			s.metrics.ConnectAttempt(false)
			if ctx.Err() != nil {
				return
			}
			s.log.Warn("live channel connect failed", "attempt", used, "err", err)
			retrying = true
			continue
		}
		s.metrics.ConnectAttempt(true)

		if !s.attach(ch) {
			_ = ch.Close()
			return
		}
		err = s.read(ch)
		s.detach()
		_ = ch.Close()
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("live channel lost", "err", err)
		used = 0
		retrying = true
	}
}

func (s *Session) attach(ch Channel) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.ch = ch
	changed := s.apply(connected)
	st := s.state
	s.mu.Unlock()

	s.log.Info("live channel connected")
	if changed {
		s.notify(st)
	}
	return true
}

func (s *Session) detach() {
	s.mu.Lock()
	s.ch = nil
	changed := s.apply(disconnect)
	st := s.state
	s.mu.Unlock()

	if changed {
		s.notify(st)
	}
}

func (s *Session) read(ch Channel) error {
	for {
		ev, err := ch.Next()
		if err != nil {
			return err
		}
		if ev.Name != eventUpdate {
			s.log.Debug("ignoring event", "event", ev.Name)
			continue
		}
		if len(ev.Args) == 0 {
			continue
		}
		raw, err := normalize.DecodeObject(ev.Args[0])
		if err != nil {
			s.log.Debug("malformed update", "err", err)
			continue
		}
		snap := normalize.Snapshot(raw)

		s.mu.Lock()
		s.snapshot = &snap
		s.mu.Unlock()

		s.metrics.Update()
		if s.onSnap != nil {
			s.onSnap(snap)
		}
	}
}

func (s *Session) notify(st model.ControlState) {
	s.metrics.ChannelState(int(st))
	if s.onChange != nil {
		s.onChange(st)
	}
}
