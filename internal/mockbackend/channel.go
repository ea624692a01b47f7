package mockbackend

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

type session struct {
	id string
	ws *websocket.Conn

	wmu sync.Mutex

	mu      sync.Mutex
	stopDet chan struct{}
	tick    int
}

func (s *session) send(pkt string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return websocket.Message.Send(s.ws, pkt)
}

// serveChannel speaks the server side of Engine.IO v4 / Socket.IO v5.
func (b *Backend) serveChannel(ws *websocket.Conn) {
	s := &session{id: uuid.NewString(), ws: ws}

	b.chmu.Lock()
	b.sessions[s.id] = s
	b.chmu.Unlock()

	done := make(chan struct{})
	defer func() {
		close(done)
		b.stopDetection(s)
		b.chmu.Lock()
		delete(b.sessions, s.id)
		b.chmu.Unlock()
		ws.Close()
	}()

	open := fmt.Sprintf(`0{"sid":%q,"upgrades":[],"pingInterval":%d,"pingTimeout":%d,"maxPayload":1000000}`,
		s.id, b.opts.PingInterval.Milliseconds(), b.opts.PingTimeout.Milliseconds())
	if err := s.send(open); err != nil {
		return
	}

	go func() {
		t := time.NewTicker(b.opts.PingInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				if err := s.send("2"); err != nil {
					return
				}
			}
		}
	}()

	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			return
		}
		switch {
		case msg == "3":
		case strings.HasPrefix(msg, "40"):
			if err := s.send(fmt.Sprintf(`40{"sid":%q}`, s.id)); err != nil {
				return
			}
		case msg == "41", msg == "1":
			return
		case strings.HasPrefix(msg, "42"):
			var parts []json.RawMessage
			if err := json.Unmarshal([]byte(msg[2:]), &parts); err != nil || len(parts) == 0 {
				continue
			}
			var name string
			if err := json.Unmarshal(parts[0], &name); err != nil {
				continue
			}
			b.control(s, name)
		}
	}
}

func (b *Backend) control(s *session, name string) {
	b.chmu.Lock()
	b.controls = append(b.controls, name)
	b.chmu.Unlock()
	b.log.Info("control event", "session", s.id, "event", name)

	switch name {
	case "start_detection":
		b.startDetection(s)
	case "stop_detection":
		b.stopDetection(s)
	}
}

func (b *Backend) startDetection(s *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopDet != nil {
		return
	}
	stop := make(chan struct{})
	s.stopDet = stop

	go func() {
		t := time.NewTicker(b.opts.UpdateInterval)
		defer t.Stop()
		for {
			if err := s.send(b.updatePacket(s)); err != nil {
				return
			}
			select {
			case <-stop:
				return
			case <-t.C:
			}
		}
	}()
}

func (b *Backend) stopDetection(s *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopDet != nil {
		close(s.stopDet)
		s.stopDet = nil
	}
}

func (b *Backend) updatePacket(s *session) string {
	s.mu.Lock()
	s.tick++
	n := s.tick
	s.mu.Unlock()

	prob := float64(n%10) / 10
	status := "🟢 Bénin"
	if prob > 0.5 {
		status = "🔴 Malicieux"
	}
	payload := map[string]any{
		"timestamp": time.Now().Format("15:04:05"),
		"results": []map[string]any{
			{
				"Modèle":       "CNN",
				"Statut":       status,
				"Confiance":    fmt.Sprintf("%.1f%%", prob*100),
				"Valeur brute": fmt.Sprintf("%.4f", prob),
			},
		},
	}
	raw, _ := json.Marshal([]any{"update", payload})
	return "42" + string(raw)
}

// Controls returns the control events received so far, in order.
func (b *Backend) Controls() []string {
	b.chmu.Lock()
	defer b.chmu.Unlock()
	return append([]string(nil), b.controls...)
}

// Sessions returns the number of live channel sessions.
func (b *Backend) Sessions() int {
	b.chmu.Lock()
	defer b.chmu.Unlock()
	return len(b.sessions)
}

// DisconnectAll ends every live session with a namespace disconnect.
func (b *Backend) DisconnectAll() {
	for _, s := range b.liveSessions() {
		_ = s.send("41")
	}
}

// DropAll closes every live session's connection without a goodbye,
// like a crashed server would.
func (b *Backend) DropAll() {
	for _, s := range b.liveSessions() {
		_ = s.ws.Close()
	}
}

func (b *Backend) liveSessions() []*session {
	b.chmu.Lock()
	defer b.chmu.Unlock()
	out := make([]*session, 0, len(b.sessions))
	for _, s := range b.sessions {
		out = append(out, s)
	}
	return out
}
