package socketio

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/August26/nidsclient-go/internal/mockbackend"
)

func TestEndpointURL(t *testing.T) {
	u, err := EndpointURL("http://localhost:5000/")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got := u.String(); got != "ws://localhost:5000/socket.io/?EIO=4&transport=websocket" {
		t.Fatalf("got %s", got)
	}
	u, err = EndpointURL("https://ids.example.com/api")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if u.Scheme != "wss" || u.Path != "/api/socket.io/" {
		t.Fatalf("got %s", u)
	}
	if _, err := EndpointURL("ftp://x"); err == nil {
		t.Fatalf("expected error for ftp scheme")
	}
}

func TestEventCodec(t *testing.T) {
	pkt, err := encodeEvent("start_detection")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if pkt != `42["start_detection"]` {
		t.Fatalf("got %s", pkt)
	}

	ev, err := decodeEvent(`/admin,7["update",{"timestamp":"10:00:00"}]`)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	var payload struct {
		Timestamp string `json:"timestamp"`
	}
	if ev.Name != "update" || ev.Arg(0, &payload) != nil || payload.Timestamp != "10:00:00" {
		t.Fatalf("bad event: %#v %#v", ev, payload)
	}
	if err := ev.Arg(1, &payload); err == nil {
		t.Fatalf("expected error for missing argument")
	}
	if _, err := decodeEvent(`[]`); err == nil {
		t.Fatalf("expected error for empty array")
	}
}

func startBackend(t *testing.T, opts mockbackend.Options) (*mockbackend.Backend, string) {
	t.Helper()
	b := mockbackend.New(opts)
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)
	return b, srv.URL
}

func TestDialEmitAndReceiveUpdates(t *testing.T) {
	backend, url := startBackend(t, mockbackend.Options{
		UpdateInterval: 20 * time.Millisecond,
		PingInterval:   15 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if conn.SID() == "" {
		t.Fatalf("missing sid")
	}

	if err := conn.Emit("start_detection"); err != nil {
		t.Fatalf("emit: %v", err)
	}

	// Several updates arrive across multiple ping cycles.
	for i := 0; i < 3; i++ {
		ev, err := conn.Next()
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if ev.Name != "update" {
			t.Fatalf("unexpected event %q", ev.Name)
		}
		var payload map[string]any
		if err := ev.Arg(0, &payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if _, ok := payload["results"]; !ok {
			t.Fatalf("payload without results: %v", payload)
		}
	}

	if err := conn.Emit("stop_detection"); err != nil {
		t.Fatalf("emit: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		c := backend.Controls()
		if len(c) == 2 && c[0] == "start_detection" && c[1] == "stop_detection" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("backend saw controls %v", c)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNextReportsServerDisconnect(t *testing.T) {
	backend, url := startBackend(t, mockbackend.Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	go backend.DisconnectAll()

	if _, err := conn.Next(); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("expected ErrDisconnected, got %v", err)
	}
}

func TestNextReturnsWhenClosedLocally(t *testing.T) {
	_, url := startBackend(t, mockbackend.Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.Next()
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	conn.Close()
	conn.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrDisconnected) {
			t.Fatalf("expected ErrDisconnected, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Next did not return after Close")
	}
}

func TestDialFailsWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := Dial(ctx, "http://127.0.0.1:1", nil); err == nil {
		t.Fatalf("expected dial error")
	}
}
