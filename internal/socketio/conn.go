package socketio

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"
)

// ErrDisconnected is returned by Next and Emit once the channel is gone,
// whether the server disconnected us or the connection dropped.
var ErrDisconnected = errors.New("socketio: disconnected")

// ErrConnectRefused is returned by Dial when the server rejects the
// namespace connection.
var ErrConnectRefused = errors.New("socketio: connect refused")

const (
	defaultPingInterval = 25 * time.Second
	defaultPingTimeout  = 20 * time.Second
)

// ContextDialer opens the raw TCP connection. *net.Dialer satisfies it.
type ContextDialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// Conn is a connected Socket.IO client on the default namespace.
type Conn struct {
	ws  *websocket.Conn
	sid string

	readWindow time.Duration

	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// EndpointURL returns the websocket URL for a backend base URL.
func EndpointURL(baseURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/socket.io/"
	q := url.Values{}
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u, nil
}

// Dial connects to the backend at baseURL and joins the default namespace.
func Dial(ctx context.Context, baseURL string, dialer ContextDialer) (*Conn, error) {
	if dialer == nil {
		dialer = &net.Dialer{Timeout: 10 * time.Second}
	}
	endpoint, err := EndpointURL(baseURL)
	if err != nil {
		return nil, err
	}
	origin := "http://" + endpoint.Host
	if endpoint.Scheme == "wss" {
		origin = "https://" + endpoint.Host
	}
	cfg, err := websocket.NewConfig(endpoint.String(), origin)
	if err != nil {
		return nil, fmt.Errorf("websocket config: %w", err)
	}

	addr := endpoint.Host
	if endpoint.Port() == "" {
		port := "80"
		if endpoint.Scheme == "wss" {
			port = "443"
		}
		addr = net.JoinHostPort(endpoint.Hostname(), port)
	}

	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = raw.SetDeadline(deadline)
	}

	netConn := raw
	if endpoint.Scheme == "wss" {
		tlsConn := tls.Client(raw, &tls.Config{ServerName: endpoint.Hostname()})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			raw.Close()
			return nil, fmt.Errorf("tls handshake: %w", err)
		}
		netConn = tlsConn
	}

	ws, err := websocket.NewClient(cfg, netConn)
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("websocket handshake: %w", err)
	}

	c := &Conn{ws: ws}
	if err := c.handshake(); err != nil {
		ws.Close()
		return nil, err
	}
	_ = ws.SetDeadline(time.Time{})
	return c, nil
}

func (c *Conn) handshake() error {
	var msg string
	if err := websocket.Message.Receive(c.ws, &msg); err != nil {
		return fmt.Errorf("read open packet: %w", err)
	}
	if len(msg) == 0 || msg[0] != eioOpen {
		return fmt.Errorf("unexpected first packet %q", truncate(msg))
	}
	var open openPacket
	if err := json.Unmarshal([]byte(msg[1:]), &open); err != nil {
		return fmt.Errorf("decode open packet: %w", err)
	}
	c.setWindow(open)

	if err := c.write(string([]byte{eioMessage, sioConnect})); err != nil {
		return fmt.Errorf("send connect: %w", err)
	}

	for {
		if err := websocket.Message.Receive(c.ws, &msg); err != nil {
			return fmt.Errorf("read connect ack: %w", err)
		}
		switch {
		case msg == string(eioPing):
			if err := c.write(string(eioPong)); err != nil {
				return fmt.Errorf("send pong: %w", err)
			}
		case strings.HasPrefix(msg, string([]byte{eioMessage, sioConnect})):
			var ack struct {
				SID string `json:"sid"`
			}
			if body := msg[2:]; body != "" {
				_ = json.Unmarshal([]byte(body), &ack)
			}
			c.sid = ack.SID
			if c.sid == "" {
				c.sid = open.SID
			}
			return nil
		case strings.HasPrefix(msg, string([]byte{eioMessage, sioConnectError})):
			return fmt.Errorf("%w: %s", ErrConnectRefused, truncate(msg[2:]))
		case len(msg) > 0 && msg[0] == eioNoop:
		default:
			return fmt.Errorf("unexpected packet before connect ack %q", truncate(msg))
		}
	}
}

func (c *Conn) setWindow(open openPacket) {
	interval := time.Duration(open.PingInterval) * time.Millisecond
	if interval <= 0 {
		interval = defaultPingInterval
	}
	timeout := time.Duration(open.PingTimeout) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	c.readWindow = interval + timeout
}

// SID is the Socket.IO session id assigned by the server.
func (c *Conn) SID() string { return c.sid }

// Emit sends an event with optional JSON arguments.
func (c *Conn) Emit(event string, args ...any) error {
	pkt, err := encodeEvent(event, args...)
	if err != nil {
		return err
	}
	if err := c.write(pkt); err != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	return nil
}

// Next blocks until the next event arrives. Pings are answered here.
// It returns ErrDisconnected when the server ends the session or the
// connection is lost, including when Close is called concurrently.
func (c *Conn) Next() (Event, error) {
	for {
		if c.readWindow > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(c.readWindow))
		}
		var msg string
		if err := websocket.Message.Receive(c.ws, &msg); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrDisconnected, err)
		}
		if msg == "" {
			continue
		}

		switch msg[0] {
		case eioPing:
			if err := c.write(string(eioPong) + msg[1:]); err != nil {
				return Event{}, fmt.Errorf("%w: %v", ErrDisconnected, err)
			}
		case eioClose:
			return Event{}, fmt.Errorf("%w: server closed the session", ErrDisconnected)
		case eioMessage:
			if len(msg) < 2 {
				continue
			}
			switch msg[1] {
			case sioEvent:
				ev, err := decodeEvent(msg[2:])
				if err != nil {
					// A malformed event does not end the session.
					continue
				}
				return ev, nil
			case sioDisconnect:
				return Event{}, fmt.Errorf("%w: server disconnected the namespace", ErrDisconnected)
			}
		}
	}
}

// Close leaves the namespace and closes the websocket. Safe to call
// more than once and concurrently with Next.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		_ = c.write(string([]byte{eioMessage, sioDisconnect}))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func (c *Conn) write(pkt string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return websocket.Message.Send(c.ws, pkt)
}

func truncate(s string) string {
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}
