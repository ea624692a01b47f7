package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/August26/nidsclient-go/internal/model"
)

// ContextDialer opens raw connections to the backend (used by the live channel).
type ContextDialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

func withDefaults(cfg model.ProxyConfig) model.ProxyConfig {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 30 * time.Second
	}
	if cfg.HandshakeLimit <= 0 {
		cfg.HandshakeLimit = 10 * time.Second
	}
	return cfg
}

// ParseProxyURL validates a proxy URL. An empty string means no proxy.
func ParseProxyURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("proxy url %q has no host", raw)
	}
	return u, nil
}

// NewHTTPClient builds the client used for batch submissions. timeout
// bounds the whole request, including reading the response body.
func NewHTTPClient(cfg model.ProxyConfig, timeout time.Duration) (*http.Client, error) {
	cfg = withDefaults(cfg)
	u, err := ParseProxyURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: cfg.DialTimeout, KeepAlive: cfg.KeepAlive}).DialContext,
		TLSHandshakeTimeout:   cfg.HandshakeLimit,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          4,
		IdleConnTimeout:       90 * time.Second,
	}

	if u != nil {
		switch u.Scheme {
		case "http", "https":
			tr.Proxy = http.ProxyURL(u)
		default:
			// SOCKS5: the TCP connection to the backend is established through the proxy.
			d, err := socksDialer(u, cfg)
			if err != nil {
				return nil, err
			}
			tr.Proxy = nil
			tr.DialContext = d.DialContext
		}
	}

	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

// NewDialer builds the raw dialer for the live channel.
func NewDialer(cfg model.ProxyConfig) (ContextDialer, error) {
	cfg = withDefaults(cfg)
	u, err := ParseProxyURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	base := &net.Dialer{Timeout: cfg.DialTimeout, KeepAlive: cfg.KeepAlive}
	if u == nil {
		return base, nil
	}
	switch u.Scheme {
	case "http":
		return &connectDialer{proxyURL: u, forward: base}, nil
	case "https":
		return &connectDialer{
			proxyURL:       u,
			forward:        base,
			tlsConfig:      &tls.Config{ServerName: u.Hostname()},
			handshakeLimit: cfg.HandshakeLimit,
		}, nil
	default:
		return socksDialer(u, cfg)
	}
}

func socksDialer(u *url.URL, cfg model.ProxyConfig) (ContextDialer, error) {
	var auth *proxy.Auth
	if u.User != nil {
		pass, _ := u.User.Password()
		auth = &proxy.Auth{
			User:     u.User.Username(),
			Password: pass,
		}
	}

	dialer, err := proxy.SOCKS5("tcp", u.Host, auth, &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.KeepAlive,
	})
	if err != nil {
		return nil, fmt.Errorf("build socks5 dialer: %w", err)
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd, nil
	}
	return dialOnly{dialer}, nil
}

// dialOnly adapts a proxy.Dialer without DialContext. The dial itself
// cannot be interrupted, so cancellation only stops the wait.
type dialOnly struct {
	d proxy.Dialer
}

func (d dialOnly) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		c, err := d.d.Dial(network, addr)
		done <- result{c, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-done:
		return r.conn, r.err
	}
}

// connectDialer tunnels a TCP connection through an HTTP proxy with CONNECT.
// With tlsConfig set the proxy itself is reached over TLS.
type connectDialer struct {
	proxyURL       *url.URL
	forward        *net.Dialer
	tlsConfig      *tls.Config
	handshakeLimit time.Duration
}

func (d *connectDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	raw, err := d.forward.DialContext(ctx, "tcp", d.proxyURL.Host)
	if err != nil {
		return nil, fmt.Errorf("dial proxy: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = raw.SetDeadline(deadline)
		defer raw.SetDeadline(time.Time{})
	}

	conn := raw
	if d.tlsConfig != nil {
		hctx := ctx
		if d.handshakeLimit > 0 {
			var cancel context.CancelFunc
			hctx, cancel = context.WithTimeout(ctx, d.handshakeLimit)
			defer cancel()
		}
		tc := tls.Client(raw, d.tlsConfig)
		if err := tc.HandshakeContext(hctx); err != nil {
			raw.Close()
			return nil, fmt.Errorf("proxy tls handshake: %w", err)
		}
		conn = tc
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if u := d.proxyURL.User; u != nil {
		pass, _ := u.Password()
		cred := base64.StdEncoding.EncodeToString([]byte(u.Username() + ":" + pass))
		req.Header.Set("Proxy-Authorization", "Basic "+cred)
	}
	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("write connect request: %w", err)
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read connect response: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, fmt.Errorf("proxy refused tunnel: %s", resp.Status)
	}
	if br.Buffered() > 0 {
		conn.Close()
		return nil, errors.New("proxy sent unexpected data after CONNECT")
	}
	return conn, nil
}
