// Package analysis submits captured traffic to the backend for one of the
// three batch analysis modes and tracks the outcome of the latest request.
package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/August26/nidsclient-go/internal/metrics"
	"github.com/August26/nidsclient-go/internal/model"
	"github.com/August26/nidsclient-go/internal/normalize"
	"github.com/August26/nidsclient-go/internal/transport"
)

const (
	// DefaultTimeout bounds one submission. Large captures take minutes
	// to score on the backend.
	DefaultTimeout = 900 * time.Second

	// DefaultMaxResponseBytes caps how much of a response body is read.
	// Results carry base64 charts, so this is generous.
	DefaultMaxResponseBytes = 64 << 20

	formField = "file"
)

// Options configure a Client.
type Options struct {
	BaseURL string

	// HTTPClient is used as-is when set. Otherwise one is built from Proxy.
	HTTPClient *http.Client
	Proxy      model.ProxyConfig

	Timeout          time.Duration
	MaxResponseBytes int64

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Client is the batch analysis client. It allows one submission at a time
// and remembers the latest result or error until Reset.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	maxBody int64
	log     *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	state   model.RequestState
	result  *model.AnalysisResult
	lastErr string
	gen     uint64
}

// New builds a Client. The base URL is checked when a request is made,
// not here.
func New(opts Options) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxResponseBytes <= 0 {
		opts.MaxResponseBytes = DefaultMaxResponseBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	hc := opts.HTTPClient
	if hc == nil {
		var err error
		hc, err = transport.NewHTTPClient(opts.Proxy, opts.Timeout)
		if err != nil {
			return nil, fmt.Errorf("build http client: %w", err)
		}
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    hc,
		timeout: opts.Timeout,
		maxBody: opts.MaxResponseBytes,
		log:     logger,
		metrics: opts.Metrics,
	}, nil
}

// State reports the lifecycle state of the latest submission.
func (c *Client) State() model.RequestState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Result returns the stored result of the last successful submission,
// or nil.
func (c *Client) Result() *model.AnalysisResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// LastError returns the consolidated message of the last failure, or "".
func (c *Client) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Reset clears the stored result and error. A submission already in
// flight keeps running, but its outcome is no longer stored.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.result = nil
	c.lastErr = ""
	if c.state != model.Submitting {
		c.state = model.Idle
	}
}

// Submit uploads file for analysis in mode and blocks until the backend
// answers or the timeout elapses. Failures are returned as *Error.
func (c *Client) Submit(ctx context.Context, file *model.InputFile, mode model.Mode) (*model.AnalysisResult, error) {
	c.mu.Lock()
	if file == nil {
		err := &Error{Kind: NoFileSelected}
		if c.state != model.Submitting {
			c.state = model.Failed
			c.result = nil
			c.lastErr = err.Consolidated()
		}
		c.mu.Unlock()
		c.metrics.SubmitRejected(mode.String(), err.Kind.String())
		return nil, err
	}
	if c.state == model.Submitting {
		c.mu.Unlock()
		c.metrics.SubmitRejected(mode.String(), AlreadyInFlight.String())
		return nil, &Error{Kind: AlreadyInFlight}
	}
	c.state = model.Submitting
	c.lastErr = ""
	gen := c.gen
	c.mu.Unlock()

	requestID := uuid.NewString()
	log := c.log.With("mode", mode.String(), "request_id", requestID, "file", file.Name)
	log.Info("submitting file", "size", file.Size)

	c.metrics.SubmitStarted()
	start := time.Now()
	res, err := c.do(ctx, file, mode, requestID)
	elapsed := time.Since(start)

	outcome := "succeeded"
	var aerr *Error
	if err != nil {
		if !errors.As(err, &aerr) {
			aerr = &Error{Kind: ClientSide, Detail: err.Error(), Err: err}
		}
		outcome = aerr.Kind.String()
		log.Error("submission failed", "kind", outcome, "status", aerr.Status, "err", aerr.Error(), "elapsed", elapsed)
	} else {
		res.RequestID = requestID
		res.Elapsed = elapsed
		log.Info("submission succeeded", "elapsed", elapsed, "execution_time", res.ExecutionTimeSeconds)
	}
	c.metrics.SubmitFinished(mode.String(), outcome, elapsed)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		// Reset while we were waiting; the file this answer belongs to
		// is no longer the selected one.
		c.state = model.Idle
		if aerr != nil {
			return nil, aerr
		}
		return res, nil
	}
	if aerr != nil {
		c.state = model.Failed
		c.result = nil
		c.lastErr = aerr.Consolidated()
		return nil, aerr
	}
	c.state = model.Succeeded
	c.result = res
	return res, nil
}

func (c *Client) do(ctx context.Context, file *model.InputFile, mode model.Mode, requestID string) (*model.AnalysisResult, error) {
	if !mode.Valid() {
		return nil, &Error{Kind: ClientSide, Detail: fmt.Sprintf("unknown analysis mode %d", int(mode))}
	}
	endpoint, err := c.endpoint(mode)
	if err != nil {
		return nil, &Error{Kind: ClientSide, Detail: err.Error(), Err: err}
	}

	body, contentType, length, err := multipartBody(file)
	if err != nil {
		return nil, &Error{Kind: ClientSide, Detail: err.Error(), Err: err}
	}
	defer body.Close()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, &Error{Kind: ClientSide, Detail: err.Error(), Err: err}
	}
	req.ContentLength = length
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		if rerr := body.readErr(); rerr != nil {
			return nil, &Error{Kind: ClientSide, Detail: rerr.Error(), Err: rerr}
		}
		return nil, &Error{Kind: NoResponse, Detail: c.describeTransportErr(err), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &Error{Kind: NoResponse, Detail: c.describeTransportErr(err), Err: err}
	}
	if int64(len(raw)) > c.maxBody {
		return nil, &Error{Kind: ClientSide, Detail: fmt.Sprintf("response larger than %d bytes", c.maxBody)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := &Error{Kind: HTTPStatus, Status: resp.StatusCode}
		if obj, err := normalize.DecodeObject(raw); err == nil {
			e.Detail = normalize.String(obj["error"])
		}
		return nil, e
	}

	obj, err := normalize.DecodeObject(raw)
	if err != nil {
		return nil, &Error{Kind: ServerReported, Err: err}
	}
	if obj["success"] != true {
		return nil, &Error{Kind: ServerReported, Detail: normalize.String(obj["error"])}
	}
	res := normalize.Normalize(mode, obj)
	return &res, nil
}

func (c *Client) endpoint(mode model.Mode) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid base url %q: scheme must be http or https", c.baseURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid base url %q: missing host", c.baseURL)
	}
	return c.baseURL + mode.Path(), nil
}

func (c *Client) describeTransportErr(err error) string {
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return fmt.Sprintf("timed out after %s", c.timeout)
	}
	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Err.Error()
	}
	return ""
}

// uploadBody streams the multipart envelope around the file bytes and
// remembers a read failure of the file itself.
type uploadBody struct {
	r    io.Reader
	file io.Closer

	mu  sync.Mutex
	err error
}

func (b *uploadBody) setErr(err error) {
	b.mu.Lock()
	if b.err == nil {
		b.err = err
	}
	b.mu.Unlock()
}

func (b *uploadBody) readErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *uploadBody) Read(p []byte) (int, error) {
	return b.r.Read(p)
}

func (b *uploadBody) Close() error {
	return b.file.Close()
}

type sizedReader struct {
	r         io.Reader
	remaining int64
	owner     *uploadBody
}

func (s *sizedReader) Read(p []byte) (int, error) {
	if s.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > s.remaining {
		p = p[:s.remaining]
	}
	n, err := s.r.Read(p)
	s.remaining -= int64(n)
	if err == io.EOF && s.remaining > 0 {
		err = errors.New("file shrank during upload")
	}
	if err != nil && err != io.EOF {
		s.owner.setErr(err)
	}
	return n, err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// multipartBody builds a single-part form with the file under "file".
// The length is exact, so the request is not chunked.
func multipartBody(file *model.InputFile) (*uploadBody, string, int64, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, "", 0, fmt.Errorf("open %s: %w", file.Name, err)
	}

	size := file.Size
	var content io.Reader = rc
	if size <= 0 {
		// Unknown size: buffer so Content-Length is right.
		data, err := io.ReadAll(rc)
		if err != nil {
			rc.Close()
			return nil, "", 0, fmt.Errorf("read %s: %w", file.Name, err)
		}
		size = int64(len(data))
		content = bytes.NewReader(data)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, formField, quoteEscaper.Replace(file.Name)))
	mediaType := file.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	h.Set("Content-Type", mediaType)
	if _, err := mw.CreatePart(h); err != nil {
		rc.Close()
		return nil, "", 0, fmt.Errorf("encode form: %w", err)
	}
	head := append([]byte(nil), buf.Bytes()...)
	buf.Reset()
	if err := mw.Close(); err != nil {
		rc.Close()
		return nil, "", 0, fmt.Errorf("encode form: %w", err)
	}
	tail := append([]byte(nil), buf.Bytes()...)

	body := &uploadBody{file: rc}
	body.r = io.MultiReader(
		bytes.NewReader(head),
		&sizedReader{r: content, remaining: size, owner: body},
		bytes.NewReader(tail),
	)
	length := int64(len(head)) + size + int64(len(tail))
	return body, mw.FormDataContentType(), length, nil
}
