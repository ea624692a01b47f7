// Package mockbackend is a fake inference service speaking the same HTTP
// and Socket.IO surface as the real backend. Tests and local runs use it.
package mockbackend

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

// Response overrides what an endpoint returns.
type Response struct {
	Status int
	Body   string
	Delay  time.Duration
	// Hold, when set, blocks the handler until it is closed.
	Hold chan struct{}
}

// Options tune the fake.
type Options struct {
	UpdateInterval time.Duration
	PingInterval   time.Duration
	PingTimeout    time.Duration
	Logger         *slog.Logger
}

// Backend is the fake service. The zero value is not usable; call New.
type Backend struct {
	opts Options
	log  *slog.Logger

	mu        sync.Mutex
	responses map[string]Response
	reports   map[string]string

	requests atomic.Int64

	chmu     sync.Mutex
	sessions map[string]*session
	controls []string
}

// New builds a backend with canned responses for every endpoint.
func New(opts Options) *Backend {
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = 3 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 20 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Backend{
		opts:      opts,
		log:       logger,
		responses: map[string]Response{},
		reports: map[string]string{
			"binary":     "<html><body><h1>Binary report</h1></body></html>",
			"multiclass": "<html><body><h1>Multiclass report</h1></body></html>",
		},
		sessions: map[string]*session{},
	}
}

// SetResponse overrides the response for path (e.g. "/predict").
func (b *Backend) SetResponse(path string, r Response) {
	b.mu.Lock()
	b.responses[path] = r
	b.mu.Unlock()
}

// Requests counts analysis requests received so far.
func (b *Backend) Requests() int64 { return b.requests.Load() }

// Handler returns the chi router.
func (b *Backend) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(b.requestIDMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "Server is running")
	})
	r.Post("/analyse", b.analysis(genericPayload))
	r.Post("/predict", b.analysis(binaryPayload))
	r.Post("/predict-multiclass", b.analysis(multiclassPayload))
	r.Get("/reports/{name}", b.report)
	r.Handle("/socket.io/", websocket.Server{Handler: b.serveChannel})
	return r
}

func (b *Backend) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) analysis(build func(rows int) map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.requests.Add(1)
		path := r.URL.Path

		b.mu.Lock()
		override, ok := b.responses[path]
		b.mu.Unlock()

		if ok {
			if override.Hold != nil {
				select {
				case <-override.Hold:
				case <-r.Context().Done():
					return
				}
			}
			if override.Delay > 0 {
				select {
				case <-time.After(override.Delay):
				case <-r.Context().Done():
					return
				}
			}
			if override.Body != "" || override.Status != 0 {
				status := override.Status
				if status == 0 {
					status = http.StatusOK
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				io.WriteString(w, override.Body)
				return
			}
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "no file provided"})
			return
		}
		defer file.Close()

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if ext != ".csv" && ext != ".parquet" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "only CSV or Parquet files are accepted"})
			return
		}

		rows := 0
		if ext == ".csv" {
			rows = countRows(file)
		}
		b.log.Info("analysis request", "path", path, "file", header.Filename, "rows", rows)
		writeJSON(w, http.StatusOK, build(rows))
	}
}

func (b *Backend) report(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	kind, ok := strings.CutSuffix(name, "_report.html")
	if !ok {
		http.NotFound(w, r)
		return
	}
	b.mu.Lock()
	html, ok := b.reports[kind]
	b.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, html)
}

func countRows(r io.Reader) int {
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			n++
		}
	}
	if n > 0 {
		n-- // header
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// 1x1 transparent PNG.
const pixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

func genericPayload(rows int) map[string]any {
	return map[string]any{
		"success": true,
		"message": "analysis complete",
		"plots":   []string{pixelPNG},
		"file_info": map[string]any{
			"rows":         rows,
			"columns":      4,
			"file_size_mb": 0.01,
		},
		"missing_analysis": map[string]any{
			"total_missing":         0,
			"missing_percent_total": 0.0,
		},
		"column_stats": map[string]any{
			"Flow Duration": map[string]any{"type": "float64", "unique": rows, "manquants": 0, "% manquants": 0.0},
		},
		"issues":         []string{},
		"execution_time": 0.42,
	}
}

func binaryPayload(rows int) map[string]any {
	malicious := rows / 5
	benign := rows - malicious
	pct := 100.0
	if rows > 0 {
		pct = float64(benign) / float64(rows) * 100
	}
	return map[string]any{
		"success": true,
		"message": "analysis complete",
		"image":   pixelPNG,
		"predictions": []map[string]any{
			{"Model": "SVM", "Final Prediction": "Benign", "Confidence (%)": pct, "Benign (%)": pct, "Malicious (%)": 100 - pct},
		},
		"stats": map[string]any{"total": rows, "benign": benign, "malicious": malicious},
	}
}

func multiclassPayload(rows int) map[string]any {
	ddos := rows / 4
	benign := rows - ddos
	top := "Benign"
	if ddos > 0 {
		top = "DDoS"
	}
	return map[string]any{
		"success":    true,
		"image":      pixelPNG,
		"classNames": []string{"Benign", "DDoS"},
		"predictions": []map[string]any{
			{"Model": "RandomForest", "Benign": benign, "DDoS": ddos, "Total": rows},
		},
		"stats": map[string]any{
			"total":               rows,
			"benign":              benign,
			"malicious":           ddos,
			"attack_distribution": map[string]any{"Benign": benign, "DDoS": ddos},
			"top_attack":          top,
		},
	}
}
