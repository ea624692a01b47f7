package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/August26/nidsclient-go/internal/analysis"
	"github.com/August26/nidsclient-go/internal/analytics"
	"github.com/August26/nidsclient-go/internal/app"
	"github.com/August26/nidsclient-go/internal/config"
	"github.com/August26/nidsclient-go/internal/logging"
	"github.com/August26/nidsclient-go/internal/metrics"
	"github.com/August26/nidsclient-go/internal/model"
	"github.com/August26/nidsclient-go/internal/output"
	"github.com/August26/nidsclient-go/internal/report"
	"github.com/August26/nidsclient-go/internal/surveillance"
	"github.com/August26/nidsclient-go/internal/transport"
)

const usage = `usage: nidsclient-go [flags] <command> [args]

commands:
  analyse <file>             generic dataset analysis
  predict <file>             binary benign/malicious detection
  predict-multiclass <file>  per-attack-class detection
  watch                      live detection session
  report binary|multiclass   download a model report

flags:
`

func main() {
	var (
		configPath string
		baseURL    string
		proxyURL   string
		timeout    time.Duration
		verbose    bool
		logFormat  string
	)

	flag.StringVar(&configPath, "config", "", "path to YAML config file")
	flag.StringVar(&baseURL, "server", "", "backend base URL (overrides config)")
	flag.StringVar(&proxyURL, "proxy", "", "proxy URL: http://, https:// or socks5:// (overrides config)")
	flag.DurationVar(&timeout, "timeout", 0, "timeout for one batch submission (overrides config)")
	flag.BoolVar(&verbose, "verbose", false, "enable debug logs")
	flag.StringVar(&logFormat, "log-format", "", "log format: json | text (overrides config)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	if baseURL != "" {
		cfg.Server.BaseURL = baseURL
	}
	if proxyURL != "" {
		cfg.Proxy.URL = proxyURL
	}
	if timeout > 0 {
		cfg.Server.Timeout = timeout
	}
	if verbose {
		cfg.Logging.Verbose = true
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	log := logging.NewLogger(cfg.Logging.Verbose, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "watch":
		err = runWatch(ctx, log, cfg, rest)
	case "report":
		err = runReport(ctx, log, cfg, rest)
	default:
		mode, perr := model.ParseMode(cmd)
		if perr != nil {
			fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
			flag.Usage()
			os.Exit(2)
		}
		err = runAnalysis(ctx, log, cfg, mode, rest)
	}
	if err != nil {
		log.Error("command failed", "command", cmd, "err", err)
		os.Exit(1)
	}
}

func runAnalysis(ctx context.Context, log *slog.Logger, cfg *config.Config, mode model.Mode, args []string) error {
	fs := flag.NewFlagSet(mode.String(), flag.ExitOnError)
	outputFile := fs.String("output", "", "optional path to write the result (json/csv)")
	format := fs.String("format", cfg.Output.Format, "output format: json | csv")
	images := fs.Bool("images", false, "write charts as PNG files to the output dir")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("%s takes exactly one file, got %d", mode, fs.NArg())
	}

	client, err := analysis.New(analysis.Options{
		BaseURL:          cfg.Server.BaseURL,
		Proxy:            cfg.ProxyConfig(),
		Timeout:          cfg.Server.Timeout,
		MaxResponseBytes: cfg.Server.MaxResponseBytes,
		Logger:           log,
	})
	if err != nil {
		return err
	}
	wb := app.NewWorkbench(client)

	file, err := wb.SelectPath(fs.Arg(0))
	if err != nil {
		return err
	}

	log.Info("starting nidsclient-go",
		"mode", mode.String(),
		"server", cfg.Server.BaseURL,
		"file", file.Name,
		"size", file.Size,
		"timeout", cfg.Server.Timeout.String(),
	)

	res, err := wb.Submit(ctx, mode)
	if err != nil {
		var aerr *analysis.Error
		if errors.As(err, &aerr) {
			fmt.Fprintln(os.Stderr, aerr.Consolidated())
		}
		return err
	}

	summary := analytics.Summarize(res)

	// Print table and summary to stdout
	output.PrintResult(os.Stdout, res)
	output.PrintSummary(os.Stdout, summary)

	if *outputFile != "" {
		if err := output.WriteFile(*outputFile, *format, res, summary); err != nil {
			log.Error("failed to write output file", "err", err, "path", *outputFile)
		} else {
			log.Info("results written",
				"path", *outputFile,
				"format", *format,
			)
		}
	}
	if *images {
		paths, err := output.WriteImages(cfg.Output.Dir, res)
		if err != nil {
			log.Error("failed to write images", "err", err, "dir", cfg.Output.Dir)
		}
		for _, p := range paths {
			log.Info("chart written", "path", p)
		}
	}
	return nil
}

func runWatch(ctx context.Context, log *slog.Logger, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	metricsAddr := fs.String("metrics-addr", cfg.Metrics.Addr, "serve Prometheus metrics on this address")
	autoStart := fs.Bool("start", true, "start detection as soon as the channel is up")
	fs.Parse(args)

	m := metrics.New()

	var sess *surveillance.Session
	var started atomic.Bool
	sess, err := surveillance.New(surveillance.Options{
		BaseURL:   cfg.Server.BaseURL,
		Proxy:     cfg.ProxyConfig(),
		Reconnect: cfg.ReconnectPolicy(),
		Logger:    log,
		Metrics:   m,
		OnChange: func(st model.ControlState) {
			fmt.Fprintf(os.Stdout, "-- %s\n", sess.StatusText())
			if st == model.Connected && *autoStart && started.CompareAndSwap(false, true) {
				if _, err := sess.Toggle(); err != nil {
					log.Warn("could not start detection", "err", err)
				}
			}
		},
		OnSnapshot: func(snap model.Snapshot) {
			output.PrintSnapshot(os.Stdout, snap)
		},
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	log.Info("opening live channel", "server", cfg.Server.BaseURL, "session", sess.ID())
	sess.Open(ctx)

	// Enter on stdin toggles detection.
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			st, err := sess.Toggle()
			if err != nil {
				fmt.Fprintln(os.Stderr, "toggle:", err)
				continue
			}
			log.Info("detection toggled", "state", st.String())
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Info("metrics server started", "addr", *metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				if sess.State() == model.Disconnected && !sess.Connecting() {
					return errors.New("live channel unavailable after reconnection attempts")
				}
			}
		}
	})

	err = g.Wait()
	sess.Close()
	log.Info("live session ended")
	return err
}

func runReport(ctx context.Context, log *slog.Logger, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	outPath := fs.String("o", "", "file to write (default <kind>_report.html in the output dir)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("report takes one of: %s", strings.Join(report.Kinds, ", "))
	}
	kind := fs.Arg(0)

	hc, err := transport.NewHTTPClient(cfg.ProxyConfig(), time.Minute)
	if err != nil {
		return err
	}
	body, err := report.Fetch(ctx, hc, cfg.Server.BaseURL, kind)
	if err != nil {
		return err
	}

	path := *outPath
	if path == "" {
		path = filepath.Join(cfg.Output.Dir, kind+"_report.html")
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return err
	}
	log.Info("report written", "kind", kind, "path", path, "bytes", len(body))
	return nil
}
