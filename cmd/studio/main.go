// cmd/studio/main.go
//
// Entry point for the video studio. Two front ends share one pipeline:
//
//	studio -mode server   HTTP API with SSE log events (default)
//	studio -mode chat     terminal chat
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/video-studio/studio/config"
	"github.com/ZanzyTHEbar/video-studio/studio/gallery"
	"github.com/ZanzyTHEbar/video-studio/studio/pipeline"
	"github.com/ZanzyTHEbar/video-studio/studio/server"
	"github.com/ZanzyTHEbar/video-studio/studio/tui"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: search standard locations)")
	mode := flag.String("mode", "server", "front end to run: server | chat")
	logFile := flag.String("log-file", "", "write logs to this file (chat mode logs nowhere by default)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	out, closeLog, err := logOutput(*mode, *logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	logger := newLogger(cfg.App, out)

	ctx := context.Background()
	factory := pipeline.NewFactory(cfg, nil, logger)
	orch, err := factory.CreateOrchestrator(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline setup failed")
	}
	if factory.WatchLexicon() {
		logger.Info().Msg("watching config file for lexicon changes")
	}

	switch *mode {
	case "chat":
		err = runChat(orch)
	case "server":
		err = runServer(cfg, factory, orch, logger)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if closeErr := orch.Close(shutdownCtx); closeErr != nil {
		logger.Error().Err(closeErr).Msg("pipeline shutdown incomplete")
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func logOutput(mode, path string) (io.Writer, func(), error) {
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		return f, func() { f.Close() }, nil
	}
	if mode == "chat" {
		// the TUI owns the terminal
		return io.Discard, func() {}, nil
	}
	return os.Stdout, func() {}, nil
}

func newLogger(app config.AppSettings, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(app.LogLevel)
	if err != nil || app.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if app.IsDevelopment() && out == os.Stdout {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(out).
			With().
			Timestamp().
			Logger()
	}
	return logger.Level(level)
}

func runChat(orch *pipeline.Orchestrator) error {
	p := tea.NewProgram(tui.NewApp(orch), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func runServer(cfg *config.Config, factory *pipeline.Factory, orch *pipeline.Orchestrator, logger zerolog.Logger) error {
	g := gallery.New()
	detach := g.Attach(orch)
	defer detach()

	h := server.NewHandler(orch, g, factory.Stats(), logger, cfg.Server.EventBuffer)
	srv := server.NewServer(cfg.Server, server.NewRouter(logger, cfg.Server, h))

	// open /events streams only end when their request context is cancelled
	baseCtx, stopStreams := context.WithCancel(context.Background())
	defer stopStreams()
	srv.BaseContext = func(net.Listener) context.Context { return baseCtx }
	srv.RegisterOnShutdown(stopStreams)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Server.Addr).
			Str("env", cfg.App.Env).
			Str("profile", orch.Profile()).
			Msg("starting video studio server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed to start: %w", err)
	}

	logger.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("server forced to shutdown")
		srv.Close()
	}

	logger.Info().Msg("server stopped")
	return nil
}
