package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/specialistvlad/stepgridgo/internal/history"
	"github.com/specialistvlad/stepgridgo/internal/scheduler"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	config *Config
	logger *slog.Logger

	executor   scheduler.Executor
	httpServer *http.Server
	healthAddr string
	tracker    *progress
}

// Option customises an App.
type Option func(*App)

// WithExecutor replaces the shell executor used for steps.
func WithExecutor(e scheduler.Executor) Option {
	return func(a *App) { a.executor = e }
}

// NewApp is the constructor for the main application. It returns an App with
// its own isolated logger writing to outW.
func NewApp(outW io.Writer, cfg *Config, opts ...Option) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	a := &App{
		outW:    outW,
		config:  cfg,
		logger:  logger,
		tracker: &progress{},
	}
	for _, opt := range opts {
		opt(a)
	}
	logger.Debug("Logger configured successfully.")
	return a
}

// openHistory opens the configured history store, or returns nil when
// history is disabled.
func (a *App) openHistory(ctx context.Context) (*history.Store, error) {
	if a.config.HistoryPath == "" {
		return nil, nil
	}
	if a.config.HistoryPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(a.config.HistoryPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	return history.Open(ctx, a.config.HistoryPath)
}
