package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/specialistvlad/stepgridgo/internal/ctxlog"
	"github.com/specialistvlad/stepgridgo/internal/step"
)

// Progress is the live view of the current run served on /status.
type Progress struct {
	RunID     string `json:"run_id"`
	Running   bool   `json:"running"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

// progress guards a Progress updated from the scheduler observer and read by
// the status handler.
type progress struct {
	mu sync.Mutex
	p  Progress
}

func (t *progress) start(runID string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p = Progress{RunID: runID, Running: true, Total: total}
}

func (t *progress) observe(o step.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Completed++
	switch {
	case o.Skipped():
		t.p.Skipped++
	case o.Failed():
		t.p.Failed++
	}
}

func (t *progress) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Running = false
}

func (t *progress) snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.p
}

// healthHandler answers liveness probes.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// statusHandler reports the progress of the current run.
func (a *App) statusHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Status endpoint hit.", "remote_addr", r.RemoteAddr)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(a.tracker.snapshot()); err != nil {
		a.logger.Warn("Failed to encode status.", "error", err)
	}
}

// startHealthcheckServer binds the health check port and serves it in the
// background. It is a no-op when the port is 0.
func (a *App) startHealthcheckServer(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	if a.config.HealthcheckPort <= 0 {
		logger.Debug("Health check server not started: disabled.")
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.HandleFunc("/status", a.statusHandler)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.config.HealthcheckPort))
	if err != nil {
		return fmt.Errorf("failed to start health check server: %w", err)
	}
	a.healthAddr = ln.Addr().String()
	a.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Health check server starting.", "address", a.healthAddr)
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health check server failed unexpectedly.", "error", err)
		}
	}()
	return nil
}

func (a *App) closeHealthcheckServer(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	if a.httpServer == nil {
		logger.Debug("Health check server was not running.")
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	logger.Debug("Shutting down health check server.")
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Health check server shutdown failed.", "error", err)
	}
	a.httpServer = nil
}
