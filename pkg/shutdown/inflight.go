package shutdown

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// InFlightTracker tracks requests in progress so shutdown can wait for them
type InFlightTracker struct {
	name   string
	logger *zap.Logger

	mu       sync.Mutex
	wg       sync.WaitGroup
	draining bool
}

// NewInFlightTracker creates a new in-flight request tracker
func NewInFlightTracker(name string, logger *zap.Logger) *InFlightTracker {
	return &InFlightTracker{
		name:   name,
		logger: logger,
	}
}

// Add registers one unit of work. It returns false once shutdown has started.
func (t *InFlightTracker) Add() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.draining {
		return false
	}
	t.wg.Add(1)
	return true
}

// Draining reports whether shutdown has started
func (t *InFlightTracker) Draining() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.draining
}

// Done marks one unit of work complete
func (t *InFlightTracker) Done() {
	t.wg.Done()
}

// Middleware tracks every request passing through next.
// Requests arriving after shutdown started get 503.
func (t *InFlightTracker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.Add() {
			w.Header().Set("Connection", "close")
			http.Error(w, "Service is shutting down", http.StatusServiceUnavailable)
			return
		}
		defer t.Done()

		next.ServeHTTP(w, r)
	})
}

// Shutdown rejects new work and waits for in-flight work or ctx expiry
func (t *InFlightTracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.draining = true
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("In-flight work drained", zap.String("tracker", t.name))
		return nil
	case <-ctx.Done():
		t.logger.Warn("In-flight work did not drain before timeout", zap.String("tracker", t.name))
		return ctx.Err()
	}
}

// PeriodicWorker runs work on a fixed interval until stopped
type PeriodicWorker struct {
	name     string
	interval time.Duration
	logger   *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPeriodicWorker creates a new periodic worker
func NewPeriodicWorker(name string, interval time.Duration, logger *zap.Logger) *PeriodicWorker {
	return &PeriodicWorker{
		name:     name,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start runs work every interval. The first run happens after one interval.
func (w *PeriodicWorker) Start(work func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	go func() {
		defer close(w.done)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.logger.Info("Periodic worker started",
			zap.String("worker", w.name),
			zap.Duration("interval", w.interval))

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				work(ctx)
			}
		}
	}()
}

// Shutdown cancels the worker and waits for the current run to finish
func (w *PeriodicWorker) Shutdown(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()

	select {
	case <-w.done:
		w.logger.Info("Periodic worker stopped", zap.String("worker", w.name))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
