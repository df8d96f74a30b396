package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	shutdownDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mpesa_shutdown_duration_seconds",
		Help:    "Total time taken to shut down gracefully",
		Buckets: []float64{0.5, 1, 5, 10, 20, 30},
	})

	shutdownErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpesa_shutdown_errors_total",
		Help: "Shutdown errors by component",
	}, []string{"component"})
)

// ShutdownFunc stops one component
type ShutdownFunc func(context.Context) error

type component struct {
	name string
	fn   ShutdownFunc
}

// Manager stops registered components in reverse registration order.
// Register the HTTP servers after the things they depend on so they stop first.
type Manager struct {
	logger     *zap.Logger
	timeout    time.Duration
	mu         sync.Mutex
	components []component
}

// NewManager creates a new shutdown manager
func NewManager(logger *zap.Logger, timeout time.Duration) *Manager {
	return &Manager{
		logger:  logger,
		timeout: timeout,
	}
}

// Register adds a shutdown function
func (m *Manager) Register(name string, fn ShutdownFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.components = append(m.components, component{name: name, fn: fn})
}

// RegisterNoErr registers a shutdown function that cannot fail
func (m *Manager) RegisterNoErr(name string, fn func()) {
	m.Register(name, func(context.Context) error {
		fn()
		return nil
	})
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then shuts everything down
func (m *Manager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	m.logger.Info("Received shutdown signal",
		zap.String("signal", sig.String()),
		zap.Duration("timeout", m.timeout))

	m.Shutdown()
}

// Shutdown runs every component's shutdown function, last registered first,
// and returns the errors keyed by component name.
// Components that are still running when the timeout elapses are abandoned.
func (m *Manager) Shutdown() map[string]error {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.mu.Lock()
	components := make([]component, len(m.components))
	copy(components, m.components)
	m.mu.Unlock()

	var errsMu sync.Mutex
	errs := make(map[string]error)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := len(components) - 1; i >= 0; i-- {
			c := components[i]
			if err := c.fn(ctx); err != nil {
				shutdownErrors.WithLabelValues(c.name).Inc()
				m.logger.Error("Component shutdown failed",
					zap.String("component", c.name),
					zap.Error(err))
				errsMu.Lock()
				errs[c.name] = err
				errsMu.Unlock()
				continue
			}
			m.logger.Info("Component shut down", zap.String("component", c.name))
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Shutdown timeout exceeded", zap.Duration("timeout", m.timeout))
	}

	errsMu.Lock()
	result := make(map[string]error, len(errs))
	for name, err := range errs {
		result[name] = err
	}
	errsMu.Unlock()

	shutdownDuration.Observe(time.Since(start).Seconds())
	m.logger.Info("Shutdown complete",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("errors", len(result)))

	return result
}
