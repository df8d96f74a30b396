package shutdown

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManager_ShutdownReverseOrder(t *testing.T) {
	m := NewManager(zap.NewNop(), time.Second)

	var mu sync.Mutex
	var order []string
	record := func(name string) ShutdownFunc {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}

	m.Register("database", record("database"))
	m.Register("worker", record("worker"))
	m.Register("http", record("http"))

	errs := m.Shutdown()

	assert.Empty(t, errs)
	assert.Equal(t, []string{"http", "worker", "database"}, order)
}

func TestManager_ShutdownCollectsErrors(t *testing.T) {
	m := NewManager(zap.NewNop(), time.Second)

	called := false
	m.RegisterNoErr("first", func() { called = true })
	m.Register("broken", func(context.Context) error { return errors.New("boom") })

	errs := m.Shutdown()

	require.Len(t, errs, 1)
	assert.EqualError(t, errs["broken"], "boom")
	assert.True(t, called, "a failing component must not stop the rest")
}

func TestInFlightTracker_Middleware(t *testing.T) {
	tracker := NewInFlightTracker("http", zap.NewNop())

	release := make(chan struct{})
	started := make(chan struct{})
	handler := tracker.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
	}))

	firstDone := make(chan int)
	go func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		firstDone <- rec.Code
	}()
	<-started

	shutdownErr := make(chan error)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		shutdownErr <- tracker.Shutdown(ctx)
	}()

	// Wait until the tracker is draining before sending the second request
	require.Eventually(t, tracker.Draining, time.Second, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	close(release)
	assert.Equal(t, http.StatusOK, <-firstDone)
	assert.NoError(t, <-shutdownErr)
}

func TestInFlightTracker_ShutdownTimeout(t *testing.T) {
	tracker := NewInFlightTracker("http", zap.NewNop())
	require.True(t, tracker.Add())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, tracker.Shutdown(ctx), context.DeadlineExceeded)
	tracker.Done()
}

func TestPeriodicWorker(t *testing.T) {
	w := NewPeriodicWorker("refresh", 10*time.Millisecond, zap.NewNop())

	var runs atomic.Int32
	w.Start(func(ctx context.Context) { runs.Add(1) })

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Shutdown(context.Background()))
	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs after shutdown")
}

func TestPeriodicWorker_ShutdownWithoutStart(t *testing.T) {
	w := NewPeriodicWorker("idle", time.Second, zap.NewNop())
	assert.NoError(t, w.Shutdown(context.Background()))
}
