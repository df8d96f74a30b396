package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/kevin07696/mpesa-service/internal/adapters/ports"
	"github.com/kevin07696/mpesa-service/internal/auth"
	"github.com/kevin07696/mpesa-service/pkg/observability"
	"go.uber.org/zap"
)

// CallbackAuth verifies that gateway callbacks come from the gateway's published addresses.
// The gateway does not sign callbacks, so this check is advisory: it rejects casual forgery
// but cannot stop a spoofer who controls a trusted proxy header.
type CallbackAuth struct {
	source  ports.AllowListSource
	logger  *zap.Logger
	allowed atomic.Pointer[map[string]struct{}]
}

// NewCallbackAuth creates a callback authenticator and loads the allow-list from source
func NewCallbackAuth(ctx context.Context, source ports.AllowListSource, logger *zap.Logger) (*CallbackAuth, error) {
	a := &CallbackAuth{
		source: source,
		logger: logger,
	}
	empty := map[string]struct{}{}
	a.allowed.Store(&empty)

	if err := a.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("failed to load callback allow-list: %w", err)
	}
	return a, nil
}

// Refresh reloads the allow-list. On failure the previous list stays active.
func (a *CallbackAuth) Refresh(ctx context.Context) error {
	entries, err := a.source.Load(ctx)
	if err != nil {
		a.logger.Error("Failed to refresh callback allow-list",
			zap.String("source", a.source.Name()),
			zap.Error(err))
		return err
	}

	allowed := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if net.ParseIP(entry) == nil {
			a.logger.Warn("Ignoring invalid callback allow-list entry",
				zap.String("source", a.source.Name()),
				zap.String("entry", entry))
			continue
		}
		allowed[entry] = struct{}{}
	}

	a.allowed.Store(&allowed)
	observability.SetAllowListSize(a.source.Name(), len(allowed))
	a.logger.Info("Loaded callback allow-list",
		zap.String("source", a.source.Name()),
		zap.Int("count", len(allowed)))

	return nil
}

// Size returns the number of addresses in the active allow-list
func (a *CallbackAuth) Size() int {
	return len(*a.allowed.Load())
}

// IsValidCallback reports whether r originates from an allow-listed address.
// Addresses match verbatim; a missing or malformed address is never valid.
func (a *CallbackAuth) IsValidCallback(r *http.Request) bool {
	return a.isAllowed(ClientIP(r))
}

func (a *CallbackAuth) isAllowed(clientIP string) bool {
	if net.ParseIP(clientIP) == nil {
		return false
	}
	_, ok := (*a.allowed.Load())[clientIP]
	return ok
}

// Middleware wraps an HTTP handler with callback source verification
func (a *CallbackAuth) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := ClientIP(r)
		allowed := a.isAllowed(clientIP)
		observability.RecordCallbackVerdict(allowed)

		if !allowed {
			a.logger.Warn("Gateway callback from unauthorized IP",
				zap.String("ip", clientIP),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
				zap.String("request_id", auth.GetRequestID(r.Context())))

			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		a.logger.Debug("Gateway callback authenticated",
			zap.String("ip", clientIP),
			zap.String("path", r.URL.Path))

		next(w, r.WithContext(auth.WithGatewayCallback(r.Context(), clientIP)))
	}
}

// ClientIP extracts the best-available client address: the Client-IP header,
// then the first X-Forwarded-For hop, then the connection's remote address.
// The result is unvalidated.
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("Client-IP")); ip != "" {
		return ip
	}

	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return host
}
