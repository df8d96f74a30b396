package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kevin07696/mpesa-service/internal/adapters/ports"
	pkgerrors "github.com/kevin07696/mpesa-service/pkg/errors"
)

// DefaultTimeout applies when a Request carries no timeout
const DefaultTimeout = 30 * time.Second

// maxResponseBytes caps how much of a gateway response is read
const maxResponseBytes = 1 << 20

// Request is a single outbound gateway call
type Request struct {
	URL     string
	Method  string // GET when empty
	Headers map[string]string
	Body    []byte
	Timeout time.Duration // DefaultTimeout when zero
}

// Transport performs gateway calls and decodes JSON responses
type Transport struct {
	httpClient ports.HTTPClient
	logger     ports.Logger
}

// NewTransport creates a transport over httpClient
func NewTransport(httpClient ports.HTTPClient, logger ports.Logger) *Transport {
	return &Transport{
		httpClient: httpClient,
		logger:     ports.OrNop(logger),
	}
}

// Do sends req and decodes the JSON body into a generic map.
// Numbers are kept as json.Number so response codes compare exactly.
//
// Connection failures, non-2xx statuses and empty bodies return *errors.TransportError;
// a non-2xx body that is valid JSON is attached to it. Bodies that are not JSON
// return *errors.DecodeError.
func (t *Transport) Do(ctx context.Context, req Request) (map[string]any, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	t.logger.Debug("sending gateway request",
		ports.String("method", method),
		ports.String("path", httpReq.URL.Path),
	)

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, &pkgerrors.TransportError{Message: err.Error(), Err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &pkgerrors.TransportError{
			Message: "failed to read response body",
			Code:    httpResp.StatusCode,
			Err:     err,
		}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		transportErr := &pkgerrors.TransportError{
			Message: fmt.Sprintf("unexpected status %s", http.StatusText(httpResp.StatusCode)),
			Code:    httpResp.StatusCode,
		}
		if decoded, decodeErr := decodeJSON(raw); decodeErr == nil {
			transportErr.Body = decoded
		}
		return nil, transportErr
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &pkgerrors.TransportError{Message: "empty response body", Code: httpResp.StatusCode}
	}

	decoded, err := decodeJSON(raw)
	if err != nil {
		return nil, &pkgerrors.DecodeError{Body: truncate(string(raw), 256), Err: err}
	}
	return decoded, nil
}

func decodeJSON(raw []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("response is not a JSON object")
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
