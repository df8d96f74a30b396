package mpesa

import (
	"strings"

	"github.com/kevin07696/mpesa-service/internal/domain/models"
	pkgerrors "github.com/kevin07696/mpesa-service/pkg/errors"
)

// Operation is a logical gateway call
type Operation string

const (
	OperationAccessToken Operation = "access_token"
	OperationPushPayment Operation = "push_payment"
)

const (
	SandboxBaseURL = "https://sandbox.safaricom.co.ke"
	LiveBaseURL    = "https://api.safaricom.co.ke"
)

var operationPaths = map[Operation]string{
	OperationAccessToken: "/oauth/v1/generate?grant_type=client_credentials",
	OperationPushPayment: "/mpesa/stkpush/v1/processrequest",
}

// EndpointResolver maps operations to URLs for one environment
type EndpointResolver struct {
	baseURL string
}

// NewEndpointResolver resolves against the host for mode.
// Unset or unrecognized modes use the sandbox host. A non-empty override
// replaces the host for every mode (local stubs, egress proxies).
func NewEndpointResolver(mode string, override string) EndpointResolver {
	base := SandboxBaseURL
	if models.ParseMode(mode) == models.ModeLive {
		base = LiveBaseURL
	}
	if override != "" {
		base = strings.TrimRight(override, "/")
	}
	return EndpointResolver{baseURL: base}
}

// URLFor returns the full URL for op
func (r EndpointResolver) URLFor(op Operation) (string, error) {
	path, ok := operationPaths[op]
	if !ok {
		return "", &pkgerrors.UnknownOperationError{Operation: string(op)}
	}
	return r.baseURL + path, nil
}

// BaseURL returns the host the resolver points at
func (r EndpointResolver) BaseURL() string {
	return r.baseURL
}
