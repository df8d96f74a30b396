package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kevin07696/mpesa-service/internal/adapters/ports"
	"github.com/kevin07696/mpesa-service/internal/domain/models"
	pkgerrors "github.com/kevin07696/mpesa-service/pkg/errors"
)

// BasicCredential returns base64(consumerKey + ":" + consumerSecret)
func BasicCredential(consumerKey, consumerSecret string) string {
	return base64.StdEncoding.EncodeToString([]byte(consumerKey + ":" + consumerSecret))
}

// Password returns the STK push password for a request.
// Password = base64(shortCode + passKey + timestamp); a password is only valid
// together with the timestamp it was computed from.
func Password(shortCode, passKey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
}

// CredentialResolver exchanges the consumer key/secret for a bearer token
type CredentialResolver struct {
	consumerKey    string
	consumerSecret string
	endpoints      EndpointResolver
	transport      *Transport
	timeout        time.Duration
	logger         ports.Logger
}

// NewCredentialResolver creates a resolver for the given credentials
func NewCredentialResolver(consumerKey, consumerSecret string, endpoints EndpointResolver, transport *Transport, timeout time.Duration, logger ports.Logger) *CredentialResolver {
	return &CredentialResolver{
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		endpoints:      endpoints,
		transport:      transport,
		timeout:        timeout,
		logger:         ports.OrNop(logger),
	}
}

// FetchAccessToken performs the client-credential exchange.
// It does not retry; every failure is returned as *errors.TokenAcquisitionError.
func (c *CredentialResolver) FetchAccessToken(ctx context.Context) (*models.AccessToken, error) {
	url, err := c.endpoints.URLFor(OperationAccessToken)
	if err != nil {
		return nil, &pkgerrors.TokenAcquisitionError{Err: err}
	}

	body, err := c.transport.Do(ctx, Request{
		URL:     url,
		Method:  "GET",
		Headers: map[string]string{"Authorization": "Basic " + BasicCredential(c.consumerKey, c.consumerSecret)},
		Timeout: c.timeout,
	})
	if err != nil {
		tokenErr := &pkgerrors.TokenAcquisitionError{Err: err}
		var transportErr *pkgerrors.TransportError
		if errors.As(err, &transportErr) && transportErr.Body != nil {
			tokenErr.GatewayMessage = stringField(transportErr.Body, "errorMessage")
		}
		c.logger.Error("access token request failed", ports.Err(tokenErr))
		return nil, tokenErr
	}

	token := stringField(body, "access_token")
	if token == "" {
		tokenErr := &pkgerrors.TokenAcquisitionError{GatewayMessage: stringField(body, "errorMessage")}
		c.logger.Error("access token missing from gateway response", ports.Err(tokenErr))
		return nil, tokenErr
	}

	return &models.AccessToken{
		Token:     token,
		ExpiresIn: parseSeconds(body["expires_in"]),
	}, nil
}

// stringField renders body[key] as a string; absent or null values are empty
func stringField(body map[string]any, key string) string {
	v, ok := body[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// parseSeconds reads expires_in, which the gateway sends as a string ("3599")
func parseSeconds(v any) time.Duration {
	var s string
	switch val := v.(type) {
	case string:
		s = strings.TrimSpace(val)
	case json.Number:
		s = val.String()
	default:
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
