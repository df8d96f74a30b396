package mpesa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kevin07696/mpesa-service/internal/adapters/ports"
	"github.com/kevin07696/mpesa-service/internal/domain/models"
	pkgerrors "github.com/kevin07696/mpesa-service/pkg/errors"
	"github.com/kevin07696/mpesa-service/pkg/timeutil"
)

// MsgAccessTokenFailure is the result message when no bearer token could be obtained
const MsgAccessTokenFailure = "error getting access code."

// Config holds the gateway credentials and environment for one merchant short code
type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string // business short code (paybill / till)
	PassKey        string // Lipa Na M-Pesa online passkey
	PhoneNumber    string // admin MSISDN sent as PartyA; the payer's number is used when empty
	Mode           string // "sandbox" or "live"; anything else means sandbox

	BaseURL string        // optional host override
	Timeout time.Duration // per-call timeout, DefaultTimeout when zero

	Logger ports.Logger // nil means no logging
}

// Validate checks that every credential needed before a network call is set
func (c Config) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"consumer_key", c.ConsumerKey},
		{"consumer_secret", c.ConsumerSecret},
		{"short_code", c.ShortCode},
		{"stk_pass_key", c.PassKey},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return pkgerrors.NewValidationError(r.field, "is required")
		}
	}
	return nil
}

// Client implements the STK push flow against the gateway.
// It holds no mutable state and is safe for concurrent use.
type Client struct {
	config      Config
	endpoints   EndpointResolver
	transport   *Transport
	credentials *CredentialResolver
	logger      ports.Logger
	now         func() time.Time
}

// NewClient creates a client with dependency injection
func NewClient(config Config, httpClient ports.HTTPClient) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := ports.OrNop(config.Logger)
	endpoints := NewEndpointResolver(config.Mode, config.BaseURL)
	transport := NewTransport(httpClient, logger)

	return &Client{
		config:      config,
		endpoints:   endpoints,
		transport:   transport,
		credentials: NewCredentialResolver(config.ConsumerKey, config.ConsumerSecret, endpoints, transport, config.Timeout, logger),
		logger:      logger,
		now:         timeutil.Now,
	}, nil
}

// Endpoints exposes the resolver the client uses
func (c *Client) Endpoints() EndpointResolver {
	return c.endpoints
}

// FetchAccessToken performs the client-credential exchange
func (c *Client) FetchAccessToken(ctx context.Context) (*models.AccessToken, error) {
	return c.credentials.FetchAccessToken(ctx)
}

// BuildPayload renders the processrequest body for req at the given timestamp.
// The same request and timestamp always produce identical bytes.
func (c *Client) BuildPayload(req *models.PushPaymentRequest, timestamp string) ([]byte, error) {
	partyA := c.config.PhoneNumber
	if partyA == "" {
		partyA = req.PhoneNumber
	}

	payload := models.StkPushPayload{
		BusinessShortCode: c.config.ShortCode,
		Password:          Password(c.config.ShortCode, c.config.PassKey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   models.TransactionTypePayBillOnline,
		Amount:            json.Number(req.Amount.String()),
		PartyA:            partyA,
		PartyB:            c.config.ShortCode,
		PhoneNumber:       req.PhoneNumber,
		CallBackURL:       req.CallbackURL,
		AccountReference:  req.Reference,
		TransactionDesc:   req.Description,
	}
	return json.Marshal(payload)
}

// Submit sends an STK push. It never returns an error: every failure is
// logged and reported as a result with Success=false.
func (c *Client) Submit(ctx context.Context, req *models.PushPaymentRequest) *models.PushPaymentResult {
	result, err := c.submit(ctx, req)
	if err != nil {
		reference := ""
		if req != nil {
			reference = req.Reference
		}
		c.logger.Error("STK push failed",
			ports.String("reference", reference),
			ports.Err(err),
		)
		return &models.PushPaymentResult{Success: false, Message: err.Error()}
	}
	return result
}

func (c *Client) submit(ctx context.Context, req *models.PushPaymentRequest) (*models.PushPaymentResult, error) {
	if req == nil {
		return nil, pkgerrors.NewValidationError("request", "is required")
	}
	if !req.Amount.IsPositive() {
		return nil, pkgerrors.NewValidationError("amount", "must be greater than zero")
	}

	token := req.AccessToken
	if token == "" {
		accessToken, err := c.credentials.FetchAccessToken(ctx)
		if err == nil {
			token = accessToken.Token
		}
		if token == "" {
			c.logger.Error(MsgAccessTokenFailure,
				ports.String("reference", req.Reference),
				ports.Err(err),
			)
			return &models.PushPaymentResult{Success: false, Message: MsgAccessTokenFailure}, nil
		}
	}

	timestamp := req.Timestamp
	if timestamp == "" {
		timestamp = timeutil.GatewayTimestamp(c.now())
	} else if _, err := timeutil.ParseGatewayTimestamp(timestamp); err != nil {
		return nil, pkgerrors.NewValidationError("timestamp", "must be formatted YYYYMMDDHHMMSS")
	}

	payload, err := c.BuildPayload(req, timestamp)
	if err != nil {
		return nil, err
	}

	url, err := c.endpoints.URLFor(OperationPushPayment)
	if err != nil {
		return nil, err
	}

	c.logger.Info("submitting STK push",
		ports.String("reference", req.Reference),
		ports.String("phone", maskMSISDN(req.PhoneNumber)),
		ports.String("timestamp", timestamp),
	)

	body, err := c.transport.Do(ctx, Request{
		URL:    url,
		Method: "POST",
		Headers: map[string]string{
			"Authorization": "Bearer " + token,
			"Content-Type":  "application/json",
		},
		Body:    payload,
		Timeout: c.config.Timeout,
	})
	if err != nil {
		// Rejections (bad amount, invalid token) come back as 4xx/5xx with a JSON body.
		// The body supplies the message and code; a non-2xx status is never a success.
		var transportErr *pkgerrors.TransportError
		if errors.As(err, &transportErr) && transportErr.Body != nil {
			result := NormalizeResponse(transportErr.Body)
			result.Success = false
			result.CheckoutRequestID = ""
			if result.Message == "" {
				result.Message = fmt.Sprintf("payment gateway answered HTTP %d", transportErr.Code)
			}
			c.logger.Warn("STK push rejected by gateway",
				ports.String("reference", req.Reference),
				ports.Int("status", transportErr.Code),
				ports.String("response_code", result.ResponseCode),
				ports.String("message", result.Message),
			)
			return result, nil
		}
		return nil, err
	}

	result := NormalizeResponse(body)
	c.logger.Info("STK push answered",
		ports.String("reference", req.Reference),
		ports.String("response_code", result.ResponseCode),
		ports.String("checkout_request_id", result.CheckoutRequestID),
	)
	return result, nil
}

// maskMSISDN keeps the country prefix and the last three digits
func maskMSISDN(msisdn string) string {
	if len(msisdn) <= 6 {
		return strings.Repeat("*", len(msisdn))
	}
	return msisdn[:3] + strings.Repeat("*", len(msisdn)-6) + msisdn[len(msisdn)-3:]
}
