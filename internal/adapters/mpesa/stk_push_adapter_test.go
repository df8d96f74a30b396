package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kevin07696/mpesa-service/internal/adapters/ports"
	"github.com/kevin07696/mpesa-service/internal/domain/models"
	pkgerrors "github.com/kevin07696/mpesa-service/pkg/errors"
	"github.com/kevin07696/mpesa-service/test/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testShortCode = "174379"
	testPassKey   = "bfb279f9aa9bdbcf158e97dd71a467cd2e0c893059b10f78e6b72ada1ed2c919"
)

func testConfig(baseURL string) Config {
	return Config{
		ConsumerKey:    "consumer-key",
		ConsumerSecret: "consumer-secret",
		ShortCode:      testShortCode,
		PassKey:        testPassKey,
		PhoneNumber:    "254700000001",
		Mode:           "sandbox",
		BaseURL:        baseURL,
		Timeout:        5 * time.Second,
	}
}

func testRequest() *models.PushPaymentRequest {
	return &models.PushPaymentRequest{
		Amount:      decimal.NewFromInt(100),
		Reference:   "INV-1001",
		Description: "Order 1001",
		PhoneNumber: "254712345678",
		CallbackURL: "https://merchant.example/api/v1/mpesa/callback",
	}
}

// gatewayStub serves the token and processrequest endpoints
type gatewayStub struct {
	tokenBody  string
	pushStatus int
	pushBody   string

	tokenCalls atomic.Int32
	pushCalls  atomic.Int32
	lastPush   atomic.Value // map[string]any
	lastAuth   atomic.Value // string
}

func (g *gatewayStub) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/oauth/v1/generate":
			g.tokenCalls.Add(1)
			w.Write([]byte(g.tokenBody))
		case "/mpesa/stkpush/v1/processrequest":
			g.pushCalls.Add(1)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			g.lastAuth.Store(r.Header.Get("Authorization"))

			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			g.lastPush.Store(payload)

			status := g.pushStatus
			if status == 0 {
				status = http.StatusOK
			}
			w.WriteHeader(status)
			w.Write([]byte(g.pushBody))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func setupStkPushTest(t *testing.T, stub *gatewayStub) (*Client, *mocks.MockLogger) {
	t.Helper()
	server := httptest.NewServer(stub.handler(t))
	t.Cleanup(server.Close)

	logger := mocks.NewMockLogger()
	cfg := testConfig(server.URL)
	cfg.Logger = logger

	client, err := NewClient(cfg, &http.Client{})
	require.NoError(t, err)
	client.now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }

	return client, logger
}

func TestClient_Submit_Success(t *testing.T) {
	stub := &gatewayStub{
		tokenBody: `{"access_token":"fresh-token","expires_in":"3599"}`,
		pushBody:  `{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_1","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success. Request accepted for processing"}`,
	}
	client, _ := setupStkPushTest(t, stub)

	result := client.Submit(context.Background(), testRequest())

	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Equal(t, "Success. Request accepted for processing", result.Message)
	assert.Equal(t, "ws_CO_1", result.CheckoutRequestID)
	assert.Equal(t, int32(1), stub.tokenCalls.Load())
	assert.Equal(t, int32(1), stub.pushCalls.Load())
	assert.Equal(t, "Bearer fresh-token", stub.lastAuth.Load())

	payload := stub.lastPush.Load().(map[string]any)
	assert.Equal(t, testShortCode, payload["BusinessShortCode"])
	assert.Equal(t, testShortCode, payload["PartyB"])
	assert.Equal(t, "254700000001", payload["PartyA"])
	assert.Equal(t, "254712345678", payload["PhoneNumber"])
	assert.Equal(t, "CustomerPayBillOnline", payload["TransactionType"])
	assert.Equal(t, float64(100), payload["Amount"])
	assert.Equal(t, "INV-1001", payload["AccountReference"])
	assert.Equal(t, "Order 1001", payload["TransactionDesc"])
	assert.Equal(t, "https://merchant.example/api/v1/mpesa/callback", payload["CallBackURL"])
	assert.Equal(t, "20250304050607", payload["Timestamp"])

	password, err := base64.StdEncoding.DecodeString(payload["Password"].(string))
	require.NoError(t, err)
	assert.Equal(t, testShortCode+testPassKey+"20250304050607", string(password))
}

func TestClient_Submit_UsesSuppliedTokenAndTimestamp(t *testing.T) {
	stub := &gatewayStub{
		pushBody: `{"errorCode":0,"errorMessage":"ok2","requestId":"xyz"}`,
	}
	client, _ := setupStkPushTest(t, stub)

	req := testRequest()
	req.AccessToken = "cached-token"
	req.Timestamp = "20240101000000"

	result := client.Submit(context.Background(), req)

	assert.True(t, result.Success)
	assert.Equal(t, "ok2", result.Message)
	assert.Equal(t, "xyz", result.CheckoutRequestID)
	assert.Equal(t, int32(0), stub.tokenCalls.Load(), "supplied token must skip the credential exchange")
	assert.Equal(t, "Bearer cached-token", stub.lastAuth.Load())

	payload := stub.lastPush.Load().(map[string]any)
	assert.Equal(t, "20240101000000", payload["Timestamp"])
	assert.Equal(t, Password(testShortCode, testPassKey, "20240101000000"), payload["Password"])
}

func TestClient_Submit_TokenMissing_NoPush(t *testing.T) {
	stub := &gatewayStub{
		tokenBody: `{"errorCode":"400.008.01","errorMessage":"Invalid Authentication passed"}`,
		pushBody:  `{"ResponseCode":"0"}`,
	}
	client, logger := setupStkPushTest(t, stub)

	result := client.Submit(context.Background(), testRequest())

	assert.False(t, result.Success)
	assert.Equal(t, "error getting access code.", result.Message)
	assert.Empty(t, result.CheckoutRequestID)
	assert.Equal(t, int32(1), stub.tokenCalls.Load())
	assert.Equal(t, int32(0), stub.pushCalls.Load(), "must not POST without a token")
	assert.NotEmpty(t, logger.ErrorMessages())
}

func TestClient_Submit_GatewayRejection(t *testing.T) {
	stub := &gatewayStub{
		tokenBody:  `{"access_token":"tok"}`,
		pushStatus: http.StatusBadRequest,
		pushBody:   `{"requestId":"6219-1234","errorCode":"400.002.02","errorMessage":"Bad Request - Invalid Amount"}`,
	}
	client, logger := setupStkPushTest(t, stub)

	result := client.Submit(context.Background(), testRequest())

	assert.False(t, result.Success)
	assert.Equal(t, "Bad Request - Invalid Amount", result.Message)
	assert.Equal(t, "400.002.02", result.ResponseCode)
	assert.Empty(t, result.CheckoutRequestID)
	assert.NotEmpty(t, logger.WarnCalls)
}

func TestClient_Submit_InvalidTokenCode(t *testing.T) {
	stub := &gatewayStub{
		pushStatus: http.StatusNotFound,
		pushBody:   `{"requestId":"1-2","errorCode":"404.001.03","errorMessage":"Invalid Access Token"}`,
	}
	client, _ := setupStkPushTest(t, stub)

	req := testRequest()
	req.AccessToken = "expired"
	result := client.Submit(context.Background(), req)

	assert.False(t, result.Success)
	assert.Equal(t, InvalidAccessTokenCode, result.ResponseCode)
}

func TestClient_Submit_NonSuccessStatusNeverSucceeds(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantCode    string
	}{
		{
			name:        "503 with zero code",
			status:      http.StatusServiceUnavailable,
			body:        `{"ResponseCode":"0","CustomerMessage":"ok","CheckoutRequestID":"abc"}`,
			wantMessage: "ok",
			wantCode:    "0",
		},
		{
			name:        "500 with zero error code",
			status:      http.StatusInternalServerError,
			body:        `{"errorCode":0,"errorMessage":"ok2","requestId":"xyz"}`,
			wantMessage: "ok2",
			wantCode:    "0",
		},
		{
			name:        "502 with zero code and no message",
			status:      http.StatusBadGateway,
			body:        `{"ResponseCode":0,"CheckoutRequestID":"abc"}`,
			wantMessage: "payment gateway answered HTTP 502",
			wantCode:    "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &gatewayStub{pushStatus: tt.status, pushBody: tt.body}
			client, _ := setupStkPushTest(t, stub)

			req := testRequest()
			req.AccessToken = "tok"
			result := client.Submit(context.Background(), req)

			assert.False(t, result.Success)
			assert.Equal(t, tt.wantMessage, result.Message)
			assert.Equal(t, tt.wantCode, result.ResponseCode)
			assert.Empty(t, result.CheckoutRequestID)
			assert.Equal(t, int32(1), stub.pushCalls.Load())
		})
	}
}

func TestClient_Submit_NonPositiveAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount decimal.Decimal
	}{
		{"zero", decimal.Zero},
		{"negative", decimal.NewFromInt(-10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpClient := mocks.NewMockHTTPClient(nil)
			client, err := NewClient(testConfig(""), httpClient)
			require.NoError(t, err)

			req := testRequest()
			req.Amount = tt.amount
			result := client.Submit(context.Background(), req)

			assert.False(t, result.Success)
			assert.Contains(t, result.Message, "amount")
			assert.Equal(t, 0, httpClient.CallCount(), "no token fetch or push for an invalid amount")
		})
	}
}

func TestClient_Submit_LoggerFunc(t *testing.T) {
	tokenFailure := func(req *http.Request) (*http.Response, error) {
		return mocks.JSONResponse(http.StatusOK, `{"errorCode":"400.008.01","errorMessage":"Invalid credentials"}`), nil
	}

	t.Run("receives failure messages", func(t *testing.T) {
		var lines []string
		cfg := testConfig("")
		cfg.Logger = ports.LoggerFunc(func(msg string) { lines = append(lines, msg) })
		client, err := NewClient(cfg, mocks.NewMockHTTPClient(tokenFailure))
		require.NoError(t, err)

		result := client.Submit(context.Background(), testRequest())

		assert.False(t, result.Success)
		assert.Equal(t, MsgAccessTokenFailure, result.Message)

		var sawFailure bool
		for _, line := range lines {
			if strings.HasPrefix(line, "ERROR "+MsgAccessTokenFailure) {
				sawFailure = true
			}
		}
		assert.True(t, sawFailure, "callback should receive the access token failure, got %q", lines)
	})

	t.Run("nil callback is ignored", func(t *testing.T) {
		cfg := testConfig("")
		cfg.Logger = ports.LoggerFunc(nil)
		client, err := NewClient(cfg, mocks.NewMockHTTPClient(tokenFailure))
		require.NoError(t, err)

		assert.NotPanics(t, func() {
			result := client.Submit(context.Background(), testRequest())
			assert.Equal(t, MsgAccessTokenFailure, result.Message)
		})
	})
}

func TestClient_Submit_NonJSONResponse(t *testing.T) {
	stub := &gatewayStub{
		tokenBody: `{"access_token":"tok"}`,
		pushBody:  `<html>maintenance</html>`,
	}
	client, logger := setupStkPushTest(t, stub)

	result := client.Submit(context.Background(), testRequest())

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "failed to decode gateway response")
	assert.Contains(t, logger.ErrorMessages(), "STK push failed")
}

func TestClient_Submit_TransportFailure(t *testing.T) {
	httpClient := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: i/o timeout")
	})
	client, err := NewClient(testConfig(""), httpClient)
	require.NoError(t, err)

	req := testRequest()
	req.AccessToken = "tok"
	result := client.Submit(context.Background(), req)

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "i/o timeout")
	assert.Empty(t, result.CheckoutRequestID)
}

func TestClient_Submit_InvalidTimestamp(t *testing.T) {
	httpClient := mocks.NewMockHTTPClient(nil)
	client, err := NewClient(testConfig(""), httpClient)
	require.NoError(t, err)

	req := testRequest()
	req.AccessToken = "tok"
	req.Timestamp = "2024-01-01"
	result := client.Submit(context.Background(), req)

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "timestamp")
	assert.Equal(t, 0, httpClient.CallCount())
}

func TestClient_Submit_NilRequest(t *testing.T) {
	client, err := NewClient(testConfig(""), mocks.NewMockHTTPClient(nil))
	require.NoError(t, err)

	result := client.Submit(context.Background(), nil)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Message)
}

func TestClient_Submit_NoLoggerIsNoop(t *testing.T) {
	httpClient := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return mocks.JSONResponse(http.StatusOK, `{"errorMessage":"no token here"}`), nil
	})
	cfg := testConfig("")
	cfg.Logger = nil
	client, err := NewClient(cfg, httpClient)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		result := client.Submit(context.Background(), testRequest())
		assert.Equal(t, MsgAccessTokenFailure, result.Message)
	})
}

func TestClient_PartyAFallsBackToPayer(t *testing.T) {
	cfg := testConfig("")
	cfg.PhoneNumber = ""
	client, err := NewClient(cfg, mocks.NewMockHTTPClient(nil))
	require.NoError(t, err)

	raw, err := client.BuildPayload(testRequest(), "20250101000000")
	require.NoError(t, err)

	var payload models.StkPushPayload
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "254712345678", payload.PartyA)
}

func TestClient_BuildPayload_Deterministic(t *testing.T) {
	client, err := NewClient(testConfig(""), mocks.NewMockHTTPClient(nil))
	require.NoError(t, err)

	p1, err := client.BuildPayload(testRequest(), "20250101000000")
	require.NoError(t, err)
	p2, err := client.BuildPayload(testRequest(), "20250101000000")
	require.NoError(t, err)

	assert.Equal(t, p1, p2, "fixed timestamp must give byte-identical payloads")

	p3, err := client.BuildPayload(testRequest(), "20250101000001")
	require.NoError(t, err)
	assert.NotEqual(t, p1, p3)
}

func TestClient_BuildPayload_DecimalAmount(t *testing.T) {
	client, err := NewClient(testConfig(""), mocks.NewMockHTTPClient(nil))
	require.NoError(t, err)

	req := testRequest()
	req.Amount = decimal.RequireFromString("1.50")
	raw, err := client.BuildPayload(req, "20250101000000")
	require.NoError(t, err)

	assert.Contains(t, string(raw), `"Amount":1.5`)
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*Config)
		field string
	}{
		{"missing consumer key", func(c *Config) { c.ConsumerKey = "" }, "consumer_key"},
		{"missing consumer secret", func(c *Config) { c.ConsumerSecret = " " }, "consumer_secret"},
		{"missing short code", func(c *Config) { c.ShortCode = "" }, "short_code"},
		{"missing pass key", func(c *Config) { c.PassKey = "" }, "stk_pass_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("")
			tt.mut(&cfg)

			client, err := NewClient(cfg, mocks.NewMockHTTPClient(nil))
			require.Error(t, err)
			assert.Nil(t, client)

			var validationErr *pkgerrors.ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestMaskMSISDN(t *testing.T) {
	assert.Equal(t, "254******678", maskMSISDN("254712345678"))
	assert.Equal(t, "****", maskMSISDN("1234"))
}
