package payment_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kevin07696/mpesa-service/internal/adapters/mpesa"
	"github.com/kevin07696/mpesa-service/internal/domain/models"
	"github.com/kevin07696/mpesa-service/internal/services/payment"
	"github.com/kevin07696/mpesa-service/internal/services/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// MockGateway mocks the STK push gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) FetchAccessToken(ctx context.Context) (*models.AccessToken, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AccessToken), args.Error(1)
}

func (m *MockGateway) Submit(ctx context.Context, req *models.PushPaymentRequest) *models.PushPaymentResult {
	args := m.Called(ctx, req)
	return args.Get(0).(*models.PushPaymentResult)
}

const testCallbackURL = "https://example.com/api/v1/mpesa/callback"

func newTestService(gateway *MockGateway, logger *zap.Logger) ports.PaymentService {
	return payment.NewPaymentService(
		gateway,
		payment.NewTokenCache(gateway, logger),
		payment.Config{CallbackURL: testCallbackURL, Mode: models.ModeSandbox},
		logger,
	)
}

func testRequest() *ports.InitiatePaymentRequest {
	return &ports.InitiatePaymentRequest{
		PhoneNumber: "254712345678",
		Amount:      decimal.NewFromInt(100),
		Reference:   "INV-001",
		Description: "Order 1",
	}
}

func TestInitiatePayment_Success(t *testing.T) {
	gateway := new(MockGateway)
	gateway.On("FetchAccessToken", mock.Anything).
		Return(&models.AccessToken{Token: "bearer-1", ExpiresIn: time.Hour}, nil).Once()
	gateway.On("Submit", mock.Anything, mock.MatchedBy(func(req *models.PushPaymentRequest) bool {
		return req.AccessToken == "bearer-1" &&
			req.CallbackURL == testCallbackURL &&
			req.PhoneNumber == "254712345678" &&
			req.Amount.Equal(decimal.NewFromInt(100)) &&
			req.Reference == "INV-001" &&
			req.Timestamp == ""
	})).Return(&models.PushPaymentResult{Success: true, Message: "ok", CheckoutRequestID: "ws_CO_1", ResponseCode: "0"}).Twice()

	svc := newTestService(gateway, zap.NewNop())

	first := svc.InitiatePayment(context.Background(), testRequest())
	second := svc.InitiatePayment(context.Background(), testRequest())

	assert.True(t, first.Success)
	assert.Equal(t, "ws_CO_1", first.CheckoutRequestID)
	assert.True(t, second.Success)
	gateway.AssertExpectations(t) // one token fetch serves both pushes
}

func TestInitiatePayment_TokenFailure(t *testing.T) {
	gateway := new(MockGateway)
	gateway.On("FetchAccessToken", mock.Anything).Return(nil, errors.New("invalid credentials"))

	result := newTestService(gateway, zap.NewNop()).InitiatePayment(context.Background(), testRequest())

	assert.False(t, result.Success)
	assert.Equal(t, mpesa.MsgAccessTokenFailure, result.Message)
	assert.Empty(t, result.CheckoutRequestID)
	gateway.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestInitiatePayment_InvalidTokenInvalidatesCache(t *testing.T) {
	gateway := new(MockGateway)
	gateway.On("FetchAccessToken", mock.Anything).
		Return(&models.AccessToken{Token: "revoked", ExpiresIn: time.Hour}, nil).Once()
	gateway.On("FetchAccessToken", mock.Anything).
		Return(&models.AccessToken{Token: "fresh", ExpiresIn: time.Hour}, nil).Once()
	gateway.On("Submit", mock.Anything, mock.MatchedBy(func(req *models.PushPaymentRequest) bool {
		return req.AccessToken == "revoked"
	})).Return(&models.PushPaymentResult{Success: false, Message: "Invalid Access Token", ResponseCode: mpesa.InvalidAccessTokenCode}).Once()
	gateway.On("Submit", mock.Anything, mock.MatchedBy(func(req *models.PushPaymentRequest) bool {
		return req.AccessToken == "fresh"
	})).Return(&models.PushPaymentResult{Success: true, Message: "ok", CheckoutRequestID: "ws_CO_2", ResponseCode: "0"}).Once()

	svc := newTestService(gateway, zap.NewNop())

	first := svc.InitiatePayment(context.Background(), testRequest())
	assert.False(t, first.Success, "rejection is reported, not retried")

	second := svc.InitiatePayment(context.Background(), testRequest())
	assert.True(t, second.Success)

	gateway.AssertExpectations(t)
}

func TestInitiatePayment_OtherRejectionKeepsToken(t *testing.T) {
	gateway := new(MockGateway)
	gateway.On("FetchAccessToken", mock.Anything).
		Return(&models.AccessToken{Token: "bearer", ExpiresIn: time.Hour}, nil).Once()
	gateway.On("Submit", mock.Anything, mock.Anything).
		Return(&models.PushPaymentResult{Success: false, Message: "Bad Request - Invalid Amount", ResponseCode: "400.002.02"})

	svc := newTestService(gateway, zap.NewNop())
	svc.InitiatePayment(context.Background(), testRequest())
	svc.InitiatePayment(context.Background(), testRequest())

	gateway.AssertNumberOfCalls(t, "FetchAccessToken", 1)
}

func decodeCallback(t *testing.T, body string) *models.StkCallback {
	t.Helper()
	var env models.StkCallbackEnvelope
	require.NoError(t, json.Unmarshal([]byte(body), &env))
	return &env.Body.StkCallback
}

const completedCallback = `{"Body":{"stkCallback":{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925","ResultCode":0,"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[{"Name":"Amount","Value":1.00},{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},{"Name":"TransactionDate","Value":20191219102115},{"Name":"PhoneNumber","Value":254708374149}]}}}}`

func TestHandleCallback(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantMessage string
		wantFields  map[string]interface{}
	}{
		{
			name:        "completed payment",
			body:        completedCallback,
			wantMessage: "Payment completed",
			wantFields: map[string]interface{}{
				"checkout_request_id": "ws_CO_191220191020363925",
				"MpesaReceiptNumber":  "NLJ7RT61SV",
				"TransactionDate":     "20191219102115",
			},
		},
		{
			name:        "cancelled by payer",
			body:        `{"Body":{"stkCallback":{"MerchantRequestID":"1","CheckoutRequestID":"ws_CO_2","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`,
			wantMessage: "Payment not completed",
			wantFields: map[string]interface{}{
				"checkout_request_id": "ws_CO_2",
				"result_desc":         "Request cancelled by user",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.InfoLevel)
			svc := newTestService(new(MockGateway), zap.New(core))

			svc.HandleCallback(context.Background(), decodeCallback(t, tt.body))

			entries := logs.FilterMessage(tt.wantMessage).All()
			require.Len(t, entries, 1)
			ctx := entries[0].ContextMap()
			for k, v := range tt.wantFields {
				assert.Equal(t, v, ctx[k], k)
			}
			_, hasPhone := ctx["PhoneNumber"]
			assert.False(t, hasPhone, "payer phone is not logged")
		})
	}
}
