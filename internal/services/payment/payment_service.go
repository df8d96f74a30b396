package payment

import (
	"context"
	"strconv"
	"time"

	"github.com/kevin07696/mpesa-service/internal/adapters/mpesa"
	"github.com/kevin07696/mpesa-service/internal/domain/models"
	"github.com/kevin07696/mpesa-service/internal/services/ports"
	"github.com/kevin07696/mpesa-service/pkg/observability"
	"go.uber.org/zap"
)

// Gateway submits STK pushes; satisfied by *mpesa.Client
type Gateway interface {
	TokenFetcher
	Submit(ctx context.Context, req *models.PushPaymentRequest) *models.PushPaymentResult
}

// Config holds the per-deployment values added to every push
type Config struct {
	CallbackURL string
	Mode        models.Mode
}

// paymentService implements the PaymentService port
type paymentService struct {
	gateway Gateway
	tokens  *TokenCache
	config  Config
	logger  *zap.Logger
	now     func() time.Time
}

// NewPaymentService creates a new payment service
func NewPaymentService(gateway Gateway, tokens *TokenCache, config Config, logger *zap.Logger) ports.PaymentService {
	return &paymentService{
		gateway: gateway,
		tokens:  tokens,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// InitiatePayment obtains a cached token and submits the STK push
func (s *paymentService) InitiatePayment(ctx context.Context, req *ports.InitiatePaymentRequest) *models.PushPaymentResult {
	start := s.now()

	token, err := s.tokens.Get(ctx)
	if err != nil {
		s.logger.Error("Failed to obtain gateway access token",
			zap.String("reference", req.Reference),
			zap.Error(err))
		result := &models.PushPaymentResult{Success: false, Message: mpesa.MsgAccessTokenFailure}
		s.record(result, start)
		return result
	}

	result := s.gateway.Submit(ctx, &models.PushPaymentRequest{
		Amount:      req.Amount,
		Reference:   req.Reference,
		Description: req.Description,
		PhoneNumber: req.PhoneNumber,
		CallbackURL: s.config.CallbackURL,
		AccessToken: token,
	})

	// The gateway revoked or expired the token early; the next request fetches a new one
	if result.ResponseCode == mpesa.InvalidAccessTokenCode {
		s.logger.Warn("Gateway rejected cached access token",
			zap.String("reference", req.Reference))
		s.tokens.Invalidate()
	}

	s.record(result, start)

	if result.Success {
		s.logger.Info("STK push accepted",
			zap.String("reference", req.Reference),
			zap.String("checkout_request_id", result.CheckoutRequestID))
	} else {
		s.logger.Warn("STK push not accepted",
			zap.String("reference", req.Reference),
			zap.String("response_code", result.ResponseCode),
			zap.String("message", result.Message))
	}

	return result
}

func (s *paymentService) record(result *models.PushPaymentResult, start time.Time) {
	status := "rejected"
	if result.Success {
		status = "accepted"
	}
	observability.RecordStkPush(string(s.config.Mode), status, responseCodeLabel(result), s.now().Sub(start).Seconds())
}

// responseCodeLabel maps the gateway's free-form code onto a fixed label set
func responseCodeLabel(result *models.PushPaymentResult) string {
	switch {
	case result.Success, result.ResponseCode == "0":
		return "0"
	case result.ResponseCode == mpesa.InvalidAccessTokenCode:
		return mpesa.InvalidAccessTokenCode
	case result.ResponseCode == "":
		return "none"
	default:
		return "other"
	}
}

// HandleCallback logs and counts the payment outcome. Nothing is persisted.
func (s *paymentService) HandleCallback(ctx context.Context, cb *models.StkCallback) {
	status := "failed"
	if cb.Succeeded() {
		status = "completed"
	}
	observability.RecordCallbackResult(status, strconv.Itoa(cb.ResultCode))

	fields := []zap.Field{
		zap.String("merchant_request_id", cb.MerchantRequestID),
		zap.String("checkout_request_id", cb.CheckoutRequestID),
		zap.Int("result_code", cb.ResultCode),
		zap.String("result_desc", cb.ResultDesc),
	}

	if !cb.Succeeded() {
		s.logger.Info("Payment not completed", fields...)
		return
	}

	for _, name := range []string{"Amount", "MpesaReceiptNumber", "TransactionDate"} {
		if v, ok := cb.Item(name); ok {
			fields = append(fields, zap.String(name, v))
		}
	}
	s.logger.Info("Payment completed", fields...)
}
