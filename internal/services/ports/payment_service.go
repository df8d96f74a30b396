package ports

import (
	"context"

	"github.com/kevin07696/mpesa-service/internal/domain/models"
	"github.com/shopspring/decimal"
)

// InitiatePaymentRequest contains parameters for an STK push initiated through the API
type InitiatePaymentRequest struct {
	PhoneNumber string          // payer MSISDN, 2547XXXXXXXX
	Amount      decimal.Decimal // KES, positive
	Reference   string          // account reference shown to the payer
	Description string
}

// PaymentService defines the business logic for mobile money collections
type PaymentService interface {
	// InitiatePayment triggers a PIN prompt on the payer's handset.
	// Failures are reported in the result, never as an error.
	InitiatePayment(ctx context.Context, req *InitiatePaymentRequest) *models.PushPaymentResult

	// HandleCallback records the asynchronous payment result posted by the gateway
	HandleCallback(ctx context.Context, callback *models.StkCallback)
}
