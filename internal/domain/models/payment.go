package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Mode selects the gateway environment
type Mode string

const (
	ModeSandbox Mode = "sandbox"
	ModeLive    Mode = "live"
)

// ParseMode maps a configured mode string to a Mode.
// Empty or unrecognized values resolve to sandbox.
func ParseMode(s string) Mode {
	if Mode(s) == ModeLive {
		return ModeLive
	}
	return ModeSandbox
}

// TransactionTypePayBillOnline is the only transaction type the STK push uses
const TransactionTypePayBillOnline = "CustomerPayBillOnline"

// AccessToken is a bearer token issued by the client-credential exchange.
// Lifetime is not tracked here; callers that cache it must re-fetch on expiry.
type AccessToken struct {
	Token     string
	ExpiresIn time.Duration // as reported by the gateway, zero if absent
}

// PushPaymentRequest describes one STK push (PIN prompt on the payer's handset)
type PushPaymentRequest struct {
	Amount      decimal.Decimal
	Reference   string // AccountReference, max 12 characters on the gateway side
	Description string // TransactionDesc
	PhoneNumber string // payer MSISDN, e.g. 254712345678
	CallbackURL string

	// Timestamp formatted YYYYMMDDHHMMSS. Empty means "now" in UTC.
	Timestamp string

	// AccessToken skips the credential exchange when set
	AccessToken string
}

// PushPaymentResult is the normalized outcome of a push-payment submission
type PushPaymentResult struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	CheckoutRequestID string `json:"ref_id"`

	// ResponseCode is the raw gateway code (ResponseCode/responseCode/errorCode), empty when absent
	ResponseCode string `json:"response_code,omitempty"`
}

// StkPushPayload is the JSON body of the processrequest call
type StkPushPayload struct {
	BusinessShortCode string      `json:"BusinessShortCode"`
	Password          string      `json:"Password"`
	Timestamp         string      `json:"Timestamp"`
	TransactionType   string      `json:"TransactionType"`
	Amount            json.Number `json:"Amount"`
	PartyA            string      `json:"PartyA"`
	PartyB            string      `json:"PartyB"`
	PhoneNumber       string      `json:"PhoneNumber"`
	CallBackURL       string      `json:"CallBackURL"`
	AccountReference  string      `json:"AccountReference"`
	TransactionDesc   string      `json:"TransactionDesc"`
}
