package stkpush

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kevin07696/mpesa-service/internal/auth"
	"github.com/kevin07696/mpesa-service/internal/services/ports"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxRequestBytes = 16 << 10

const (
	// AccountReference is limited to 12 characters by the gateway
	maxReferenceLength = 12
	defaultDescription = "Payment"
)

var msisdnPattern = regexp.MustCompile(`^254[17]\d{8}$`)

// Request is the body of POST /api/v1/stkpush
type Request struct {
	PhoneNumber string          `json:"phone_number" validate:"required,msisdn"`
	Amount      decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Reference   string          `json:"reference" validate:"omitempty,max=12"`
	Description string          `json:"description" validate:"omitempty,max=13"`
}

// Handler exposes STK push initiation as a JSON endpoint
type Handler struct {
	service  ports.PaymentService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHandler creates a new STK push handler
func NewHandler(service ports.PaymentService, logger *zap.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: newValidator(),
		logger:   logger,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON names in validation errors
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})

	// Compare decimal amounts as numbers
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("msisdn", func(fl validator.FieldLevel) bool {
		return msisdnPattern.MatchString(fl.Field().String())
	})

	return v
}

// NormalizeMSISDN converts common local forms (07XX..., +2547XX...) to 2547XX...
func NormalizeMSISDN(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.NewReplacer(" ", "", "-", "").Replace(phone)
	phone = strings.TrimPrefix(phone, "+")
	if strings.HasPrefix(phone, "0") && len(phone) == 10 {
		phone = "254" + phone[1:]
	}
	return phone
}

// HandleStkPush handles POST /api/v1/stkpush
func (h *Handler) HandleStkPush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}

	var req Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.PhoneNumber = NormalizeMSISDN(req.PhoneNumber)
	if err := h.validate.Struct(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	if req.Reference == "" {
		req.Reference = defaultReference()
	}
	if req.Description == "" {
		req.Description = defaultDescription
	}

	h.logger.Info("STK push requested",
		zap.String("reference", req.Reference),
		zap.String("request_id", auth.GetRequestID(r.Context())),
	)

	result := h.service.InitiatePayment(r.Context(), &ports.InitiatePaymentRequest{
		PhoneNumber: req.PhoneNumber,
		Amount:      req.Amount,
		Reference:   req.Reference,
		Description: req.Description,
	})

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// defaultReference derives a gateway-sized reference from a UUID
func defaultReference() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return id[:maxReferenceLength]
}

// validationMessage renders the first failed field as a client-facing message
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "msisdn":
		return fmt.Sprintf("%s must be a Safaricom number like 2547XXXXXXXX", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// respondError sends an error response in the same shape as a failed push
func (h *Handler) respondError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := map[string]interface{}{
		"success": false,
		"message": message,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}
