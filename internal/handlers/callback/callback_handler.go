package callback

import (
	"encoding/json"
	"net/http"

	"github.com/kevin07696/mpesa-service/internal/auth"
	"github.com/kevin07696/mpesa-service/internal/domain/models"
	"github.com/kevin07696/mpesa-service/internal/services/ports"
	"go.uber.org/zap"
)

const maxCallbackBytes = 64 << 10

var (
	ackAccepted = models.CallbackAck{ResultCode: 0, ResultDesc: "Accepted"}
	ackRejected = models.CallbackAck{ResultCode: 1, ResultDesc: "Rejected"}
)

// Handler receives STK push results posted by the gateway.
// Source verification is done by the callback auth middleware in front of it.
type Handler struct {
	service ports.PaymentService
	logger  *zap.Logger
}

// NewHandler creates a new callback handler
func NewHandler(service ports.PaymentService, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// HandleStkCallback handles POST /api/v1/mpesa/callback
func (h *Handler) HandleStkCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	var envelope models.StkCallbackEnvelope
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCallbackBytes)).Decode(&envelope); err != nil {
		h.logger.Warn("Malformed STK callback",
			zap.String("request_id", auth.GetRequestID(ctx)),
			zap.String("client_ip", auth.GetClientIP(ctx)),
			zap.Error(err))
		h.respond(w, http.StatusBadRequest, ackRejected)
		return
	}

	cb := &envelope.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		h.logger.Warn("STK callback without checkout request id",
			zap.String("request_id", auth.GetRequestID(ctx)),
			zap.String("client_ip", auth.GetClientIP(ctx)))
		h.respond(w, http.StatusBadRequest, ackRejected)
		return
	}

	h.logger.Debug("STK callback received",
		zap.String("request_id", auth.GetRequestID(ctx)),
		zap.String("client_ip", auth.GetClientIP(ctx)),
		zap.String("checkout_request_id", cb.CheckoutRequestID))

	h.service.HandleCallback(ctx, cb)
	h.respond(w, http.StatusOK, ackAccepted)
}

func (h *Handler) respond(w http.ResponseWriter, status int, ack models.CallbackAck) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ack); err != nil {
		h.logger.Error("Failed to encode callback acknowledgement", zap.Error(err))
	}
}
