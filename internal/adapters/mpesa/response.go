package mpesa

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kevin07696/mpesa-service/internal/domain/models"
)

// The gateway names the same logical values differently across sandbox/live and
// success/error payloads. Candidates are checked in order; the first present wins.
var (
	responseCodeFields = []string{"ResponseCode", "responseCode", "errorCode"}
	messageFields      = []string{"CustomerMessage", "responseDesc", "errorMessage"}
	checkoutIDFields   = []string{"CheckoutRequestID", "responseId", "requestId"}
)

const (
	msgUnrecognizedResponse = "unrecognized response from payment gateway"

	// Daraja answers with this errorCode when the bearer token is expired or revoked
	InvalidAccessTokenCode = "404.001.03"
)

// NormalizeResponse folds a decoded push-payment response into a result.
// The response succeeds only when a recognized code field is present and zero.
// Failed results always carry a message and never a checkout id.
func NormalizeResponse(body map[string]any) *models.PushPaymentResult {
	result := &models.PushPaymentResult{}

	code, hasCode := firstPresent(body, responseCodeFields)
	if hasCode {
		result.ResponseCode = renderValue(code)
	}
	result.Success = hasCode && isZeroCode(code)
	result.Message = firstPopulated(body, messageFields)

	if result.Success {
		result.CheckoutRequestID = firstPopulated(body, checkoutIDFields)
		return result
	}

	if result.Message == "" {
		if hasCode {
			result.Message = fmt.Sprintf("payment request rejected by gateway (code %s)", result.ResponseCode)
		} else {
			result.Message = msgUnrecognizedResponse
		}
	}
	return result
}

// firstPresent returns the first candidate key that exists with a non-null value
func firstPresent(body map[string]any, keys []string) (any, bool) {
	for _, key := range keys {
		if v, ok := body[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// firstPopulated returns the first candidate rendered as a non-empty string
func firstPopulated(body map[string]any, keys []string) string {
	for _, key := range keys {
		if v, ok := body[key]; ok && v != nil {
			if s := renderValue(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func renderValue(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// isZeroCode accepts 0, "0", "00" and similar numeric zeros
func isZeroCode(v any) bool {
	var s string
	switch val := v.(type) {
	case json.Number:
		s = val.String()
	case string:
		s = strings.TrimSpace(val)
	case float64:
		return val == 0
	default:
		return false
	}
	if s == "" {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && f == 0
}
