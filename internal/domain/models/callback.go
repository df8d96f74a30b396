package models

import (
	"encoding/json"
	"strconv"
)

// StkCallbackEnvelope is the webhook body the gateway posts to CallBackURL
type StkCallbackEnvelope struct {
	Body struct {
		StkCallback StkCallback `json:"stkCallback"`
	} `json:"Body"`
}

// StkCallback carries the final outcome of an STK push
type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

// CallbackMetadata is only present on successful payments
type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

// CallbackItem is a Name/Value pair; Value is a number or a string depending on Name
type CallbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

// Succeeded reports whether the payer completed the payment
func (c *StkCallback) Succeeded() bool {
	return c.ResultCode == 0
}

// Item returns the metadata value for name rendered as a string.
// Numbers are rendered without exponent so phone numbers survive.
func (c *StkCallback) Item(name string) (string, bool) {
	if c.CallbackMetadata == nil {
		return "", false
	}
	for _, item := range c.CallbackMetadata.Item {
		if item.Name != name || len(item.Value) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(item.Value, &s); err == nil {
			return s, true
		}
		var n json.Number
		if err := json.Unmarshal(item.Value, &n); err == nil {
			if i, err := n.Int64(); err == nil {
				return strconv.FormatInt(i, 10), true
			}
			return n.String(), true
		}
		return "", false
	}
	return "", false
}

// CallbackAck is the acknowledgement body the gateway expects
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}
