package mpesa

import (
	"errors"
	"testing"

	pkgerrors "github.com/kevin07696/mpesa-service/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointResolver_URLFor(t *testing.T) {
	tests := []struct {
		name string
		mode string
		op   Operation
		want string
	}{
		{"sandbox token", "sandbox", OperationAccessToken, "https://sandbox.safaricom.co.ke/oauth/v1/generate?grant_type=client_credentials"},
		{"sandbox push", "sandbox", OperationPushPayment, "https://sandbox.safaricom.co.ke/mpesa/stkpush/v1/processrequest"},
		{"unset mode token", "", OperationAccessToken, "https://sandbox.safaricom.co.ke/oauth/v1/generate?grant_type=client_credentials"},
		{"unset mode push", "", OperationPushPayment, "https://sandbox.safaricom.co.ke/mpesa/stkpush/v1/processrequest"},
		{"unrecognized mode", "production", OperationPushPayment, "https://sandbox.safaricom.co.ke/mpesa/stkpush/v1/processrequest"},
		{"live token", "live", OperationAccessToken, "https://api.safaricom.co.ke/oauth/v1/generate?grant_type=client_credentials"},
		{"live push", "live", OperationPushPayment, "https://api.safaricom.co.ke/mpesa/stkpush/v1/processrequest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewEndpointResolver(tt.mode, "").URLFor(tt.op)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEndpointResolver_LiveDiffersFromSandbox(t *testing.T) {
	sandbox := NewEndpointResolver("sandbox", "")
	live := NewEndpointResolver("live", "")

	for op := range operationPaths {
		s, err := sandbox.URLFor(op)
		require.NoError(t, err)
		l, err := live.URLFor(op)
		require.NoError(t, err)
		assert.NotEqual(t, s, l, "operation %s", op)
	}
}

func TestEndpointResolver_Override(t *testing.T) {
	r := NewEndpointResolver("live", "http://127.0.0.1:9999/")

	got, err := r.URLFor(OperationPushPayment)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9999/mpesa/stkpush/v1/processrequest", got)
	assert.Equal(t, "http://127.0.0.1:9999", r.BaseURL())
}

func TestEndpointResolver_UnknownOperation(t *testing.T) {
	_, err := NewEndpointResolver("sandbox", "").URLFor(Operation("b2c_payment"))
	require.Error(t, err)

	var opErr *pkgerrors.UnknownOperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "b2c_payment", opErr.Operation)
}
