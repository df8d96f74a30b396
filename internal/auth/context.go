package auth

import (
	"context"
)

// Context keys for request authentication data
type contextKey string

const (
	AuthTypeKey  contextKey = "auth_type"
	RequestIDKey contextKey = "request_id"
	ClientIPKey  contextKey = "client_ip"
)

// AuthType represents how a request was authenticated
type AuthType string

const (
	// AuthTypeGatewayCallback marks requests whose source IP matched the gateway allow-list
	AuthTypeGatewayCallback AuthType = "gateway_callback"
	AuthTypeNone            AuthType = "none"
)

// AuthInfo contains authentication information from the context
type AuthInfo struct {
	Type      AuthType
	RequestID string
	ClientIP  string
}

// GetAuthInfo extracts authentication information from the context
func GetAuthInfo(ctx context.Context) *AuthInfo {
	info := &AuthInfo{
		Type:      AuthTypeNone,
		RequestID: GetRequestID(ctx),
		ClientIP:  GetClientIP(ctx),
	}

	if authType, ok := ctx.Value(AuthTypeKey).(string); ok {
		info.Type = AuthType(authType)
	}

	return info
}

// WithGatewayCallback marks the context as an authenticated gateway callback from clientIP
func WithGatewayCallback(ctx context.Context, clientIP string) context.Context {
	ctx = context.WithValue(ctx, AuthTypeKey, string(AuthTypeGatewayCallback))
	return context.WithValue(ctx, ClientIPKey, clientIP)
}

// IsGatewayCallback checks if the request passed callback source verification
func IsGatewayCallback(ctx context.Context) bool {
	authType, ok := ctx.Value(AuthTypeKey).(string)
	return ok && authType == string(AuthTypeGatewayCallback)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID safely extracts the request ID from the context
func GetRequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(RequestIDKey).(string)
	return requestID
}

// GetClientIP safely extracts the client IP from the context
func GetClientIP(ctx context.Context) string {
	clientIP, _ := ctx.Value(ClientIPKey).(string)
	return clientIP
}
