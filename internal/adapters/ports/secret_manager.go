package ports

import (
	"context"
)

// Secret represents a retrieved secret with metadata
type Secret struct {
	Value   string            // The secret value (consumer secret, STK passkey)
	Version string            // Secret version identifier
	Tags    map[string]string // Additional secret metadata
}

// SecretManagerAdapter resolves gateway credentials from a secret store.
// Path format depends on implementation:
//   - AWS: "mpesa-service/consumer-secret" or a full ARN
//   - Vault: "mpesa-service" under the KV mount, with an optional "#field" suffix
//   - Local: a file path relative to the configured base directory
type SecretManagerAdapter interface {
	GetSecret(ctx context.Context, path string) (*Secret, error)
}
