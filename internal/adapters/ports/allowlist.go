package ports

import "context"

// AllowListSource loads the gateway's published outbound IP addresses.
// Entries are returned raw; the callback authenticator validates them.
type AllowListSource interface {
	Load(ctx context.Context) ([]string, error)
	Name() string
}
