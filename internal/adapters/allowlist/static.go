package allowlist

import "context"

// DefaultGatewayIPs is the gateway's published callback source list at the time of writing.
// Operators should override it with CALLBACK_ALLOWLIST_FILE or the database table when it changes.
var DefaultGatewayIPs = []string{
	"196.201.214.200",
	"196.201.214.206",
	"196.201.213.114",
	"196.201.214.207",
	"196.201.214.208",
	"196.201.213.44",
	"196.201.212.127",
	"196.201.212.138",
	"196.201.212.129",
	"196.201.212.136",
	"196.201.212.74",
	"196.201.212.69",
}

// StaticSource serves a fixed list, typically from configuration
type StaticSource struct {
	entries []string
}

// NewStaticSource copies entries so later changes by the caller do not leak in
func NewStaticSource(entries []string) *StaticSource {
	return &StaticSource{entries: append([]string(nil), entries...)}
}

func (s *StaticSource) Load(ctx context.Context) ([]string, error) {
	return append([]string(nil), s.entries...), nil
}

func (s *StaticSource) Name() string { return "static" }
