package timeutil

import "time"

// GatewayLayout is the YYYYMMDDHHMMSS layout the gateway uses for timestamps
const GatewayLayout = "20060102150405"

// Now returns the current time in UTC
// Always use this instead of time.Now() to ensure timezone consistency
func Now() time.Time {
	return time.Now().UTC()
}

// GatewayTimestamp formats t in UTC with GatewayLayout
func GatewayTimestamp(t time.Time) string {
	return t.UTC().Format(GatewayLayout)
}

// ParseGatewayTimestamp parses a GatewayLayout value and returns a UTC time
func ParseGatewayTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(GatewayLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
