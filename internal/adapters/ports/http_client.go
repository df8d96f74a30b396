package ports

import "net/http"

// HTTPClient is the subset of *http.Client the gateway transport needs.
// Tests substitute test/mocks.MockHTTPClient.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
