package idmsdk

import (
	"net/http"
	"strings"
	"time"
)

// Version is reported in the User-Agent header.
const Version = "0.1.0"

// DefaultTimeout bounds a single round trip when no HTTP client is supplied.
const DefaultTimeout = 10 * time.Second

// SDKClient is a client for the Kanidm HTTP API.
// It owns the session state (bearer token and auth session id) of a single
// negotiation at a time and must not be used for concurrent negotiations.
// Use one SDKClient per logical negotiation.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// UserAgent is sent on every request.
	UserAgent string

	session session
}

// NewSDKClient creates a new client for the server at baseURL.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		UserAgent: "unixauth/" + Version,
	}
}
