package idmsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/aussiebroadwan/unixauth/pkg/slogx"
)

// HeaderAuthSessionID carries the auth session id during a negotiation.
const HeaderAuthSessionID = "X-KANIDM-AUTH-SESSION-ID"

// maxDrain bounds how much of an unexpected response body is discarded so
// the connection can be reused.
const maxDrain = 64 << 10

// url builds a complete URL by appending the path to the base URL.
func (c *SDKClient) url(path string) string {
	return c.BaseURL + path
}

// authPost performs a negotiation POST. It sends the bearer token and the
// auth session id when held, and on a 200 stores the auth session id the
// server returned before decoding the body into out.
func (c *SDKClient) authPost(ctx context.Context, path string, body, out any) error {
	return c.doPost(ctx, path, body, out, true)
}

// post performs an authenticated POST outside a negotiation. The auth
// session id is neither sent nor captured.
func (c *SDKClient) post(ctx context.Context, path string, body, out any) error {
	return c.doPost(ctx, path, body, out, false)
}

func (c *SDKClient) doPost(ctx context.Context, path string, body, out any, negotiation bool) error {
	log := slogx.FromContext(ctx)

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	token, authSessionID := c.session.headers()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if negotiation && authSessionID != "" {
		req.Header.Set(HeaderAuthSessionID, authSessionID)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close()

	log.Debug("idm request", "path", path, "status", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
		return &TransportError{StatusCode: resp.StatusCode}
	}

	if negotiation {
		if values, ok := resp.Header[http.CanonicalHeaderKey(HeaderAuthSessionID)]; ok && len(values) > 0 {
			c.session.setAuthSessionID(values[0])
		}
	}

	return decodeJSON(resp, out)
}

// decodeJSON decodes a 200 response body into out.
func decodeJSON(resp *http.Response, out any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return &TransportError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return nil
}
