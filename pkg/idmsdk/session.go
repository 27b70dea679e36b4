package idmsdk

import "sync"

// session holds the header-derived state of a client. It is only mutated
// by the transport (authPost/post) and the negotiator.
type session struct {
	mu sync.RWMutex

	// token is the bearer token issued by a successful negotiation.
	token string

	// authSessionID pins the steps of an in-progress negotiation to the
	// server-side state. It is meaningless outside a negotiation.
	authSessionID string
}

func (s *session) headers() (token, authSessionID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.authSessionID
}

func (s *session) setToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *session) setAuthSessionID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authSessionID = id
}

// Token returns the bearer token, or "" before a successful negotiation.
func (c *SDKClient) Token() string {
	token, _ := c.session.headers()
	return token
}

// SetToken installs a bearer token obtained elsewhere.
func (c *SDKClient) SetToken(token string) {
	c.session.setToken(token)
}

// AuthSessionID returns the auth session id held for the in-progress
// negotiation, or "" when none is in progress.
func (c *SDKClient) AuthSessionID() string {
	_, id := c.session.headers()
	return id
}
