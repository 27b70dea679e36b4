// Package idmtest runs an in-process fake Kanidm directory for tests. It
// implements the negotiation endpoint and unix credential verification,
// issues EdDSA-signed bearer tokens and records every request it receives.
package idmtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/unixauth/pkg/httpx"
	"github.com/aussiebroadwan/unixauth/pkg/idmsdk"
	"github.com/aussiebroadwan/unixauth/pkg/idx"
	"github.com/aussiebroadwan/unixauth/pkg/jwtx"
	"github.com/aussiebroadwan/unixauth/pkg/slogx"
)

const issuer = "idmtest"

// Account is a directory entry.
type Account struct {
	// Mechanisms offered when a negotiation starts for this account.
	Mechanisms []idmsdk.Mechanism

	// Password is the primary credential accepted by the password mechanism.
	Password string

	// UnixPassword is the credential checked by unix verification. Accounts
	// without one answer verification with null.
	UnixPassword string
}

// Config controls the fake directory.
type Config struct {
	// Accounts by name. The "anonymous" account is added when missing.
	Accounts map[string]Account

	// RotateSessionIDs issues a fresh auth session id on every negotiation
	// response instead of only on init.
	RotateSessionIDs bool

	// AuthLimit rate limits /v1/auth per client IP. Zero means httpx.AuthLimit.
	AuthLimit httpx.RateLimitConfig

	// TokenTTL is the lifetime of issued bearer tokens. Zero means one hour.
	TokenTTL time.Duration

	// Logger receives request logs. Nil discards them.
	Logger *slog.Logger

	// Overrides replace the normal answer to a negotiation step ("init2",
	// "begin", "cred") or to unix verification ("unix").
	Overrides map[string]Override
}

// Override is a canned answer. A non-zero Status other than 200 is sent with
// an empty body. Otherwise Body is sent verbatim when set, and State when not.
type Override struct {
	Status int
	Body   string
	State  idmsdk.AuthState
}

// Request is a recorded request.
type Request struct {
	Path          string
	Step          string // init2, begin or cred for /v1/auth; "" otherwise
	Authorization string
	AuthSessionID string
	Body          json.RawMessage
}

// Server is a running fake directory.
type Server struct {
	URL string

	cfg      Config
	signer   *jwtx.EdDSASigner
	verifier *jwtx.EdDSAVerifier
	http     *httptest.Server

	mu       sync.Mutex
	requests []Request
	sessions map[string]*authSession
}

type authSession struct {
	ident string
	mech  *idmsdk.Mechanism
}

// New starts a fake directory and stops it when the test ends.
func New(t testing.TB, cfg Config) *Server {
	t.Helper()

	s, err := Start(cfg)
	if err != nil {
		t.Fatalf("idmtest: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// Start starts a fake directory. Call Close when done.
func Start(cfg Config) (*Server, error) {
	cfg.Accounts = maps.Clone(cfg.Accounts)
	if cfg.Accounts == nil {
		cfg.Accounts = make(map[string]Account)
	}
	if _, ok := cfg.Accounts[idmsdk.AnonymousIdentity]; !ok {
		cfg.Accounts[idmsdk.AnonymousIdentity] = Account{
			Mechanisms: []idmsdk.Mechanism{idmsdk.MechAnonymous},
		}
	}
	if cfg.AuthLimit == (httpx.RateLimitConfig{}) {
		cfg.AuthLimit = httpx.AuthLimit
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = jwtx.DefaultSessionTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	signer, err := jwtx.NewEdDSASigner(newSessionID())
	if err != nil {
		return nil, fmt.Errorf("create token signer: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		signer:   signer,
		verifier: jwtx.NewVerifierEdDSA(signer, issuer),
		sessions: make(map[string]*authSession),
	}

	mux := http.NewServeMux()
	mux.Handle("POST /v1/auth", httpx.Chain(http.HandlerFunc(s.handleAuth),
		httpx.RateLimitByIP(cfg.AuthLimit),
	))
	mux.Handle("POST /v1/account/{id}/_unix/_auth", httpx.Chain(http.HandlerFunc(s.handleUnixAuth),
		httpx.BearerAuth(s.verifier.Subject),
	))

	s.http = httptest.NewServer(httpx.Chain(mux,
		slogx.HTTPMiddleware(cfg.Logger),
		s.record,
	))
	s.URL = s.http.URL
	return s, nil
}

// Close stops the server.
func (s *Server) Close() { s.http.Close() }

// Client returns an HTTP client suited to the server.
func (s *Server) Client() *http.Client { return s.http.Client() }

// Requests returns a copy of the recorded requests, oldest first.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// StepCount returns how many negotiation requests carried step.
func (s *Server) StepCount(step string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Step == step {
			n++
		}
	}
	return n
}

// record stores every request before it reaches the routes.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()

		rec := Request{
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			AuthSessionID: r.Header.Get(idmsdk.HeaderAuthSessionID),
			Body:          body,
		}
		if r.URL.Path == "/v1/auth" {
			if step, _, err := decodeStep(body); err == nil {
				rec.Step = step
			}
		}

		s.mu.Lock()
		s.requests = append(s.requests, rec)
		s.mu.Unlock()

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// IssueToken signs a bearer token for ident, as a successful negotiation
// would.
func (s *Server) IssueToken(ident, sessionID string) (string, error) {
	return s.signer.Sign(jwtx.NewSessionClaims(issuer, ident, sessionID, s.cfg.TokenTTL, time.Now()))
}

func newSessionID() string { return idx.New().String() }
