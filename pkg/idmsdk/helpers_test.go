package idmsdk_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aussiebroadwan/unixauth/pkg/idmsdk"
)

// reply is one scripted answer of a scriptServer.
type reply struct {
	status    int    // 0 means 200
	body      string // raw JSON
	sessionID string // X-KANIDM-AUTH-SESSION-ID to return, if any
}

type seenRequest struct {
	path          string
	rawPath       string
	authorization string
	authSessionID string
	hasSessionID  bool
	body          string
}

// scriptServer answers requests with replies in order and records what it
// receives. Running out of replies fails the test.
type scriptServer struct {
	*httptest.Server

	mu      sync.Mutex
	replies []reply
	seen    []seenRequest
}

func newScriptServer(t *testing.T, replies ...reply) *scriptServer {
	t.Helper()

	s := &scriptServer{replies: replies}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, has := r.Header[http.CanonicalHeaderKey(idmsdk.HeaderAuthSessionID)]

		s.mu.Lock()
		s.seen = append(s.seen, seenRequest{
			path:          r.URL.Path,
			rawPath:       r.URL.EscapedPath(),
			authorization: r.Header.Get("Authorization"),
			authSessionID: r.Header.Get(idmsdk.HeaderAuthSessionID),
			hasSessionID:  has,
			body:          string(body),
		})
		if len(s.replies) == 0 {
			s.mu.Unlock()
			t.Errorf("unexpected request to %s", r.URL.Path)
			w.WriteHeader(http.StatusTeapot)
			return
		}
		next := s.replies[0]
		s.replies = s.replies[1:]
		s.mu.Unlock()

		if next.sessionID != "" {
			w.Header().Set(idmsdk.HeaderAuthSessionID, next.sessionID)
		}
		w.Header().Set("Content-Type", "application/json")
		if next.status != 0 {
			w.WriteHeader(next.status)
		}
		_, _ = io.WriteString(w, next.body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *scriptServer) requests() []seenRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]seenRequest(nil), s.seen...)
}

func (s *scriptServer) client() *idmsdk.SDKClient {
	c := idmsdk.NewSDKClient(s.URL + "/")
	c.HTTPClient = s.Client()
	return c
}
