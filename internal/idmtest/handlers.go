package idmtest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aussiebroadwan/unixauth/pkg/httpx"
	"github.com/aussiebroadwan/unixauth/pkg/idmsdk"
	"github.com/aussiebroadwan/unixauth/pkg/slogx"
)

const (
	overrideUnix = "unix"

	reasonUnknownAccount = "account not found"
	reasonMechanism      = "mechanism not offered"
	reasonCredential     = "invalid credential"
)

var challengesFor = map[idmsdk.Mechanism][]idmsdk.AllowedChallenge{
	idmsdk.MechAnonymous:          {idmsdk.AllowAnonymous},
	idmsdk.MechPassword:           {idmsdk.AllowPassword},
	idmsdk.MechPasswordBackupCode: {idmsdk.AllowPassword, idmsdk.AllowBackupCode},
	idmsdk.MechPasswordTOTP:       {idmsdk.AllowPassword, idmsdk.AllowTOTP},
}

// decodeStep splits {"step": {"<kind>": <payload>}}. A bare string step is
// not part of the protocol.
func decodeStep(body []byte) (string, json.RawMessage, error) {
	var req struct {
		Step map[string]json.RawMessage `json:"step"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return "", nil, err
	}
	if len(req.Step) != 1 {
		return "", nil, fmt.Errorf("step must have exactly one variant, got %d", len(req.Step))
	}
	for kind, payload := range req.Step {
		return kind, payload, nil
	}
	return "", nil, errors.New("unreachable")
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	step, payload, err := decodeStep(body)
	if err != nil {
		log.Debug("bad auth step", "err", err)
		http.Error(w, "bad step", http.StatusBadRequest)
		return
	}

	if o, ok := s.cfg.Overrides[step]; ok {
		s.writeOverride(w, r, o)
		return
	}

	switch step {
	case "init2":
		s.stepInit(w, payload)
	case "begin":
		s.stepBegin(w, r, payload)
	case "cred":
		s.stepCred(w, r, payload)
	default:
		http.Error(w, "unknown step", http.StatusBadRequest)
	}
}

func (s *Server) stepInit(w http.ResponseWriter, payload json.RawMessage) {
	var req struct {
		Username string `json:"username"`
		Issue    string `json:"issue"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.Username == "" {
		http.Error(w, "bad init", http.StatusBadRequest)
		return
	}

	acct, ok := s.cfg.Accounts[req.Username]
	if !ok {
		writeState(w, idmsdk.StateDenied{Reason: reasonUnknownAccount})
		return
	}

	id := newSessionID()
	s.mu.Lock()
	s.sessions[id] = &authSession{ident: req.Username}
	s.mu.Unlock()

	w.Header().Set(idmsdk.HeaderAuthSessionID, id)
	writeState(w, idmsdk.StateChoose{Mechanisms: idmsdk.NewMechanismSet(acct.Mechanisms...)})
}

func (s *Server) stepBegin(w http.ResponseWriter, r *http.Request, payload json.RawMessage) {
	id, sess, ok := s.lookupSession(r)
	if !ok {
		http.Error(w, "no auth session", http.StatusUnauthorized)
		return
	}

	var mech idmsdk.Mechanism
	if err := json.Unmarshal(payload, &mech); err != nil {
		http.Error(w, "bad begin", http.StatusBadRequest)
		return
	}

	acct := s.cfg.Accounts[sess.ident]
	allowed, supported := challengesFor[mech]
	if !idmsdk.NewMechanismSet(acct.Mechanisms...).Contains(mech) || !supported {
		s.endSession(id)
		writeState(w, idmsdk.StateDenied{Reason: reasonMechanism})
		return
	}

	s.mu.Lock()
	sess.mech = &mech
	s.mu.Unlock()

	s.setSessionHeader(w, id, sess)
	writeState(w, idmsdk.StateContinue{Allowed: allowed})
}

func (s *Server) stepCred(w http.ResponseWriter, r *http.Request, payload json.RawMessage) {
	id, sess, ok := s.lookupSession(r)
	if !ok || sess.mech == nil {
		http.Error(w, "no auth session", http.StatusUnauthorized)
		return
	}
	s.endSession(id)

	acct := s.cfg.Accounts[sess.ident]
	if !credentialMatches(*sess.mech, acct, payload) {
		writeState(w, idmsdk.StateDenied{Reason: reasonCredential})
		return
	}

	token, err := s.IssueToken(sess.ident, id)
	if err != nil {
		http.Error(w, "issue token", http.StatusInternalServerError)
		return
	}
	writeState(w, idmsdk.StateSuccess{Token: token})
}

func credentialMatches(mech idmsdk.Mechanism, acct Account, payload json.RawMessage) bool {
	switch mech {
	case idmsdk.MechAnonymous:
		var marker string
		return json.Unmarshal(payload, &marker) == nil && marker == "anonymous"
	case idmsdk.MechPassword:
		var cred struct {
			Password *string `json:"password"`
		}
		if err := json.Unmarshal(payload, &cred); err != nil || cred.Password == nil {
			return false
		}
		return acct.Password != "" && *cred.Password == acct.Password
	default:
		return false
	}
}

func (s *Server) handleUnixAuth(w http.ResponseWriter, r *http.Request) {
	if o, ok := s.cfg.Overrides[overrideUnix]; ok {
		s.writeOverride(w, r, o)
		return
	}

	var req idmsdk.SingleStringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	name := r.PathValue("id")
	acct, ok := s.cfg.Accounts[name]
	if !ok || acct.UnixPassword == "" {
		httpx.WriteJSON(w, http.StatusOK, nil)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, idmsdk.UnixUserToken{
		Name:  name,
		SPN:   name + "@idmtest",
		Shell: "/bin/sh",
		Valid: req.Value == acct.UnixPassword,
	})
}

func (s *Server) lookupSession(r *http.Request) (string, *authSession, bool) {
	id := r.Header.Get(idmsdk.HeaderAuthSessionID)
	if id == "" {
		return "", nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return id, sess, ok
}

func (s *Server) endSession(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// setSessionHeader repeats the current id, or moves the session to a new
// one when rotation is on.
func (s *Server) setSessionHeader(w http.ResponseWriter, id string, sess *authSession) {
	if s.cfg.RotateSessionIDs {
		next := newSessionID()
		s.mu.Lock()
		delete(s.sessions, id)
		s.sessions[next] = sess
		s.mu.Unlock()
		id = next
	}
	w.Header().Set(idmsdk.HeaderAuthSessionID, id)
}

func (s *Server) writeOverride(w http.ResponseWriter, r *http.Request, o Override) {
	slogx.FromContext(r.Context()).Debug("override answer", "status", o.Status)

	switch {
	case o.Status != 0 && o.Status != http.StatusOK:
		w.WriteHeader(o.Status)
	case o.Body != "":
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, o.Body)
	default:
		writeState(w, o.State)
	}
}

func writeState(w http.ResponseWriter, state idmsdk.AuthState) {
	b, err := json.Marshal(idmsdk.AuthResponse{State: state})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
