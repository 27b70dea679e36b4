package idmsdk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// ============================================================================
// Mechanisms
// ============================================================================

// Mechanism is an authentication mechanism the server may offer for an
// identity. Mechanisms are ordered; the order matches the server's own.
type Mechanism int

const (
	MechAnonymous Mechanism = iota
	MechPassword
	MechPasswordBackupCode
	MechPasswordTOTP // sent as "passwordmfa" on the wire
	MechPasswordSecurityKey
	MechPasskey
)

var mechanismNames = map[Mechanism]string{
	MechAnonymous:           "anonymous",
	MechPassword:            "password",
	MechPasswordBackupCode:  "passwordbackupcode",
	MechPasswordTOTP:        "passwordmfa",
	MechPasswordSecurityKey: "passwordsecuritykey",
	MechPasskey:             "passkey",
}

// String returns the wire name of the mechanism.
func (m Mechanism) String() string {
	if name, ok := mechanismNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mechanism(%d)", int(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m Mechanism) MarshalText() ([]byte, error) {
	name, ok := mechanismNames[m]
	if !ok {
		return nil, fmt.Errorf("unknown mechanism %d", int(m))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mechanism) UnmarshalText(b []byte) error {
	for mech, name := range mechanismNames {
		if name == string(b) {
			*m = mech
			return nil
		}
	}
	return fmt.Errorf("unknown mechanism %q", string(b))
}

// MechanismSet is a sorted set of mechanisms without duplicates.
type MechanismSet []Mechanism

// NewMechanismSet builds a set from the given mechanisms.
func NewMechanismSet(mechs ...Mechanism) MechanismSet {
	set := slices.Clone(mechs)
	slices.Sort(set)
	return slices.Compact(set)
}

// Contains reports whether m is a member of the set.
func (s MechanismSet) Contains(m Mechanism) bool {
	_, found := slices.BinarySearch(s, m)
	return found
}

// ============================================================================
// Challenges
// ============================================================================

// AllowedChallenge is a credential shape the server accepts within the
// chosen mechanism.
type AllowedChallenge int

const (
	AllowAnonymous AllowedChallenge = iota
	AllowBackupCode
	AllowPassword
	AllowTOTP
)

var challengeNames = map[AllowedChallenge]string{
	AllowAnonymous:  "anonymous",
	AllowBackupCode: "backupcode",
	AllowPassword:   "password",
	AllowTOTP:       "totp",
}

func (a AllowedChallenge) String() string {
	if name, ok := challengeNames[a]; ok {
		return name
	}
	return fmt.Sprintf("AllowedChallenge(%d)", int(a))
}

// MarshalText implements encoding.TextMarshaler.
func (a AllowedChallenge) MarshalText() ([]byte, error) {
	name, ok := challengeNames[a]
	if !ok {
		return nil, fmt.Errorf("unknown challenge %d", int(a))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AllowedChallenge) UnmarshalText(b []byte) error {
	for c, name := range challengeNames {
		if name == string(b) {
			*a = c
			return nil
		}
	}
	return fmt.Errorf("unknown challenge %q", string(b))
}

// ============================================================================
// Credentials
// ============================================================================

// Credential is a value submitted in response to a challenge.
// Implementations: CredAnonymous, CredPassword, CredTOTP.
type Credential interface {
	json.Marshaler
	isCredential()
}

// CredAnonymous is the anonymous marker credential.
type CredAnonymous struct{}

// CredPassword is a plaintext password credential.
type CredPassword string

// CredTOTP is a numeric time-based one-time code.
type CredTOTP uint32

func (CredAnonymous) isCredential() {}
func (CredPassword) isCredential()  {}
func (CredTOTP) isCredential()      {}

func (CredAnonymous) MarshalJSON() ([]byte, error) {
	return []byte(`"anonymous"`), nil
}

func (c CredPassword) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"password": string(c)})
}

func (c CredTOTP) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]uint32{"totp": uint32(c)})
}

// ============================================================================
// Request steps
// ============================================================================

// IssueSession selects the session artifact the server should issue.
// Only bearer tokens are supported.
type IssueSession string

const IssueToken IssueSession = "token"

// AuthStep is one step of a negotiation.
// Implementations: StepInit2, StepBegin, StepCred.
type AuthStep interface {
	json.Marshaler
	isAuthStep()
}

// StepInit2 starts a negotiation for an identity.
type StepInit2 struct {
	Username   string       `json:"username"`
	Issue      IssueSession `json:"issue"`
	Privileged bool         `json:"privileged"`
}

// StepBegin selects a mechanism from the offered set.
type StepBegin struct {
	Mechanism Mechanism
}

// StepCred submits a credential for the current challenge.
type StepCred struct {
	Credential Credential
}

func (StepInit2) isAuthStep() {}
func (StepBegin) isAuthStep() {}
func (StepCred) isAuthStep()  {}

func (s StepInit2) MarshalJSON() ([]byte, error) {
	type init2 StepInit2
	return json.Marshal(map[string]init2{"init2": init2(s)})
}

func (s StepBegin) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]Mechanism{"begin": s.Mechanism})
}

func (s StepCred) MarshalJSON() ([]byte, error) {
	if s.Credential == nil {
		return nil, fmt.Errorf("cred step without credential")
	}
	return json.Marshal(map[string]Credential{"cred": s.Credential})
}

// AuthRequest is the body posted to the negotiation endpoint.
type AuthRequest struct {
	Step AuthStep `json:"step"`
}

// SingleStringRequest carries a single string value.
type SingleStringRequest struct {
	Value string `json:"value"`
}

// ============================================================================
// Negotiation states
// ============================================================================

// AuthState is the state the server reports after each step.
// Implementations: StateChoose, StateContinue, StateDenied, StateSuccess.
type AuthState interface {
	isAuthState()
}

// StateChoose asks the client to pick a mechanism.
type StateChoose struct {
	Mechanisms MechanismSet
}

// StateContinue lists the challenges the server will accept next.
type StateContinue struct {
	Allowed []AllowedChallenge
}

// StateDenied terminates the negotiation with a reason.
type StateDenied struct {
	Reason string
}

// StateSuccess terminates the negotiation with a bearer token.
type StateSuccess struct {
	Token string
}

func (StateChoose) isAuthState()   {}
func (StateContinue) isAuthState() {}
func (StateDenied) isAuthState()   {}
func (StateSuccess) isAuthState()  {}

// AuthResponse is the body returned by the negotiation endpoint.
type AuthResponse struct {
	State AuthState
}

// UnmarshalJSON decodes {"state": {"<variant>": <payload>}}.
func (r *AuthResponse) UnmarshalJSON(b []byte) error {
	var outer struct {
		State map[string]json.RawMessage `json:"state"`
	}
	if err := json.Unmarshal(b, &outer); err != nil {
		return err
	}
	if len(outer.State) != 1 {
		return fmt.Errorf("auth state must have exactly one variant, got %d", len(outer.State))
	}

	for variant, payload := range outer.State {
		state, err := decodeState(variant, payload)
		if err != nil {
			return err
		}
		r.State = state
	}
	return nil
}

// MarshalJSON encodes the response in the same tagged form.
func (r AuthResponse) MarshalJSON() ([]byte, error) {
	var variant string
	var payload any

	switch s := r.State.(type) {
	case StateChoose:
		variant, payload = "choose", nonNil(s.Mechanisms)
	case StateContinue:
		variant, payload = "continue", nonNil(s.Allowed)
	case StateDenied:
		variant, payload = "denied", s.Reason
	case StateSuccess:
		variant, payload = "success", s.Token
	default:
		return nil, fmt.Errorf("unknown auth state %T", r.State)
	}

	return json.Marshal(map[string]map[string]any{
		"state": {variant: payload},
	})
}

func decodeState(variant string, payload json.RawMessage) (AuthState, error) {
	if bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		return nil, fmt.Errorf("auth state %q has null payload", variant)
	}

	switch variant {
	case "choose":
		var mechs []Mechanism
		if err := json.Unmarshal(payload, &mechs); err != nil {
			return nil, fmt.Errorf("decode choose: %w", err)
		}
		return StateChoose{Mechanisms: NewMechanismSet(mechs...)}, nil
	case "continue":
		var allowed []AllowedChallenge
		if err := json.Unmarshal(payload, &allowed); err != nil {
			return nil, fmt.Errorf("decode continue: %w", err)
		}
		return StateContinue{Allowed: allowed}, nil
	case "denied":
		var reason string
		if err := json.Unmarshal(payload, &reason); err != nil {
			return nil, fmt.Errorf("decode denied: %w", err)
		}
		return StateDenied{Reason: reason}, nil
	case "success":
		var token string
		if err := json.Unmarshal(payload, &token); err != nil {
			return nil, fmt.Errorf("decode success: %w", err)
		}
		return StateSuccess{Token: token}, nil
	default:
		return nil, fmt.Errorf("unknown auth state %q", variant)
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// ============================================================================
// Unix credential verification
// ============================================================================

// UnixUserToken is the directory's answer to a unix credential check.
// Only Valid is used for the pass/fail decision; it is false when absent.
type UnixUserToken struct {
	Name        string `json:"name,omitempty"`
	SPN         string `json:"spn,omitempty"`
	DisplayName string `json:"displayname,omitempty"`
	GIDNumber   uint32 `json:"gidnumber,omitempty"`
	UUID        string `json:"uuid,omitempty"`
	Shell       string `json:"shell,omitempty"`
	Valid       bool   `json:"valid"`
}
