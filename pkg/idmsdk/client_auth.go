package idmsdk

import (
	"context"
	"time"

	"github.com/aussiebroadwan/unixauth/pkg/slogx"
)

const authPath = "/v1/auth"

// AnonymousIdentity is the identity used for anonymous negotiations.
const AnonymousIdentity = "anonymous"

// AuthAnonymous negotiates an anonymous session and stores the resulting
// bearer token on the client.
func (c *SDKClient) AuthAnonymous(ctx context.Context) error {
	return c.Authenticate(ctx, AnonymousIdentity, MechAnonymous, CredAnonymous{})
}

// AuthPassword negotiates a session for ident with the password mechanism.
func (c *SDKClient) AuthPassword(ctx context.Context, ident, password string) error {
	return c.Authenticate(ctx, ident, MechPassword, CredPassword(password))
}

// Authenticate runs a single-round negotiation:
//
//  1. init: the server must answer with Choose
//  2. mech must be in the offered set, otherwise nothing more is sent
//  3. begin: the server must answer with Continue
//  4. cred: the server must answer with Success, whose token is stored
//
// Any other answer fails with an error matching ErrAuthenticationFailed.
// Transport failures are returned as *TransportError. Nothing is retried.
func (c *SDKClient) Authenticate(ctx context.Context, ident string, mech Mechanism, cred Credential) error {
	log := slogx.FromContext(ctx).With("ident", ident, "mech", mech)

	// A previous negotiation's auth session id must not leak into this one.
	c.session.setAuthSessionID("")
	defer c.session.setAuthSessionID("")

	mechs, err := c.authStepInit(ctx, ident)
	if err != nil {
		log.Debug("auth init failed", "err", err)
		return err
	}
	log.Debug("auth mechanisms offered", "mechs", mechs)

	if !mechs.Contains(mech) {
		return &AuthError{Kind: MechanismUnavailable, Step: "init", Reason: mech.String() + " not offered"}
	}

	allowed, err := c.authStepBegin(ctx, mech)
	if err != nil {
		log.Debug("auth begin failed", "err", err)
		return err
	}
	log.Debug("auth challenges allowed", "allowed", allowed)

	token, err := c.authStepCred(ctx, cred)
	if err != nil {
		log.Debug("auth cred failed", "err", err)
		return err
	}

	c.session.setToken(token)

	if info, err := InspectToken(token); err == nil {
		log.Debug("auth succeeded", "subject", info.Subject, "expires_at", info.ExpiresAt.Format(time.RFC3339))
	} else {
		log.Debug("auth succeeded")
	}

	return nil
}

func (c *SDKClient) authStepInit(ctx context.Context, ident string) (MechanismSet, error) {
	req := AuthRequest{
		Step: StepInit2{
			Username:   ident,
			Issue:      IssueToken,
			Privileged: false,
		},
	}

	var resp AuthResponse
	if err := c.authPost(ctx, authPath, req, &resp); err != nil {
		return nil, err
	}

	switch state := resp.State.(type) {
	case StateChoose:
		return state.Mechanisms, nil
	default:
		return nil, unexpected("init", state)
	}
}

func (c *SDKClient) authStepBegin(ctx context.Context, mech Mechanism) ([]AllowedChallenge, error) {
	req := AuthRequest{Step: StepBegin{Mechanism: mech}}

	var resp AuthResponse
	if err := c.authPost(ctx, authPath, req, &resp); err != nil {
		return nil, err
	}

	switch state := resp.State.(type) {
	case StateContinue:
		return state.Allowed, nil
	default:
		return nil, unexpected("begin", state)
	}
}

func (c *SDKClient) authStepCred(ctx context.Context, cred Credential) (string, error) {
	req := AuthRequest{Step: StepCred{Credential: cred}}

	var resp AuthResponse
	if err := c.authPost(ctx, authPath, req, &resp); err != nil {
		return "", err
	}

	switch state := resp.State.(type) {
	case StateSuccess:
		return state.Token, nil
	default:
		return "", unexpected("cred", state)
	}
}
