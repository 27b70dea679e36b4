/*
Package idmsdk provides a client for the Kanidm identity management HTTP API,
covering the authentication negotiation and unix credential verification.

# Overview

A negotiation is a sequence of POSTs to /v1/auth. The server answers each
step with a state that dictates the next one:

	init  -> choose(mechanisms)
	begin -> continue(challenges)
	cred  -> success(token) | denied(reason)

Between steps the server pins the negotiation with the
X-KANIDM-AUTH-SESSION-ID header; the client echoes back whatever value it
was last given. Once a negotiation succeeds the bearer token is kept on the
client and sent with every later request.

	client := idmsdk.NewSDKClient("https://idm.example.com")

	// Establish an anonymous session
	if err := client.AuthAnonymous(ctx); err != nil {
		return err
	}

	// Check a user's unix password
	token, err := client.UnixCredVerify(ctx, "alice", password)
	if err != nil {
		return err
	}
	valid := token != nil && token.Valid

CheckUnixPassword does both in one call.

# Error Handling

Two kinds of failure are returned:

  - *TransportError: a non-200 status (StatusCode set), a connection failure,
    or an undecodable body
  - *AuthError: the server answered a step with a state that does not follow
    from it, did not offer the requested mechanism, or denied the
    negotiation; it matches ErrAuthenticationFailed

Example:

	err := client.AuthAnonymous(ctx)
	var terr *idmsdk.TransportError
	switch {
	case errors.Is(err, idmsdk.ErrAuthenticationFailed):
		// negotiation rejected
	case errors.As(err, &terr):
		// HTTP status terr.StatusCode
	}

A negative verification result is not an error: UnixCredVerify returns a
token with Valid == false.

# Thread Safety

An SDKClient holds the state of one negotiation. Running negotiations
concurrently on the same client is not supported; use one client each.
Independent clients share nothing.
*/
package idmsdk
