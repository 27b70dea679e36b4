package idmsdk

import (
	"context"
	"net/url"
)

// UnixCredVerify asks the directory whether cred is the current unix
// credential of the account id. It requires a bearer token from a previous
// negotiation and does not touch the auth session id.
//
// A nil token with a nil error means the server answered null, which is
// treated as not valid.
func (c *SDKClient) UnixCredVerify(ctx context.Context, id, cred string) (*UnixUserToken, error) {
	if c.Token() == "" {
		return nil, ErrNotAuthenticated
	}

	req := SingleStringRequest{Value: cred}

	var token *UnixUserToken
	if err := c.post(ctx, "/v1/account/"+url.PathEscape(id)+"/_unix/_auth", req, &token); err != nil {
		return nil, err
	}

	return token, nil
}

// CheckUnixPassword negotiates an anonymous session and then verifies the
// unix credential of id. It reports true only when the directory says the
// credential is valid.
func (c *SDKClient) CheckUnixPassword(ctx context.Context, id, cred string) (bool, error) {
	if err := c.AuthAnonymous(ctx); err != nil {
		return false, err
	}

	token, err := c.UnixCredVerify(ctx, id, cred)
	if err != nil {
		return false, err
	}

	return token != nil && token.Valid, nil
}
