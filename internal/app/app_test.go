package app

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/aussiebroadwan/unixauth/internal/idmtest"
	"github.com/aussiebroadwan/unixauth/pkg/idmsdk"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, dir *idmtest.Server, out *bytes.Buffer, verbose bool) *Application {
	t.Helper()

	cfg := Config{URI: dir.URL, ConnectTimeout: 5 * time.Second, LogLevel: "warn", LogFormat: "text"}
	return New(cfg, NewLogger(cfg, verbose, out), dir.Client())
}

func TestVerify(t *testing.T) {
	dir := idmtest.New(t, idmtest.Config{
		Accounts: map[string]idmtest.Account{"alice": {UnixPassword: "s3cret"}},
	})

	var out bytes.Buffer
	application := newTestApp(t, dir, &out, false)

	ok, err := application.Verify(context.Background(), "alice", "s3cret")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = application.Verify(context.Background(), "alice", "wrong")
	require.NoError(t, err)
	require.False(t, ok)

	require.Empty(t, out.String())

	// Each check runs its own negotiation.
	require.Equal(t, 2, dir.StepCount("init2"))
}

func TestVerifyTransportFailure(t *testing.T) {
	dir := idmtest.New(t, idmtest.Config{
		Overrides: map[string]idmtest.Override{"init2": {Status: http.StatusInternalServerError}},
	})

	var out bytes.Buffer
	application := newTestApp(t, dir, &out, false)

	ok, err := application.Verify(context.Background(), "alice", "s3cret")
	require.False(t, ok)
	require.ErrorContains(t, err, "failed to authenticate")

	var terr *idmsdk.TransportError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, http.StatusInternalServerError, terr.StatusCode)
}

func TestVerifyVerboseLogs(t *testing.T) {
	dir := idmtest.New(t, idmtest.Config{
		Accounts: map[string]idmtest.Account{"alice": {UnixPassword: "s3cret"}},
	})

	var out bytes.Buffer
	application := newTestApp(t, dir, &out, true)

	_, err := application.Verify(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	logs := out.String()
	require.Contains(t, logs, "unix credential checked")
	require.Contains(t, logs, "user=alice")
	require.NotContains(t, logs, "s3cret")
}

func TestNewUsesConnectTimeout(t *testing.T) {
	application := New(Config{URI: "https://idm.example.com/", ConnectTimeout: 2 * time.Second}, NewLogger(Config{}, false, &bytes.Buffer{}), nil)

	require.Equal(t, 2*time.Second, application.client.HTTPClient.Timeout)
	require.Equal(t, "https://idm.example.com", application.client.BaseURL)
	require.Equal(t, "unixauth/"+BuildVersion, application.client.UserAgent)
}
