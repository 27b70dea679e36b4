package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aussiebroadwan/unixauth/internal/app"
	"github.com/aussiebroadwan/unixauth/internal/idmtest"
	"github.com/stretchr/testify/require"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func setup(t *testing.T, cfg idmtest.Config) (*idmtest.Server, string) {
	t.Helper()

	for _, key := range []string{"KANIDM_URL", "KANIDM_CONNECT_TIMEOUT", "ENV", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(key, "")
	}
	t.Setenv(app.EnvPassword, "")
	require.NoError(t, os.Unsetenv(app.EnvPassword))

	dir := idmtest.New(t, cfg)

	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("uri = \""+dir.URL+"\"\n"), 0o600))
	return dir, path
}

func run(t *testing.T, dir *idmtest.Server, stdin string, args ...string) result {
	t.Helper()

	var stdout, stderr bytes.Buffer
	s := streams{in: strings.NewReader(stdin), out: &stdout, err: &stderr}
	if dir != nil {
		s.httpClient = dir.Client()
	}

	code := execute(context.Background(), s, args)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

var directory = idmtest.Config{
	Accounts: map[string]idmtest.Account{"alice": {UnixPassword: "s3cret"}},
}

func TestValidPassword(t *testing.T) {
	dir, cfg := setup(t, directory)

	res := run(t, dir, "", "--config", cfg, "alice", "s3cret")
	require.Equal(t, 0, res.code)
	require.Empty(t, res.stdout)
	require.Empty(t, res.stderr)
}

func TestInvalidPassword(t *testing.T) {
	dir, cfg := setup(t, directory)

	res := run(t, dir, "", "-c", cfg, "alice", "nope")
	require.Equal(t, 1, res.code)
	require.Empty(t, res.stderr)

	res = run(t, dir, "", "-c", cfg, "bob", "s3cret")
	require.Equal(t, 1, res.code)
}

func TestPasswordFromStdin(t *testing.T) {
	dir, cfg := setup(t, directory)

	res := run(t, dir, "s3cret\x00", "-c", cfg, "alice")
	require.Equal(t, 0, res.code)

	res = run(t, dir, "wrong\n", "-c", cfg, "alice")
	require.Equal(t, 1, res.code)
}

func TestPasswordFromEnv(t *testing.T) {
	dir, cfg := setup(t, directory)
	t.Setenv(app.EnvPassword, "s3cret")

	res := run(t, dir, "wrong\n", "-c", cfg, "alice")
	require.Equal(t, 0, res.code)
}

func TestServerErrorFails(t *testing.T) {
	dir, cfg := setup(t, idmtest.Config{
		Accounts:  directory.Accounts,
		Overrides: map[string]idmtest.Override{"unix": {Status: http.StatusInternalServerError}},
	})

	res := run(t, dir, "", "-c", cfg, "alice", "s3cret")
	require.Equal(t, 1, res.code)
	require.Contains(t, res.stderr, "failed to get token")
	require.Contains(t, res.stderr, "HTTP 500")
}

func TestDeniedNegotiationFails(t *testing.T) {
	dir, cfg := setup(t, idmtest.Config{
		Accounts: map[string]idmtest.Account{"anonymous": {Mechanisms: nil}, "alice": {UnixPassword: "s3cret"}},
	})

	res := run(t, dir, "", "-c", cfg, "alice", "s3cret")
	require.Equal(t, 1, res.code)
	require.Contains(t, res.stderr, "failed to authenticate")
	require.Zero(t, dir.StepCount(""))
}

func TestMissingConfig(t *testing.T) {
	setup(t, directory)

	res := run(t, nil, "", "-c", filepath.Join(t.TempDir(), "missing"), "alice", "s3cret")
	require.Equal(t, 1, res.code)
	require.Contains(t, res.stderr, "failed to find config file")
}

func TestUsageErrors(t *testing.T) {
	setup(t, directory)

	res := run(t, nil, "")
	require.Equal(t, 1, res.code)
	require.Contains(t, res.stderr, "unixauth:")

	res = run(t, nil, "", "alice", "pw", "extra")
	require.Equal(t, 1, res.code)
}

func TestVerboseLogsToStderr(t *testing.T) {
	dir, cfg := setup(t, directory)

	res := run(t, dir, "", "-v", "-c", cfg, "alice", "s3cret")
	require.Equal(t, 0, res.code)
	require.Empty(t, res.stdout)
	require.Contains(t, res.stderr, "using config file")
	require.Contains(t, res.stderr, "unix credential checked")
	require.NotContains(t, res.stderr, "s3cret")
}

func TestVersion(t *testing.T) {
	res := run(t, nil, "", "--version")
	require.Equal(t, 0, res.code)
	require.Contains(t, res.stdout, app.BuildVersion)
}
