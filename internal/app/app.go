// Package app wires the unixauth command: configuration, logging and the
// directory client.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/unixauth/pkg/idmsdk"
	"github.com/aussiebroadwan/unixauth/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	serviceName = "unixauth"
)

// Application checks unix passwords against one directory.
type Application struct {
	cfg    Config
	logger *slog.Logger
	client *idmsdk.SDKClient
}

// NewLogger builds the command's logger. verbose forces debug level.
func NewLogger(cfg Config, verbose bool, out io.Writer) *slog.Logger {
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}

	return slogx.New(slogx.Config{
		Service: serviceName,
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   level,
		Format:  cfg.LogFormat,
		Output:  out,
	})
}

// New creates an Application. A nil httpClient gets one bounded by
// cfg.ConnectTimeout.
func New(cfg Config, logger *slog.Logger, httpClient *http.Client) *Application {
	client := idmsdk.NewSDKClient(cfg.URI)
	client.UserAgent = serviceName + "/" + BuildVersion
	if httpClient != nil {
		client.HTTPClient = httpClient
	} else {
		client.HTTPClient = &http.Client{Timeout: cfg.ConnectTimeout}
	}

	return &Application{cfg: cfg, logger: logger, client: client}
}

// Verify reports whether password is the unix password of username. A
// false result with a nil error is a rejection by the directory.
func (app *Application) Verify(ctx context.Context, username, password string) (bool, error) {
	log := app.logger.With("user", username, "uri", app.cfg.URI)
	ctx = slogx.WithContext(ctx, log)

	if err := app.client.AuthAnonymous(ctx); err != nil {
		return false, fmt.Errorf("failed to authenticate: %w", err)
	}

	token, err := app.client.UnixCredVerify(ctx, username, password)
	if err != nil {
		return false, fmt.Errorf("failed to get token: %w", err)
	}

	valid := token != nil && token.Valid
	log.Debug("unix credential checked", "valid", valid)
	return valid, nil
}
