package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aussiebroadwan/unixauth/internal/app"
	"github.com/spf13/cobra"
)

// errRejected ends a run where the directory said the password is wrong.
// Nothing is printed for it.
var errRejected = errors.New("credential rejected")

type options struct {
	configFile string
	verbose    bool
}

// streams are the process's standard files, replaced in tests.
type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer

	// httpClient overrides the client built from the config.
	httpClient *http.Client
}

func newRootCmd(s streams) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "unixauth [flags] USERNAME [PASSWORD]",
		Short: "Check a unix password against a Kanidm directory",
		Long: `unixauth asks a Kanidm server whether PASSWORD is the unix password of
USERNAME. It exits 0 when the server says it is and 1 otherwise, so it can
back pam_exec.

The password is taken from the PASSWORD argument, then $KANIDM_PASSWORD,
then standard input.

The server URI comes from the uri key of --config, or else of the last
readable file among /etc/kanidm/config and $HOME/.config/kanidm.
$KANIDM_URL overrides it.`,
		Version:       app.BuildVersion,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), s, opts, args)
		},
	}

	cmd.SetIn(s.in)
	cmd.SetOut(s.out)
	cmd.SetErr(s.err)

	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "config file (default: /etc/kanidm/config, $HOME/.config/kanidm)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log diagnostics to stderr")

	return cmd
}

func runCheck(ctx context.Context, s streams, opts options, args []string) error {
	logger := app.NewLogger(app.DefaultConfig(), opts.verbose, s.err)

	cfg, err := app.LoadConfig(app.LoadOptions{Path: opts.configFile}, logger)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	username := args[0]
	source := app.PasswordSource{Stdin: s.in, Prompt: s.err}
	if len(args) == 2 {
		source.Arg, source.HasArg = args[1], true
	}

	password, err := source.Password()
	if err != nil {
		return err
	}

	valid, err := app.New(cfg, logger, s.httpClient).Verify(ctx, username, password)
	if err != nil {
		return err
	}
	if !valid {
		return errRejected
	}
	return nil
}

// execute runs the command and returns the process exit code.
func execute(ctx context.Context, s streams, args []string) int {
	if args == nil {
		// cobra falls back to os.Args on nil
		args = []string{}
	}

	cmd := newRootCmd(s)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errRejected):
		return 1
	default:
		fmt.Fprintf(s.err, "unixauth: %v\n", err)
		return 1
	}
}
