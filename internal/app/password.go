package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// EnvPassword supplies the password when none is given on the command line.
const EnvPassword = "KANIDM_PASSWORD"

var ErrNoPassword = errors.New("no password supplied")

// PasswordSource resolves the password to check.
type PasswordSource struct {
	// Arg is the positional PASSWORD argument; HasArg reports it was given.
	Arg    string
	HasArg bool

	// Stdin is read when neither the argument nor the environment supply a
	// password. A terminal is read without echo.
	Stdin io.Reader

	// Prompt receives the prompt shown on a terminal.
	Prompt io.Writer
}

// Password returns the argument, else $KANIDM_PASSWORD (even if empty),
// else one line from Stdin.
func (p PasswordSource) Password() (string, error) {
	if p.HasArg {
		return p.Arg, nil
	}

	if pw, ok := os.LookupEnv(EnvPassword); ok {
		return pw, nil
	}

	if p.Stdin == nil {
		return "", ErrNoPassword
	}

	if f, ok := p.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return promptPassword(f, p.Prompt)
	}

	return readPasswordLine(p.Stdin)
}

func promptPassword(tty *os.File, prompt io.Writer) (string, error) {
	if prompt != nil {
		fmt.Fprint(prompt, "Password: ")
		defer fmt.Fprintln(prompt)
	}

	b, err := term.ReadPassword(int(tty.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// readPasswordLine reads up to the first newline or EOF. pam_exec with
// expose_authtok writes the token followed by a NUL and no newline.
func readPasswordLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if errors.Is(err, io.EOF) && line == "" {
		return "", ErrNoPassword
	}

	return strings.TrimRight(line, "\r\n\x00"), nil
}
