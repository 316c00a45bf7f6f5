package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// promptPassword reads a password from the controlling terminal without
// echoing it, for -p/--prompt-password (§6).
func promptPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	raw, err := term.ReadPassword(0)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// injectPassword sets password as the userinfo password component of a
// connection URL, preserving the existing username (if any).
func injectPassword(rawURL, password string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse --database: %w", err)
	}
	username := ""
	if u.User != nil {
		username = u.User.Username()
	}
	u.User = url.UserPassword(username, password)
	return u.String(), nil
}
