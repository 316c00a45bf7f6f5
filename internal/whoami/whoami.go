// Package whoami resolves the "applied_by"/"username"+"hostname" identity
// recorded in bookkeeping rows (§4.3), matching the user@host format the
// teacher's CLI used for audit fields.
package whoami

import (
	"fmt"
	"os"
	"os/user"
)

// Current returns "user@host" for the process invoking yoyo, falling back to
// "unknown@host" when the OS user cannot be resolved (e.g. inside a minimal
// container without /etc/passwd).
func Current() string {
	return fmt.Sprintf("%s@%s", Username(), Hostname())
}

// Username returns the OS username, or "unknown" if it cannot be resolved.
func Username() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}

// Hostname returns the machine hostname, or "unknown" if it cannot be read.
func Hostname() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}
