package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// AuthError means the portal rejected the credentials or the login form
// could not be driven. It is fatal for the run and never retried.
type AuthError struct {
	Url    string
	Title  string
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s (url=%s title=%q)", e.Reason, e.Url, e.Title)
}

// NavigationError means the portal could not be reached or loaded.
type NavigationError struct {
	Url string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %s", e.Url, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the navigation failed because it took too long.
func (e *NavigationError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// DNS reports whether the portal host could not be resolved.
func (e *NavigationError) DNS() bool {
	var dnsErr *net.DNSError
	if errors.As(e.Err, &dnsErr) {
		return true
	}
	return strings.Contains(e.Err.Error(), "ERR_NAME_NOT_RESOLVED")
}
