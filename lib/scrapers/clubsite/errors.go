package clubsite

import (
	"errors"
	"fmt"
)

// ErrAuthenticationFailed means the login form was submitted but the
// authenticated page state never appeared. Fatal to a run.
var ErrAuthenticationFailed = errors.New("failed to authenticate against the site")

// ErrSessionExpired means a fetched page is missing the authenticated
// marker. The caller should re-login once and retry the page.
var ErrSessionExpired = errors.New("session expired")

// FetchError is a per-page navigation or timeout failure that may
// resolve on retry.
type FetchError struct {
	Url string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Url, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError means a page did not contain an element the parser
// requires. It signals either a layout change or a restricted page and
// is logged and skipped, never fatal.
type ParseError struct {
	Url     string
	Missing string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: missing %s", e.Url, e.Missing)
}
