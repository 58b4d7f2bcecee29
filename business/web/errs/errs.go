// Package errs provides the error types the web handlers use to control
// what a client is allowed to see. Anything not wrapped as trusted is
// reported to the client as a plain 500.
package errs

import "errors"

// Response is the payload returned to the client for any failed request.
type Response struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Trusted carries an error whose message is safe to show to the client,
// together with the HTTP status the handler chose for it.
type Trusted struct {
	Err    error
	Status int
}

// NewTrusted wraps the error with a status code. Handlers use this for the
// failures they expect and want surfaced as-is.
func NewTrusted(err error, status int) error {
	return &Trusted{
		Err:    err,
		Status: status,
	}
}

// Error implements the error interface using the wrapped error's message,
// which is also what lands in the service logs.
func (t *Trusted) Error() string {
	return t.Err.Error()
}

// IsTrusted reports whether a trusted error exists anywhere in the chain.
func IsTrusted(err error) bool {
	var t *Trusted
	return errors.As(err, &t)
}

// GetTrusted pulls the trusted error out of the chain, or nil when there
// is none.
func GetTrusted(err error) *Trusted {
	var t *Trusted
	if !errors.As(err, &t) {
		return nil
	}

	return t
}
