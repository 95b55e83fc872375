package client

import "github.com/cockroachdb/errors"

// Sentinel kinds for client errors.
var (
	// ErrUnavailable marks transport failures: the server could not be
	// reached or did not answer in time.
	ErrUnavailable = errors.New("server unavailable")
	// ErrUnexpectedStatus marks a response the client cannot interpret.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)
