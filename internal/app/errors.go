package service

import "github.com/cockroachdb/errors"

// ErrNotStarted is returned when a device is used before Start.
var ErrNotStarted = errors.New("device not started")
