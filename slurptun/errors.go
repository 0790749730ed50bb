package slurptun

import (
	"errors"
)

// ErrInvalidConfig is a generic error for configuration issues -- bad device identifier schemes,
// unparseable networks, that kind of thing. These are always fatal at startup, never at runtime.
var ErrInvalidConfig = errors.New("errInvalidConfig")

// ErrDevice is a generic error for issues opening or configuring the tun device itself.
var ErrDevice = errors.New("errDevice")

// ErrNetstack is a generic error for issues with the in-process network stack.
var ErrNetstack = errors.New("errNetstack")

// ErrClosed indicates an operation against an already torn down datagram channel or socket.
var ErrClosed = errors.New("errClosed")

// ErrExhausted indicates the synthetic address pool has no free addresses left.
var ErrExhausted = errors.New("errExhausted")
