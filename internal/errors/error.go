package errors

import "github.com/pkg/errors"

var (
	// common errors
	ErrConfigMissing     = errors.New("configuration file missing")
	ErrConnectionTimeout = errors.New("connection timeout")

	// config errors
	ErrAccountInvalid   = errors.New("invalid account")
	ErrAccountDuplicate = errors.New("duplicate account name")

	// session errors
	ErrNotConnected   = errors.New("session is not connected")
	ErrIdleEnded      = errors.New("idle ended without an outcome")
	ErrIdleNotStarted = errors.New("idle was not started")

	// handler errors
	ErrCommandFailed = errors.New("command failed")

	// watcher errors
	ErrAccountNotFound = errors.New("account not found")
)
