package runner

import "errors"

var (
	ErrSensorUnavailable    = errors.New("sensor unavailable")
	ErrAuthorizationDenied  = errors.New("authorization denied")
	ErrSensorSessionFailure = errors.New("sensor session failed")
	ErrAlreadyRunning       = errors.New("session already running")
	ErrMachineStopped       = errors.New("state machine is not running")
)
