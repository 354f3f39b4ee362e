package discovery

import "errors"

var (
	// ErrInvalidConfig is returned by Start for an unusable Config.
	ErrInvalidConfig = errors.New("discovery: invalid configuration")

	// ErrRegisterFailed wraps mDNS or SSDP registration failures.
	ErrRegisterFailed = errors.New("discovery: registration failed")
)
