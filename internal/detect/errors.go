package detect

import "errors"

var (
	// ErrUnreachable indicates the detection endpoint could not be reached.
	ErrUnreachable = errors.New("detection endpoint unreachable")
	// ErrUnauthorized indicates the endpoint rejected the request (401),
	// which means the endpoint's API key is misconfigured.
	ErrUnauthorized = errors.New("detection endpoint rejected credentials")
	// ErrTimeout indicates the detection call exceeded its bounded wait.
	ErrTimeout = errors.New("detection timed out")
)
