package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Fatal remote errors: abort the run immediately
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")

	// Transient remote errors: retried with backoff, then the affected
	// track/playlist degrades to pending instead of failing the run
	ErrRateLimited       = fmt.Errorf("rate limited by remote service")
	ErrRemoteUnavailable = fmt.Errorf("remote service unavailable")
	ErrTimeout           = fmt.Errorf("operation timed out")

	// Data integrity errors: reported per row, the row is treated as absent
	ErrMalformedRow = fmt.Errorf("malformed match table row")

	// Lookup errors
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")
	ErrTrackNotFound    = fmt.Errorf("track not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
