package remote

import "errors"

// Common remote store errors
var (
	// ErrNotFound indicates the requested document does not exist
	ErrNotFound = errors.New("document not found")

	// ErrRateLimited indicates the backend rejected the operation for
	// exceeding its throughput allowance. The write queue reacts with a
	// cooldown; no other error does that.
	ErrRateLimited = errors.New("remote store rate limited")

	// ErrUnavailable indicates any remote failure other than rate
	// limiting. Local state is never rolled back because of it.
	ErrUnavailable = errors.New("remote store unavailable")
)
