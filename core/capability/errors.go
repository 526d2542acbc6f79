package capability

import "errors"

// Declared provider failures. Each is distinct from transient I/O errors
// and is matched with errors.Is.
var (
	// ErrNotAvailableInMode is returned by operations the active
	// deployment mode does not offer.
	ErrNotAvailableInMode = errors.New("not available in this mode")

	// ErrQuotaExceeded is returned when an upload would exceed the
	// owner's storage quota.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrForbidden is returned when the caller may not act on a resource.
	ErrForbidden = errors.New("forbidden")

	// ErrProviderUnavailable is returned when no variant of a capability
	// could be initialized, or a provider cannot be resolved.
	ErrProviderUnavailable = errors.New("provider unavailable")
)
