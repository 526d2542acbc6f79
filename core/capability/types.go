// Package capability selects and holds the provider behind each cross-cutting
// capability of the process.
//
// A capability is a contract (ContextProvider, BillingProvider, ...).
// A variant is one implementation of it (memory cache, redis cache, ...).
// Exactly one variant per capability is active, chosen once at start from
// the deployment mode and configuration, and never swapped afterwards.
package capability

import (
	"errors"
	"fmt"
	"strings"
)

// Type represents a capability type.
type Type string

// Capability types. The set is closed.
const (
	Unknown   Type = ""
	Context   Type = "context"   // Ownership and permissions
	Billing   Type = "billing"   // Subscriptions and checkout
	Analytics Type = "analytics" // Event tracking
	Media     Type = "media"     // Uploads and storage quota
	Cache     Type = "cache"     // Published content caching
	Video     Type = "video"     // Video hosting
)

// All returns every capability type in selection order.
func All() []Type {
	return []Type{Context, Billing, Analytics, Media, Cache, Video}
}

// String returns the string representation of the capability type.
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if t is a member of the closed set.
func (t Type) IsValid() bool {
	switch t {
	case Context, Billing, Analytics, Media, Cache, Video:
		return true
	default:
		return false
	}
}

// ParseType parses a string into a capability Type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if t == Unknown {
		return Unknown, errors.New("capability type cannot be empty")
	}
	if !t.IsValid() {
		return Unknown, fmt.Errorf("unknown capability type %q", s)
	}
	return t, nil
}

// Mode is the deployment profile.
type Mode string

const (
	ModeSelfHosted Mode = "self_hosted"
	ModeHosted     Mode = "hosted"
)

// ParseMode parses a deployment mode. Unknown values map to self-hosted,
// the permissive default; ok reports whether s was recognised.
func ParseMode(s string) (m Mode, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hosted", "cloud":
		return ModeHosted, true
	case "self_hosted", "self-hosted", "selfhosted", "oss", "":
		return ModeSelfHosted, true
	}
	return ModeSelfHosted, false
}

// ProviderInfo contains metadata about a registered provider instance.
type ProviderInfo struct {
	// Name is the unique instance name (e.g., "cache:redis").
	Name string

	// Variant is the implementation name (e.g., "redis", "self_hosted").
	Variant string

	// Capability is the type of capability this provider implements.
	Capability Type

	// Enabled indicates if this provider instance is active.
	Enabled bool

	// IsDefault indicates if this is the default provider for its capability.
	IsDefault bool

	// Fallback is set when this variant replaced a preferred one that
	// failed to initialize.
	Fallback bool

	// Description is a human-readable description.
	Description string
}

// Validate checks if the provider info is valid.
func (p ProviderInfo) Validate() error {
	var errs []string

	if p.Name == "" {
		errs = append(errs, "name is required")
	}
	if p.Variant == "" {
		errs = append(errs, "variant is required")
	}
	if !p.Capability.IsValid() {
		errs = append(errs, "capability type is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid provider info: %s", strings.Join(errs, ", "))
	}
	return nil
}
