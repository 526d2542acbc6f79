// Package quota provides pure functions for storage quota enforcement.
// All functions are deterministic with no side effects.
package quota

// Unlimited marks a limit with no upper bound.
const Unlimited int64 = -1

// Config holds storage limits for one owner context (value type).
type Config struct {
	StorageBytes   int64       // Unlimited = no cap
	MaxUploadBytes int64       // 0 = no per-upload cap
	EnforceMode    EnforceMode // How to handle quota exceeded
	GracePct       float64     // Grace before a hard block (0.05 = 5%)
}

// EnforceMode determines how quota limits are enforced.
type EnforceMode string

const (
	EnforceHard EnforceMode = "hard" // Reject uploads over quota
	EnforceWarn EnforceMode = "warn" // Allow but report the warning level
)

// WarningLevel indicates how close to or over quota the owner is.
type WarningLevel int

const (
	WarningNone        WarningLevel = iota // < 80%
	WarningApproaching                     // >= 80%
	WarningCritical                        // >= 95%
	WarningExceeded                        // > 100%
)

// Usage is the storage position of one owner context.
type Usage struct {
	Used         int64        `json:"used"`
	Limit        int64        `json:"limit"`
	Unbounded    bool         `json:"unbounded"`
	WithinLimits bool         `json:"within_limits"`
	PercentUsed  float64      `json:"percent_used"`
	WarningLevel WarningLevel `json:"warning_level"`
}

// UsageOf reports the position for used bytes under cfg.
func UsageOf(used int64, cfg Config) Usage {
	if cfg.StorageBytes < 0 {
		return Usage{Used: used, Limit: Unlimited, Unbounded: true, WithinLimits: true}
	}
	u := Usage{Used: used, Limit: cfg.StorageBytes, WithinLimits: used <= cfg.StorageBytes}
	if cfg.StorageBytes > 0 {
		u.PercentUsed = float64(used) / float64(cfg.StorageBytes) * 100
	} else if used > 0 {
		u.PercentUsed = 100
		u.WithinLimits = false
	}
	u.WarningLevel = levelFor(u.PercentUsed, u.WithinLimits)
	return u
}

// CheckResult is the outcome of checking an upload against the quota.
type CheckResult struct {
	Allowed bool
	Usage   Usage
	Reason  string
}

// Reasons reported in CheckResult.
const (
	ReasonQuotaExceeded = "quota_exceeded"
	ReasonFileTooLarge  = "file_too_large"
)

// Check decides whether an upload of size bytes fits.
// This is a PURE function.
func Check(used int64, cfg Config, size int64) CheckResult {
	if cfg.MaxUploadBytes > 0 && size > cfg.MaxUploadBytes {
		return CheckResult{Usage: UsageOf(used, cfg), Reason: ReasonFileTooLarge}
	}

	after := UsageOf(used+size, cfg)
	result := CheckResult{Allowed: true, Usage: after}
	if after.Unbounded {
		return result
	}

	switch cfg.EnforceMode {
	case EnforceWarn:
	default:
		graced := int64(float64(cfg.StorageBytes) * (1 + cfg.GracePct))
		if used+size > graced {
			result.Allowed = false
			result.Reason = ReasonQuotaExceeded
		}
	}
	return result
}

func levelFor(pct float64, within bool) WarningLevel {
	switch {
	case !within || pct > 100:
		return WarningExceeded
	case pct >= 95:
		return WarningCritical
	case pct >= 80:
		return WarningApproaching
	default:
		return WarningNone
	}
}

// String returns the string representation of a warning level.
func (w WarningLevel) String() string {
	switch w {
	case WarningNone:
		return "none"
	case WarningApproaching:
		return "approaching"
	case WarningCritical:
		return "critical"
	case WarningExceeded:
		return "exceeded"
	default:
		return "unknown"
	}
}

// MarshalText encodes the level by name.
func (w WarningLevel) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}
