// Package quota provides pure functions for storage quota enforcement.
// Tests for all public functions and types.
package quota

import (
	"encoding/json"
	"testing"
)

const mb = 1024 * 1024

// -----------------------------------------------------------------------------
// UsageOf tests
// -----------------------------------------------------------------------------

func TestUsageOf_Unlimited(t *testing.T) {
	u := UsageOf(5*mb, Config{StorageBytes: Unlimited})

	if !u.Unbounded {
		t.Errorf("expected Unbounded=true")
	}
	if !u.WithinLimits {
		t.Errorf("expected WithinLimits=true for unlimited quota")
	}
	if u.Limit != Unlimited {
		t.Errorf("expected Limit=-1, got %d", u.Limit)
	}
	if u.WarningLevel != WarningNone {
		t.Errorf("expected WarningNone, got %v", u.WarningLevel)
	}
}

func TestUsageOf_Levels(t *testing.T) {
	cfg := Config{StorageBytes: 100}
	tests := []struct {
		used   int64
		level  WarningLevel
		within bool
	}{
		{0, WarningNone, true},
		{79, WarningNone, true},
		{80, WarningApproaching, true},
		{95, WarningCritical, true},
		{100, WarningCritical, true},
		{101, WarningExceeded, false},
	}
	for _, tt := range tests {
		u := UsageOf(tt.used, cfg)
		if u.WarningLevel != tt.level {
			t.Errorf("used=%d: expected %v, got %v", tt.used, tt.level, u.WarningLevel)
		}
		if u.WithinLimits != tt.within {
			t.Errorf("used=%d: expected WithinLimits=%v", tt.used, tt.within)
		}
	}
}

func TestUsageOf_ZeroLimit(t *testing.T) {
	if u := UsageOf(0, Config{}); !u.WithinLimits {
		t.Errorf("expected empty usage within a zero limit")
	}
	if u := UsageOf(1, Config{}); u.WithinLimits || u.WarningLevel != WarningExceeded {
		t.Errorf("expected any usage over a zero limit to be exceeded, got %+v", u)
	}
}

// -----------------------------------------------------------------------------
// Check tests
// -----------------------------------------------------------------------------

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		used    int64
		size    int64
		cfg     Config
		allowed bool
		reason  string
	}{
		{"unlimited", 10 * mb, 900 * mb, Config{StorageBytes: Unlimited}, true, ""},
		{"fits", 10 * mb, 5 * mb, Config{StorageBytes: 100 * mb, EnforceMode: EnforceHard}, true, ""},
		{"exactly full", 90 * mb, 10 * mb, Config{StorageBytes: 100 * mb}, true, ""},
		{"over", 95 * mb, 10 * mb, Config{StorageBytes: 100 * mb}, false, ReasonQuotaExceeded},
		{"within grace", 95 * mb, 8 * mb, Config{StorageBytes: 100 * mb, GracePct: 0.05}, true, ""},
		{"warn mode", 95 * mb, 10 * mb, Config{StorageBytes: 100 * mb, EnforceMode: EnforceWarn}, true, ""},
		{"file too large", 0, 11 * mb, Config{StorageBytes: Unlimited, MaxUploadBytes: 10 * mb}, false, ReasonFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Check(tt.used, tt.cfg, tt.size)
			if r.Allowed != tt.allowed {
				t.Errorf("expected Allowed=%v, got %v", tt.allowed, r.Allowed)
			}
			if r.Reason != tt.reason {
				t.Errorf("expected Reason=%q, got %q", tt.reason, r.Reason)
			}
		})
	}
}

func TestCheck_ReportsUsageAfterUpload(t *testing.T) {
	r := Check(40, Config{StorageBytes: 100}, 45)
	if r.Usage.Used != 85 || r.Usage.WarningLevel != WarningApproaching {
		t.Errorf("unexpected usage %+v", r.Usage)
	}
}

func TestWarningLevel_String(t *testing.T) {
	tests := map[WarningLevel]string{
		WarningNone:        "none",
		WarningApproaching: "approaching",
		WarningCritical:    "critical",
		WarningExceeded:    "exceeded",
		WarningLevel(42):   "unknown",
	}
	for level, want := range tests {
		if got := level.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", level, got, want)
		}
	}
}

func TestUsage_JSON(t *testing.T) {
	data, err := json.Marshal(UsageOf(81, Config{StorageBytes: 100}))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"used":81,"limit":100,"unbounded":false,"within_limits":true,"percent_used":81,"warning_level":"approaching"}`
	if string(data) != want {
		t.Errorf("got %s\nwant %s", data, want)
	}
}
