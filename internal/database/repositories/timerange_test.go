package repositories

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
		want  [2]string // RFC3339 or "" for unbounded
	}{
		{"unbounded", "", "", [2]string{"", ""}},
		{"rfc3339", "2026-02-15T10:00:00Z", "2026-02-16T00:00:00Z", [2]string{"2026-02-15T10:00:00Z", "2026-02-16T00:00:00Z"}},
		{"offset converted to utc", "2026-02-15T10:00:00+02:00", "", [2]string{"2026-02-15T08:00:00Z", ""}},
		{"no zone read as utc", "2026-02-15T10:00:00", "", [2]string{"2026-02-15T10:00:00Z", ""}},
		{"minutes only", "", "2026-02-15T10:30", [2]string{"", "2026-02-15T10:30:00Z"}},
		{"date only", "2026-02-15", "2026-02-16", [2]string{"2026-02-15T00:00:00Z", "2026-02-16T00:00:00Z"}},
		{"equal bounds", "2026-02-15", "2026-02-15", [2]string{"2026-02-15T00:00:00Z", "2026-02-15T00:00:00Z"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := ParseTimeRange(tt.start, tt.end)
			if err != nil {
				t.Fatalf("ParseTimeRange failed: %v", err)
			}
			checkBound(t, "start", tr.Start, tt.want[0])
			checkBound(t, "end", tr.End, tt.want[1])
		})
	}
}

func checkBound(t *testing.T, name string, got *time.Time, want string) {
	t.Helper()
	if want == "" {
		if got != nil {
			t.Errorf("Expected unbounded %s, got %v", name, *got)
		}
		return
	}
	if got == nil {
		t.Fatalf("Expected %s %s, got unbounded", name, want)
	}
	if got.Format(time.RFC3339) != want {
		t.Errorf("Expected %s %s, got %s", name, want, got.Format(time.RFC3339))
	}
}

func TestParseTimeRange_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
	}{
		{"garbage start", "yesterday", ""},
		{"garbage end", "", "2026-13-45"},
		{"inverted", "2026-02-16", "2026-02-15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTimeRange(tt.start, tt.end)
			if !errors.Is(err, ErrInvalidTimeRange) {
				t.Errorf("Expected ErrInvalidTimeRange, got %v", err)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(string(k))
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %q, %v", k, got, err)
		}
	}

	if _, err := ParseKind("top_referrers"); !errors.Is(err, ErrUnknownQuery) {
		t.Errorf("Expected ErrUnknownQuery, got %v", err)
	}
	if len(Kinds()) != 9 {
		t.Errorf("Expected 9 catalog entries, got %d", len(Kinds()))
	}
}
