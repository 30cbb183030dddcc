package repositories

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

var (
	// ErrInvalidTimeRange is returned for unparsable or inverted bounds
	ErrInvalidTimeRange = errors.New("invalid time range")
	// ErrUnknownQuery is returned when a query kind is not in the catalog
	ErrUnknownQuery = errors.New("unknown query")
)

// QueryError wraps any failure of a catalog query
type QueryError struct {
	Kind Kind
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Kind, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// TimeRange bounds a query on ts. Start is inclusive, End exclusive; nil means unbounded.
type TimeRange struct {
	Start *time.Time
	End   *time.Time
}

// Accepted bound layouts; the ones without a zone are read as UTC
var boundLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimeRange parses optional ISO-8601 start and end bounds. Empty strings are unbounded.
func ParseTimeRange(start, end string) (TimeRange, error) {
	var tr TimeRange

	if s := strings.TrimSpace(start); s != "" {
		t, err := parseBound(s)
		if err != nil {
			return TimeRange{}, fmt.Errorf("%w: start %q", ErrInvalidTimeRange, start)
		}
		tr.Start = &t
	}
	if e := strings.TrimSpace(end); e != "" {
		t, err := parseBound(e)
		if err != nil {
			return TimeRange{}, fmt.Errorf("%w: end %q", ErrInvalidTimeRange, end)
		}
		tr.End = &t
	}

	if err := tr.Validate(); err != nil {
		return TimeRange{}, err
	}
	return tr, nil
}

func parseBound(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range boundLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// Validate rejects a range whose start is after its end
func (tr TimeRange) Validate() error {
	if tr.Start != nil && tr.End != nil && tr.Start.After(*tr.End) {
		return fmt.Errorf("%w: start %s is after end %s",
			ErrInvalidTimeRange, tr.Start.Format(time.RFC3339), tr.End.Format(time.RFC3339))
	}
	return nil
}

// apply pushes the bounds down as a filter on ts
func (tr TimeRange) apply(query *gorm.DB) *gorm.DB {
	if tr.Start != nil {
		query = query.Where("ts >= ?", tr.Start.UTC())
	}
	if tr.End != nil {
		query = query.Where("ts < ?", tr.End.UTC())
	}
	return query
}
