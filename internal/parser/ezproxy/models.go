package ezproxy

import (
	"fmt"
	"time"
)

// Record is one normalized EZproxy access-log line
type Record struct {
	TS time.Time // always UTC

	// Client info
	RemoteAddr    string
	Identd        string
	UserOrSession string

	// Request info
	Method      string
	URL         string
	Scheme      string
	Host        string // lower-cased
	Port        int
	Path        string
	Query       string
	HTTPVersion string

	// Response info
	Status int
	Bytes  int64

	Country   string
	UserAgent string

	// Raw is the input line exactly as read
	Raw string
}

// URLParts returns the decomposed URL fields of the record
func (r Record) URLParts() URLParts {
	return URLParts{
		Scheme: r.Scheme,
		Host:   r.Host,
		Port:   r.Port,
		Path:   r.Path,
		Query:  r.Query,
	}
}

// Reason classifies why a line was rejected
type Reason string

const (
	ReasonBadTimestamp    Reason = "bad-timestamp"
	ReasonBadRequestField Reason = "bad-request-field"
	ReasonBadStatus       Reason = "bad-status"
	ReasonBadBytes        Reason = "bad-bytes"
	ReasonTruncatedLine   Reason = "truncated-line"
)

// ParseFailure is returned by Parse for lines that do not match the grammar.
// It is a per-line condition, callers count it and move on.
type ParseFailure struct {
	Reason Reason
	Line   string
	Detail string
}

func (f *ParseFailure) Error() string {
	if f.Detail == "" {
		return fmt.Sprintf("parse failure: %s", f.Reason)
	}
	return fmt.Sprintf("parse failure: %s: %s", f.Reason, f.Detail)
}
