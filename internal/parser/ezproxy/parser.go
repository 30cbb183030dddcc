package ezproxy

import (
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
)

// TimestampLayout is the bracketed access-log time format
const TimestampLayout = "02/Jan/2006:15:04:05 -0700"

// Parser decodes EZproxy access-log lines of the form
//
//	<remote_addr> <identd> <user_or_session> [<DD/Mon/YYYY:HH:MM:SS +ZZZZ>] "<METHOD> <url> HTTP/<ver>" <status> <bytes> "<country>" "<user_agent>"
//
// It is stateless and safe for concurrent use.
type Parser struct {
	logger *pterm.Logger
}

// NewParser creates a new EZproxy parser instance
func NewParser(logger *pterm.Logger) *Parser {
	return &Parser{logger: logger}
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "ezproxy"
}

// Parse decodes one line. Any returned error is a *ParseFailure.
func (p *Parser) Parse(line string) (Record, error) {
	c := cursor{s: strings.TrimRight(line, "\r\n")}
	fail := func(reason Reason, detail string) (Record, error) {
		return Record{}, &ParseFailure{Reason: reason, Line: line, Detail: detail}
	}

	rec := Record{Raw: line}

	// Positional tokens
	var ok bool
	if rec.RemoteAddr, ok = c.token(); !ok {
		return fail(ReasonTruncatedLine, "missing remote address")
	}
	if rec.Identd, ok = c.token(); !ok {
		return fail(ReasonTruncatedLine, "missing identd")
	}
	if rec.UserOrSession, ok = c.token(); !ok {
		return fail(ReasonTruncatedLine, "missing user or session")
	}

	// [timestamp]
	c.skipSpaces()
	if c.done() {
		return fail(ReasonTruncatedLine, "missing timestamp")
	}
	tsField, found, closed := c.delimited('[', ']')
	if !found {
		return fail(ReasonBadTimestamp, "timestamp is not bracketed")
	}
	if !closed {
		return fail(ReasonTruncatedLine, "unterminated timestamp")
	}
	ts, err := time.Parse(TimestampLayout, tsField)
	if err != nil {
		return fail(ReasonBadTimestamp, tsField)
	}
	rec.TS = ts.UTC()

	// "METHOD URL HTTP/VERSION"
	c.skipSpaces()
	if c.done() {
		return fail(ReasonTruncatedLine, "missing request field")
	}
	request, found, closed := c.delimited('"', '"')
	if !found {
		return fail(ReasonBadRequestField, "request field is not quoted")
	}
	if !closed {
		return fail(ReasonTruncatedLine, "unterminated request field")
	}
	parts := strings.Fields(request)
	if len(parts) != 3 || !strings.HasPrefix(parts[2], "HTTP/") {
		return fail(ReasonBadRequestField, request)
	}
	rec.Method, rec.URL, rec.HTTPVersion = parts[0], parts[1], parts[2]

	// status
	statusStr, ok := c.token()
	if !ok {
		return fail(ReasonTruncatedLine, "missing status")
	}
	status, err := strconv.Atoi(statusStr)
	if err != nil || status < 100 || status > 599 {
		return fail(ReasonBadStatus, statusStr)
	}
	rec.Status = status

	// bytes
	bytesStr, ok := c.token()
	if !ok {
		return fail(ReasonTruncatedLine, "missing bytes")
	}
	if bytesStr != "-" {
		n, err := strconv.ParseInt(bytesStr, 10, 64)
		if err != nil || n < 0 {
			return fail(ReasonBadBytes, bytesStr)
		}
		rec.Bytes = n
	}

	// Everything past this point is optional
	rec.Country = c.country()
	rec.UserAgent = c.remainder()

	if u, ok := DecomposeURL(rec.URL); ok {
		rec.Scheme, rec.Host, rec.Port, rec.Path, rec.Query = u.Scheme, u.Host, u.Port, u.Path, u.Query
	} else if p.logger != nil {
		p.logger.Trace("URL has no usable authority, derived fields left empty",
			p.logger.Args("url", rec.URL))
	}

	return rec, nil
}

// cursor walks a line left to right
type cursor struct {
	s   string
	pos int
}

func (c *cursor) done() bool {
	return c.pos >= len(c.s)
}

func (c *cursor) skipSpaces() {
	for c.pos < len(c.s) && (c.s[c.pos] == ' ' || c.s[c.pos] == '\t') {
		c.pos++
	}
}

// token returns the next whitespace-delimited token
func (c *cursor) token() (string, bool) {
	c.skipSpaces()
	start := c.pos
	for c.pos < len(c.s) && c.s[c.pos] != ' ' && c.s[c.pos] != '\t' {
		c.pos++
	}
	return c.s[start:c.pos], c.pos > start
}

// delimited reads open...closing. found reports whether the field starts with open,
// closed whether the closing delimiter was reached before end of line.
func (c *cursor) delimited(open, closing byte) (field string, found, closed bool) {
	if c.s[c.pos] != open {
		return "", false, false
	}
	end := strings.IndexByte(c.s[c.pos+1:], closing)
	if end < 0 {
		return "", true, false
	}
	field = c.s[c.pos+1 : c.pos+1+end]
	c.pos += end + 2
	return field, true, true
}

// country reads the optional country field. A quoted value ends at the next quote.
func (c *cursor) country() string {
	c.skipSpaces()
	if c.done() {
		return ""
	}
	if c.s[c.pos] != '"' {
		v, _ := c.token()
		return v
	}
	v, _, closed := c.delimited('"', '"')
	if !closed {
		v = c.s[c.pos+1:]
		c.pos = len(c.s)
	}
	return strings.TrimSpace(v)
}

// remainder returns the rest of the line with one enclosing quote pair removed
func (c *cursor) remainder() string {
	c.skipSpaces()
	rest := strings.TrimRight(c.s[c.pos:], " \t")
	c.pos = len(c.s)
	if len(rest) >= 2 && rest[0] == '"' && rest[len(rest)-1] == '"' {
		return rest[1 : len(rest)-1]
	}
	return strings.TrimPrefix(rest, `"`)
}
