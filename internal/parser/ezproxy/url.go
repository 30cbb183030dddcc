package ezproxy

import (
	"strconv"
	"strings"
)

// URLParts holds the fields derived from a request URL
type URLParts struct {
	Scheme string
	Host   string
	Port   int
	Path   string
	Query  string
}

// DefaultPort returns the implicit port for a scheme, or 0 when there is none
func DefaultPort(scheme string) int {
	switch scheme {
	case "http":
		return 80
	case "https":
		return 443
	default:
		return 0
	}
}

// DecomposeURL splits an absolute URL into scheme, host, port, path and query.
// ok is false when the URL has no usable authority; parts is then empty.
func DecomposeURL(raw string) (parts URLParts, ok bool) {
	sep := strings.Index(raw, "://")
	if sep <= 0 {
		return URLParts{}, false
	}

	scheme := strings.ToLower(raw[:sep])
	if !validScheme(scheme) {
		return URLParts{}, false
	}

	rest := raw[sep+3:]
	authority, tail := rest, ""
	if end := strings.IndexAny(rest, "/?#"); end >= 0 {
		authority, tail = rest[:end], rest[end:]
	}

	host, port, ok := splitAuthority(authority)
	if !ok {
		return URLParts{}, false
	}
	if port == 0 {
		port = DefaultPort(scheme)
	}

	// Fragments never reach a proxy log in practice; drop one if present
	if hash := strings.IndexByte(tail, '#'); hash >= 0 {
		tail = tail[:hash]
	}

	path, query := tail, ""
	if q := strings.IndexByte(tail, '?'); q >= 0 {
		path, query = tail[:q], tail[q+1:]
	}

	return URLParts{
		Scheme: scheme,
		Host:   strings.ToLower(host),
		Port:   port,
		Path:   path,
		Query:  query,
	}, true
}

// splitAuthority separates host and optional port. A zero port means none was given.
func splitAuthority(authority string) (string, int, bool) {
	if authority == "" || strings.ContainsAny(authority, "@ \t") {
		return "", 0, false
	}

	var host, portStr string
	if authority[0] == '[' {
		end := strings.IndexByte(authority, ']')
		if end < 0 {
			return "", 0, false
		}
		host = authority[1:end]
		after := authority[end+1:]
		switch {
		case after == "":
		case after[0] == ':':
			portStr = after[1:]
		default:
			return "", 0, false
		}
	} else {
		if strings.Count(authority, ":") > 1 {
			return "", 0, false
		}
		host = authority
		if colon := strings.IndexByte(authority, ':'); colon >= 0 {
			host, portStr = authority[:colon], authority[colon+1:]
		}
	}

	if host == "" {
		return "", 0, false
	}
	if portStr == "" {
		return host, 0, true
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, false
	}
	return host, port, true
}

func validScheme(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

// String recomposes the URL. The port is omitted when it is the scheme default.
func (p URLParts) String() string {
	if p.Scheme == "" || p.Host == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString(p.Scheme)
	b.WriteString("://")
	if strings.Contains(p.Host, ":") {
		b.WriteByte('[')
		b.WriteString(p.Host)
		b.WriteByte(']')
	} else {
		b.WriteString(p.Host)
	}
	if p.Port != 0 && p.Port != DefaultPort(p.Scheme) {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(p.Port))
	}
	b.WriteString(p.Path)
	if p.Query != "" {
		b.WriteByte('?')
		b.WriteString(p.Query)
	}
	return b.String()
}
