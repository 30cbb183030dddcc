package useragent

import (
	"strings"
	"testing"
)

func TestFamily(t *testing.T) {
	tests := []struct {
		ua       string
		expected string
	}{
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36", "Chrome"},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0", "Edge"},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 OPR/106.0.0.0", "Opera"},
		{"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0", "Firefox"},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_2) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15", "Safari"},
		{"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", "Bot"},
		{"Mozilla/5.0 (compatible; bingbot/2.0)", "Bot"},
		{"curl/8.4.0", Other},
		{"", Other},
	}

	for _, tt := range tests {
		if got := Family(tt.ua); got != tt.expected {
			t.Errorf("Family(%q): expected '%s', got '%s'", tt.ua, tt.expected, got)
		}
	}
}

func TestFamilies(t *testing.T) {
	families := Families()
	if families[len(families)-1] != Other {
		t.Errorf("Expected '%s' as the last family, got '%s'", Other, families[len(families)-1])
	}
	if len(families) != len(rules)+1 {
		t.Errorf("Expected %d families, got %d", len(rules)+1, len(families))
	}
}

func TestSQLCase(t *testing.T) {
	expr := SQLCase("user_agent")

	if !strings.HasPrefix(expr, "CASE WHEN instr(user_agent, 'bot') > 0") {
		t.Errorf("Unexpected CASE prefix: %s", expr)
	}
	if !strings.HasSuffix(expr, "ELSE 'Other' END") {
		t.Errorf("Unexpected CASE suffix: %s", expr)
	}
	for _, family := range Families() {
		if !strings.Contains(expr, "'"+family+"'") {
			t.Errorf("Expected CASE expression to mention family '%s'", family)
		}
	}
}

func TestQuote(t *testing.T) {
	if got := quote("it's"); got != "'it''s'" {
		t.Errorf("Expected escaped quote, got %s", got)
	}
}
