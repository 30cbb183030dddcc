// Package useragent maps raw User-Agent strings onto a small set of browser families.
//
// The same rule table drives both the Go classifier and the SQL expression used
// by the user_agents aggregation, so both always agree.
package useragent

import (
	"fmt"
	"strings"
)

// Other is the family of anything no rule matches
const Other = "Other"

type rule struct {
	family  string
	markers []string // case-sensitive substrings, any of which selects the family
}

// Order matters: Edge and Opera UAs also contain "Chrome", and Chrome UAs contain "Safari".
var rules = []rule{
	{family: "Bot", markers: []string{"bot", "Bot", "crawler", "spider"}},
	{family: "Edge", markers: []string{"Edg"}},
	{family: "Opera", markers: []string{"OPR/", "Opera"}},
	{family: "Chrome", markers: []string{"Chrome"}},
	{family: "Firefox", markers: []string{"Firefox"}},
	{family: "Safari", markers: []string{"Safari"}},
}

// Families lists every family Family can return, in rule order
func Families() []string {
	out := make([]string, 0, len(rules)+1)
	for _, r := range rules {
		out = append(out, r.family)
	}
	return append(out, Other)
}

// Family classifies a User-Agent string
func Family(ua string) string {
	for _, r := range rules {
		for _, m := range r.markers {
			if strings.Contains(ua, m) {
				return r.family
			}
		}
	}
	return Other
}

// SQLCase renders the rule table as a SQLite CASE expression over column.
// instr() is case-sensitive, matching strings.Contains.
func SQLCase(column string) string {
	var b strings.Builder
	b.WriteString("CASE")
	for _, r := range rules {
		conds := make([]string, len(r.markers))
		for i, m := range r.markers {
			conds[i] = fmt.Sprintf("instr(%s, %s) > 0", column, quote(m))
		}
		fmt.Fprintf(&b, " WHEN %s THEN %s", strings.Join(conds, " OR "), quote(r.family))
	}
	fmt.Fprintf(&b, " ELSE %s END", quote(Other))
	return b.String()
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
