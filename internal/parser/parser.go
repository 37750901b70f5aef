// Package parser holds the speculative parsers of the event
// classifier. Each parser is a pure function from a raw payload to a
// typed event, returning nil when the payload does not match its
// shape. Parsers never touch the cache; callers apply side effects
// after a match.
package parser

import "strings"

// splitNames breaks a quoted name list out of a system message.
// Chinese lists join with 、 and English lists with ", ".
func splitNames(s string) []string {
	s = strings.Trim(s, `"“”`)
	var parts []string
	for _, sep := range []string{"、", ", "} {
		if strings.Contains(s, sep) {
			parts = strings.Split(s, sep)
			break
		}
	}
	if parts == nil {
		parts = []string{s}
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"“”`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
