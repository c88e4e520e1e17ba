package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect holds what differs between the supported databases: placeholder
// style and the DDL run once at startup.
type Dialect struct {
	Name string
	// Numbered placeholders ($1, $2 ...) instead of ?.
	Numbered bool
	Schema   []string
}

// Rebind rewrites ? placeholders for dialects that need numbered ones.
func (d Dialect) Rebind(q string) string {
	if !d.Numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
