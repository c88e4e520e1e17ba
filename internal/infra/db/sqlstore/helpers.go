package sqlstore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// stringOrDash returns "-" when the input is empty/whitespace
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// jsonText encodes v for a JSON column.
func jsonText(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

func storeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// timeScanner accepts the time representations of all supported drivers.
type timeScanner struct{ t *time.Time }

func (s timeScanner) Scan(v any) error {
	switch x := v.(type) {
	case time.Time:
		*s.t = x.UTC()
		return nil
	case nil:
		*s.t = time.Time{}
		return nil
	case []byte:
		return s.parse(string(x))
	case string:
		return s.parse(x)
	}
	return fmt.Errorf("unsupported time value %T", v)
}

func (s timeScanner) parse(v string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			*s.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("cannot parse time %q", v)
}

// jsonScanner decodes a JSON column into dst.
type jsonScanner struct{ dst any }

func (s jsonScanner) Scan(v any) error {
	var b []byte
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		b = x
	case string:
		b = []byte(x)
	default:
		return fmt.Errorf("unsupported json value %T", v)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, s.dst)
}

var _ driver.Valuer = nullJSON("")

// nullJSON stores "{}" for empty detail documents.
type nullJSON string

func (n nullJSON) Value() (driver.Value, error) {
	if strings.TrimSpace(string(n)) == "" {
		return "{}", nil
	}
	var js any
	if json.Unmarshal([]byte(n), &js) != nil {
		b, _ := json.Marshal(map[string]string{"raw": string(n)})
		return string(b), nil
	}
	return string(n), nil
}
