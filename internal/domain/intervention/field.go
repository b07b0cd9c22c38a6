package intervention

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Field is an optional JSON member that distinguishes "absent" from "null".
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a present, non-null field.
func Some[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// Null returns a present field holding an explicit null.
func Null[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		f.Null = true
		return nil
	}
	return json.Unmarshal(b, &f.Value)
}

// Zone-less layout sent by the legacy front end; read as UTC.
const localLayout = "2006-01-02T15:04:05"

// DateTime accepts RFC 3339 or the zone-less local layout.
type DateTime struct {
	time.Time
}

func (d *DateTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date-time must be a string: %w", err)
	}
	t, err := ParseDateTime(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ParseDateTime parses s as RFC 3339, falling back to the zone-less layout
// (optionally with fractional seconds) in UTC.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	invalid := fmt.Errorf("invalid date-time %q: expected RFC 3339 or %s", s, localLayout)

	base, frac := s, time.Duration(0)
	if i := strings.IndexByte(s, '.'); i > 0 {
		d, err := time.ParseDuration("0" + s[i:] + "s")
		if err != nil {
			return time.Time{}, invalid
		}
		base, frac = s[:i], d
	}
	t, err := time.ParseInLocation(localLayout, base, time.UTC)
	if err != nil {
		return time.Time{}, invalid
	}
	return t.Add(frac), nil
}

// ParseQueryTime also accepts a bare date.
func ParseQueryTime(s string) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), time.UTC); err == nil {
		return t, nil
	}
	return ParseDateTime(s)
}
