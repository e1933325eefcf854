package entities

import (
	"encoding/json"
	"time"
)

const (
	timestampLayout      = "2006-01-02T15:04:05"
	timestampMicroLayout = "2006-01-02T15:04:05.000000"
)

var timestampParseLayouts = []string{
	timestampMicroLayout,
	timestampLayout,
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp is a local wall-clock time written as ISO-8601 without zone, with
// microseconds only when they are non-zero. A stored value that cannot be
// parsed is kept as-is so that saving does not rewrite it.
type Timestamp struct {
	time.Time
	raw     string
	literal bool
}

// NewTimestamp truncates t to microseconds.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.Truncate(time.Microsecond)}
}

// TimestampPtr is NewTimestamp returning a pointer.
func TimestampPtr(t time.Time) *Timestamp {
	ts := NewTimestamp(t)
	return &ts
}

// FormatTimestamp renders t in the canonical stored form.
func FormatTimestamp(t time.Time) string {
	if t.Nanosecond()/int(time.Microsecond) == 0 {
		return t.Format(timestampLayout)
	}
	return t.Format(timestampMicroLayout)
}

// ParseTimestamp accepts the canonical form and a few common ISO variants.
func ParseTimestamp(s string) (Timestamp, bool) {
	for _, layout := range timestampParseLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return Timestamp{Time: t, raw: s}, true
		}
	}
	return Timestamp{raw: s}, false
}

// nullTimestamp is a stored JSON null, written back as null.
var nullTimestamp = Timestamp{raw: "null", literal: true}

// IsSet reports whether t holds a time or a stored value.
func (t Timestamp) IsSet() bool {
	return t.literal || t.raw != "" || !t.Time.IsZero()
}

func (t Timestamp) String() string {
	if t == nullTimestamp {
		return ""
	}
	if t.raw != "" {
		return t.raw
	}
	if t.Time.IsZero() {
		return ""
	}
	return FormatTimestamp(t.Time)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.literal {
		return []byte(t.raw), nil
	}
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = nullTimestamp
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Non-string timestamps are not produced by any writer; keep the
		// literal so it round-trips.
		*t = Timestamp{raw: string(data), literal: true}
		return nil
	}
	*t, _ = ParseTimestamp(s)
	return nil
}
