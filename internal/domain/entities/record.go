package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Reserved keys of a generic record; the rest of the object lands in Fields.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// Attributes is an open JSON object. Numbers decode as json.Number so that
// values are written back exactly as they were read.
type Attributes map[string]any

func (a *Attributes) UnmarshalJSON(data []byte) error {
	m, err := decodeObject(data)
	if err != nil {
		return err
	}
	*a = m
	return nil
}

func (a Attributes) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("null"), nil
	}
	return marshalNoEscape(normalizeMap(a))
}

// String returns the value under key when it is a string.
func (a Attributes) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// Clone makes a shallow copy.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Record is an entry of a generic collection (todos, notes, bookmarks ...).
type Record struct {
	ID        int
	CreatedAt Timestamp
	UpdatedAt *Timestamp
	Fields    Attributes

	// stored holds the reserved values as read, nil for records built in
	// memory. It is never mutated and may be shared between clones.
	stored map[string]any
}

// Str returns a string field, or "" when absent or not a string.
func (r Record) Str(key string) string {
	return r.Fields.String(key)
}

// Clone copies the record including its field map.
func (r Record) Clone() Record {
	out := r
	out.Fields = r.Fields.Clone()
	if r.UpdatedAt != nil {
		ts := *r.UpdatedAt
		out.UpdatedAt = &ts
	}
	return out
}

// Merge copies fields into the record, skipping the reserved keys.
func (r *Record) Merge(fields map[string]any) {
	if r.Fields == nil {
		r.Fields = Attributes{}
	}
	for k, v := range fields {
		switch k {
		case FieldID, FieldCreatedAt, FieldUpdatedAt:
			continue
		}
		r.Fields[k] = v
	}
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		out[k] = normalizeValue(v)
	}
	if orig, ok := r.stored[FieldID]; ok {
		out[FieldID] = r.ID
		if n, err := intValue(orig); (err == nil && n == r.ID) || (err != nil && r.ID == 0) {
			out[FieldID] = orig
		}
	} else if r.stored == nil || r.ID != 0 {
		out[FieldID] = r.ID
	}
	if _, ok := r.stored[FieldCreatedAt]; ok || r.stored == nil || r.CreatedAt.IsSet() {
		out[FieldCreatedAt] = r.CreatedAt
	}
	if r.UpdatedAt != nil {
		out[FieldUpdatedAt] = *r.UpdatedAt
	}
	return marshalNoEscape(out)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	m, err := decodeObject(data)
	if err != nil {
		return err
	}
	rec := Record{Fields: Attributes{}, stored: map[string]any{}}
	for k, v := range m {
		switch k {
		case FieldID, FieldCreatedAt, FieldUpdatedAt:
			rec.stored[k] = v
		}
		switch k {
		case FieldID:
			// A non-numeric id reads as 0 rather than failing the whole load.
			rec.ID, _ = intValue(v)
		case FieldCreatedAt:
			rec.CreatedAt = timestampValue(v)
		case FieldUpdatedAt:
			ts := timestampValue(v)
			rec.UpdatedAt = &ts
		default:
			rec.Fields[k] = v
		}
	}
	*r = rec
	return nil
}

func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func intValue(v any) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		return int(f), nil
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case string:
		return strconv.Atoi(n)
	}
	return 0, fmt.Errorf("unexpected %T", v)
}

func timestampValue(v any) Timestamp {
	switch t := v.(type) {
	case string:
		ts, _ := ParseTimestamp(t)
		return ts
	case nil:
		return nullTimestamp
	}
	raw, _ := marshalNoEscape(v)
	return Timestamp{raw: string(raw), literal: true}
}

// normalizeValue rewrites date/time values anywhere inside v into the
// canonical timestamp string.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return FormatTimestamp(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		return FormatTimestamp(*t)
	case map[string]any:
		return normalizeMap(t)
	case Attributes:
		return normalizeMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeValue(item)
		}
		return out
	}
	return v
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}
