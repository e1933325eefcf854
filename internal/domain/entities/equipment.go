package entities

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Equipment record keys.
const (
	FieldEquipmentID       = "equipment_id"
	FieldUniqueCode        = "unique_code"
	FieldDesignPressure    = "design_pressure"
	FieldDesignTemperature = "design_temperature"
)

// EquipmentIDPrefix prefixes generated equipment ids.
const EquipmentIDPrefix = "EQ_"

// notApplicable lists the tokens engineers type when a design value does not
// apply. They read as zero.
var notApplicable = map[string]bool{
	"NT": true, "N/A": true, "NA": true, "NULL": true, "-": true, "--": true, "": true,
}

// Measure is a design value that tolerates blanks, sentinels and junk text.
type Measure float64

// ParseMeasure never fails: sentinels and malformed values become 0.
func ParseMeasure(v any) Measure {
	switch n := v.(type) {
	case nil:
		return 0
	case Measure:
		return n
	case float64:
		return Measure(n)
	case float32:
		return Measure(n)
	case int:
		return Measure(n)
	case int64:
		return Measure(n)
	case int32:
		return Measure(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return Measure(f)
	case string:
		s := strings.TrimSpace(n)
		if notApplicable[strings.ToUpper(s)] {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return Measure(f)
	}
	return 0
}

func (m *Measure) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = ParseMeasure(v)
	return nil
}

// Equipment is a process-design equipment item.
type Equipment struct {
	EquipmentID       string
	UniqueCode        string
	DesignPressure    Measure
	DesignTemperature Measure
	CreatedAt         Timestamp
	UpdatedAt         Timestamp
	Fields            Attributes

	// stored holds the typed values as read, nil for records built from
	// input. Keys set by Merge map to edited{}. Copy on write.
	stored map[string]any
}

type edited struct{}

// NewEquipment builds a record from free-form input, coercing the design
// values. Timestamps and id generation are left to the caller.
func NewEquipment(fields map[string]any) Equipment {
	eq := Equipment{Fields: Attributes{}}
	for k, v := range fields {
		switch k {
		case FieldEquipmentID:
			eq.EquipmentID = stringValue(v)
		case FieldUniqueCode:
			eq.UniqueCode = stringValue(v)
		case FieldDesignPressure:
			eq.DesignPressure = ParseMeasure(v)
		case FieldDesignTemperature:
			eq.DesignTemperature = ParseMeasure(v)
		case FieldCreatedAt, FieldUpdatedAt:
		default:
			eq.Fields[k] = v
		}
	}
	return eq
}

// Merge applies a partial update. Design values are coerced; the id and
// timestamps are left alone.
func (e *Equipment) Merge(fields map[string]any) {
	if e.Fields == nil {
		e.Fields = Attributes{}
	}
	for k, v := range fields {
		switch k {
		case FieldEquipmentID, FieldCreatedAt, FieldUpdatedAt:
			continue
		case FieldUniqueCode:
			e.UniqueCode = stringValue(v)
		case FieldDesignPressure:
			e.DesignPressure = ParseMeasure(v)
		case FieldDesignTemperature:
			e.DesignTemperature = ParseMeasure(v)
		default:
			e.Fields[k] = v
			continue
		}
		if e.stored != nil {
			e.markEdited(k)
		}
	}
}

func (e *Equipment) markEdited(key string) {
	stored := make(map[string]any, len(e.stored)+1)
	for k, v := range e.stored {
		stored[k] = v
	}
	stored[key] = edited{}
	e.stored = stored
}

// Str returns a string field.
func (e Equipment) Str(key string) string {
	return e.Fields.String(key)
}

// Clone copies the equipment including its field map.
func (e Equipment) Clone() Equipment {
	out := e
	out.Fields = e.Fields.Clone()
	return out
}

func (e Equipment) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+6)
	for k, v := range e.Fields {
		out[k] = normalizeValue(v)
	}
	if e.stored == nil {
		out[FieldEquipmentID] = e.EquipmentID
		if e.UniqueCode != "" {
			out[FieldUniqueCode] = e.UniqueCode
		}
		out[FieldDesignPressure] = float64(e.DesignPressure)
		out[FieldDesignTemperature] = float64(e.DesignTemperature)
		out[FieldCreatedAt] = e.CreatedAt
		out[FieldUpdatedAt] = e.UpdatedAt
		return marshalNoEscape(out)
	}

	sameString := func(s string) func(any) bool {
		return func(v any) bool { return stringValue(v) == s }
	}
	sameMeasure := func(m Measure) func(any) bool {
		return func(v any) bool { return ParseMeasure(v) == m }
	}
	never := func(any) bool { return false }
	e.putStored(out, FieldEquipmentID, e.EquipmentID, e.EquipmentID != "", sameString(e.EquipmentID))
	e.putStored(out, FieldUniqueCode, e.UniqueCode, e.UniqueCode != "", sameString(e.UniqueCode))
	e.putStored(out, FieldDesignPressure, float64(e.DesignPressure), e.DesignPressure != 0, sameMeasure(e.DesignPressure))
	e.putStored(out, FieldDesignTemperature, float64(e.DesignTemperature), e.DesignTemperature != 0, sameMeasure(e.DesignTemperature))
	e.putStored(out, FieldCreatedAt, e.CreatedAt, e.CreatedAt.IsSet(), never)
	e.putStored(out, FieldUpdatedAt, e.UpdatedAt, e.UpdatedAt.IsSet(), never)
	return marshalNoEscape(out)
}

// putStored writes the value read from storage while it still means the
// current one, so unchanged records are saved byte for byte. Keys that were
// absent stay absent until they get a value.
func (e Equipment) putStored(out map[string]any, key string, current any, set bool, same func(any) bool) {
	orig, ok := e.stored[key]
	if !ok {
		if set {
			out[key] = current
		}
		return
	}
	if _, changed := orig.(edited); !changed && same(orig) {
		out[key] = orig
		return
	}
	out[key] = current
}

func (e *Equipment) UnmarshalJSON(data []byte) error {
	m, err := decodeObject(data)
	if err != nil {
		return err
	}
	eq := NewEquipment(m)
	eq.stored = map[string]any{}
	for _, k := range []string{FieldEquipmentID, FieldUniqueCode, FieldDesignPressure, FieldDesignTemperature, FieldCreatedAt, FieldUpdatedAt} {
		if v, ok := m[k]; ok {
			eq.stored[k] = v
		}
	}
	if v, ok := m[FieldCreatedAt]; ok {
		eq.CreatedAt = timestampValue(v)
	}
	if v, ok := m[FieldUpdatedAt]; ok {
		eq.UpdatedAt = timestampValue(v)
	}
	*e = eq
	return nil
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	}
	return fmt.Sprint(v)
}
