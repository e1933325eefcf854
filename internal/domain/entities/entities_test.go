package entities

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp_Format(t *testing.T) {
	whole := time.Date(2024, 6, 1, 9, 30, 0, 0, time.Local)
	micro := time.Date(2024, 6, 1, 9, 30, 0, 123456789, time.Local)

	assert.Equal(t, "2024-06-01T09:30:00", NewTimestamp(whole).String())
	assert.Equal(t, "2024-06-01T09:30:00.123456", NewTimestamp(micro).String())
	assert.Equal(t, "", Timestamp{}.String())
}

func TestTimestamp_JSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{name: "canonical", in: `"2024-06-01T09:30:00"`, want: `"2024-06-01T09:30:00"`, ok: true},
		{name: "micro", in: `"2024-06-01T09:30:00.000001"`, want: `"2024-06-01T09:30:00.000001"`, ok: true},
		{name: "space separated", in: `"2024-06-01 09:30:00"`, want: `"2024-06-01 09:30:00"`, ok: true},
		{name: "junk kept", in: `"yesterday"`, want: `"yesterday"`},
		{name: "number kept", in: `1717230600`, want: `1717230600`},
		{name: "null kept", in: `null`, want: `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ts))
			assert.Equal(t, tt.ok, !ts.Time.IsZero())

			out, err := json.Marshal(ts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestParseMeasure(t *testing.T) {
	tests := []struct {
		in   any
		want Measure
	}{
		{nil, 0},
		{1.6, 1.6},
		{3, 3},
		{json.Number("-0.1"), -0.1},
		{"2.5", 2.5},
		{" 350 ", 350},
		{"N/A", 0},
		{"nt", 0},
		{"NULL", 0},
		{"-", 0},
		{"--", 0},
		{"", 0},
		{"abc", 0},
		{true, 0},
		{[]any{1}, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMeasure(tt.in))
		})
	}
}

func TestRecord_JSON(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"id": 3, "text": "<buy> 牛奶", "amount": 1.50, "created_at": "2024-06-01T08:00:00"}`), &rec))

	assert.Equal(t, 3, rec.ID)
	assert.Equal(t, "<buy> 牛奶", rec.Str("text"))
	assert.Equal(t, json.Number("1.50"), rec.Fields["amount"])
	assert.Equal(t, "2024-06-01T08:00:00", rec.CreatedAt.String())
	assert.Nil(t, rec.UpdatedAt)

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 3, "text": "<buy> 牛奶", "amount": 1.50, "created_at": "2024-06-01T08:00:00"}`, string(out))
	assert.Contains(t, string(out), `"amount":1.50`)
}

func TestRecord_NonNumericID(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"id": "x", "created_at": 5}`), &rec))

	assert.Zero(t, rec.ID)
	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": "x", "created_at": 5}`, string(out))
}

func TestRecord_StoredKeysKept(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"id": 3.0, "created_at": null, "updated_at": null, "text": "a"}`), &rec))

	assert.Equal(t, 3, rec.ID)
	assert.Equal(t, "", rec.CreatedAt.String())
	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"created_at":null,"id":3.0,"text":"a","updated_at":null}`, string(out))

	require.NoError(t, json.Unmarshal([]byte(`{"text": "no reserved keys"}`), &rec))
	out, err = json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text": "no reserved keys"}`, string(out))
}

func TestRecord_MergeSkipsReservedKeys(t *testing.T) {
	rec := Record{ID: 1}
	rec.Merge(map[string]any{"id": 9, "created_at": "x", "updated_at": "y", "title": "t"})

	assert.Equal(t, 1, rec.ID)
	assert.Equal(t, Attributes{"title": "t"}, rec.Fields)
}

func TestRecord_NormalizesTimes(t *testing.T) {
	when := time.Date(2024, 6, 1, 8, 0, 0, 0, time.Local)
	rec := Record{ID: 1, Fields: Attributes{
		"due":    when,
		"nested": map[string]any{"at": &when, "list": []any{when}},
	}}

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 1,
		"created_at": "",
		"due": "2024-06-01T08:00:00",
		"nested": {"at": "2024-06-01T08:00:00", "list": ["2024-06-01T08:00:00"]}
	}`, string(out))
}

func TestEquipment_JSON(t *testing.T) {
	var eq Equipment
	require.NoError(t, json.Unmarshal([]byte(`{
		"equipment_id": "EQ_1",
		"unique_code": 101,
		"design_pressure": "N/A",
		"design_temperature": "120",
		"name": "Pump",
		"created_at": "2024-06-01T08:00:00"
	}`), &eq))

	assert.Equal(t, "EQ_1", eq.EquipmentID)
	assert.Equal(t, "101", eq.UniqueCode)
	assert.Zero(t, eq.DesignPressure)
	assert.Equal(t, Measure(120), eq.DesignTemperature)
	assert.Equal(t, "Pump", eq.Str("name"))

	out, err := json.Marshal(eq)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"equipment_id": "EQ_1",
		"unique_code": 101,
		"design_pressure": "N/A",
		"design_temperature": "120",
		"name": "Pump",
		"created_at": "2024-06-01T08:00:00"
	}`, string(out))

	eq.Merge(map[string]any{"design_pressure": "NT", "unique_code": ""})
	out, err = json.Marshal(eq)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"equipment_id": "EQ_1",
		"unique_code": "",
		"design_pressure": 0,
		"design_temperature": "120",
		"name": "Pump",
		"created_at": "2024-06-01T08:00:00"
	}`, string(out))
}

func TestEquipment_JSONFromInput(t *testing.T) {
	eq := NewEquipment(map[string]any{"name": "Pump", "design_pressure": "NT"})
	eq.EquipmentID = "EQ_1"

	out, err := json.Marshal(eq)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"equipment_id": "EQ_1",
		"design_pressure": 0,
		"design_temperature": 0,
		"name": "Pump",
		"created_at": "",
		"updated_at": ""
	}`, string(out))
}

func TestEquipment_StoredNumbersKeepTheirText(t *testing.T) {
	var eq Equipment
	require.NoError(t, json.Unmarshal([]byte(`{"equipment_id": "E1", "design_pressure": 0.0, "design_temperature": 250.0}`), &eq))

	assert.Equal(t, Measure(250), eq.DesignTemperature)
	out, err := json.Marshal(eq)
	require.NoError(t, err)
	assert.Equal(t, `{"design_pressure":0.0,"design_temperature":250.0,"equipment_id":"E1"}`, string(out))

	clone := eq.Clone()
	clone.Merge(map[string]any{"design_temperature": 250})
	out, err = json.Marshal(clone)
	require.NoError(t, err)
	assert.Equal(t, `{"design_pressure":0.0,"design_temperature":250,"equipment_id":"E1"}`, string(out))

	out, err = json.Marshal(eq)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"design_temperature":250.0`, "merging into a clone leaves the original alone")
}

func TestEquipment_Merge(t *testing.T) {
	eq := NewEquipment(map[string]any{"equipment_id": "EQ_1", "name": "Pump", "created_at": "x"})
	eq.Merge(map[string]any{"equipment_id": "EQ_2", "design_pressure": "1.2", "unique_code": "P-1", "name": "Pump B"})

	assert.Equal(t, "EQ_1", eq.EquipmentID)
	assert.Equal(t, Measure(1.2), eq.DesignPressure)
	assert.Equal(t, "P-1", eq.UniqueCode)
	assert.Equal(t, Attributes{"name": "Pump B"}, eq.Fields)
}

func TestDocument_ExtraSectionsRoundTrip(t *testing.T) {
	in := `{"todos": [], "zeta": [1, 2], "alpha": {"k": "v"}}`

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(in), &doc))
	require.Len(t, doc.Extra, 2)

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, `,"alpha":{"k":"v"},"zeta":[1,2]}`)
}

func TestDocument_Normalize(t *testing.T) {
	var doc Document
	doc.Normalize()

	for _, kind := range EntityKinds {
		assert.NotNil(t, *doc.Collection(kind), kind)
	}
	assert.NotNil(t, doc.Settings)
	assert.NotNil(t, doc.Folders)
	assert.NotNil(t, doc.ProcessDesign.Equipment)

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"pomodoro_sessions":[]`)
}

func TestDocument_CollectionPanicsOnUnknownKind(t *testing.T) {
	var doc Document
	assert.Panics(t, func() { doc.Collection("invoices") })
}

func TestEntityKind(t *testing.T) {
	assert.True(t, KindNotes.IsValid())
	assert.False(t, EntityKind("invoices").IsValid())
	assert.Equal(t, SectionNotes, KindNotes.Section())
}

func TestPersistError(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("wrapped: %w", &PersistError{Op: "add folder", Err: cause})

	assert.ErrorIs(t, err, ErrPersist)
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "wrapped: add folder: persist document: disk full")
}

func TestNewDefaultDocument(t *testing.T) {
	doc := NewDefaultDocument(time.Date(2024, 6, 1, 9, 0, 0, 0, time.Local))

	require.Len(t, doc.ProcessDesign.Materials, 3)
	require.Len(t, doc.ProcessDesign.MSDSDocuments, 2)
	assert.Equal(t, "2024-06-01T09:00:00", doc.ProcessDesign.Materials[0]["created_at"])
	assert.Equal(t, "2024-06-01", doc.ProcessDesign.MSDSDocuments[0]["effective_date"])
	assert.Empty(t, doc.Todos)
	assert.NotNil(t, doc.Todos)
}

func TestContainsDigit(t *testing.T) {
	assert.True(t, ContainsDigit("PJ-2024"))
	assert.False(t, ContainsDigit("Refinery"))
}
