package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tofu-suite/tofu/internal/domain/codec"
	"github.com/tofu-suite/tofu/internal/domain/entities"
)

func TestWorkbook_DefaultDocument(t *testing.T) {
	doc := entities.NewDefaultDocument(time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local))
	doc.ProcessDesign.Equipment = append(doc.ProcessDesign.Equipment, entities.NewEquipment(map[string]any{
		"equipment_id":    "EQ_0000ABCD",
		"name":            "Feed pump",
		"design_pressure": "1.6",
		"nozzles":         []any{"N1", "N2"},
	}))
	snapshot, err := codec.Encode(doc)
	require.NoError(t, err)

	data, err := Workbook(snapshot)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.NotContains(t, f.GetSheetList(), "Sheet1")
	assert.Equal(t, "Equipment", f.GetSheetList()[0])

	rows, err := f.GetRows("Materials")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"material_id", "name", "cas_number"}, rows[0][:3])
	assert.Equal(t, "created_at", rows[0][len(rows[0])-1])
	assert.Equal(t, "MAT_WATER", rows[1][0])

	rows, err = f.GetRows("Equipment")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	header := rows[0]
	assert.Equal(t, "equipment_id", header[0])
	assert.Contains(t, header, "nozzles")
	for i, h := range header {
		if h == "nozzles" {
			assert.Equal(t, `["N1","N2"]`, rows[1][i])
		}
	}

	rows, err = f.GetRows("Todos")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"id"}, rows[0])
}

func TestWorkbook_SelectedSheets(t *testing.T) {
	snapshot := []byte(`{"todos": [{"id": 1, "text": "call <vendor>", "created_at": "2024-01-01T00:00:00"}]}`)

	data, err := Workbook(snapshot, Sheet{Name: "Todos", Path: []string{"todos"}, Leading: []string{"id"}})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Todos"}, f.GetSheetList())
	rows, err := f.GetRows("Todos")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"id", "text", "created_at"},
		{"1", "call <vendor>", "2024-01-01T00:00:00"},
	}, rows)
}

func TestWorkbook_InvalidSnapshot(t *testing.T) {
	_, err := Workbook([]byte("not json"))
	assert.Error(t, err)
}

func TestSheetByName(t *testing.T) {
	sheet, ok := SheetByName("msds")
	require.True(t, ok)
	assert.Equal(t, []string{"process_design", "msds_documents"}, sheet.Path)

	_, ok = SheetByName("Invoices")
	assert.False(t, ok)
}
