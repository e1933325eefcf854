// Package export renders list sections of the document as an XLSX workbook.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/tofu-suite/tofu/internal/domain/codec"
	"github.com/tofu-suite/tofu/internal/domain/entities"
)

// Sheet is one list section: a worksheet name, the path of the list inside
// the document, and the columns that lead the sheet.
type Sheet struct {
	Name    string
	Path    []string
	Leading []string
}

// DefaultSheets are exported when no section is selected.
var DefaultSheets = []Sheet{
	{Name: "Equipment", Path: []string{"process_design", "equipment"}, Leading: []string{entities.FieldEquipmentID, entities.FieldUniqueCode, "name"}},
	{Name: "Materials", Path: []string{"process_design", "materials"}, Leading: []string{"material_id", "name", "cas_number"}},
	{Name: "MSDS", Path: []string{"process_design", "msds_documents"}, Leading: []string{"msds_id", "material_name", "cas_number"}},
	{Name: "Projects", Path: []string{"process_design", "projects"}, Leading: []string{"project_id", "name"}},
	{Name: "Streams", Path: []string{"process_design", "streams"}, Leading: []string{"stream_id", "name"}},
	{Name: "Todos", Path: []string{"todos"}, Leading: []string{entities.FieldID}},
	{Name: "Notes", Path: []string{"notes"}, Leading: []string{entities.FieldID, "folder", "title"}},
	{Name: "Bookmarks", Path: []string{"bookmarks"}, Leading: []string{entities.FieldID}},
	{Name: "Birthdays", Path: []string{"birthdays"}, Leading: []string{entities.FieldID}},
	{Name: "Holidays", Path: []string{"holidays"}, Leading: []string{entities.FieldID}},
	{Name: "Anniversaries", Path: []string{"anniversaries"}, Leading: []string{entities.FieldID}},
	{Name: "Countdowns", Path: []string{"countdowns"}, Leading: []string{entities.FieldID}},
	{Name: "Pomodoro", Path: []string{"pomodoro_sessions"}, Leading: []string{entities.FieldID}},
}

// SheetByName finds a default sheet, ignoring case.
func SheetByName(name string) (Sheet, bool) {
	for _, sheet := range DefaultSheets {
		if strings.EqualFold(sheet.Name, name) {
			return sheet, true
		}
	}
	return Sheet{}, false
}

// trailing columns always go last.
var trailing = []string{entities.FieldCreatedAt, entities.FieldUpdatedAt}

// Workbook renders the given sheets of an encoded document. With no sheets,
// DefaultSheets are used.
func Workbook(snapshot []byte, sheets ...Sheet) ([]byte, error) {
	raw, err := codec.DecodeRaw(snapshot)
	if err != nil {
		return nil, err
	}
	if len(sheets) == 0 {
		sheets = DefaultSheets
	}

	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, sheet := range sheets {
		if _, err := f.NewSheet(sheet.Name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", sheet.Name, err)
		}
		if i == 0 {
			if idx, err := f.GetSheetIndex(sheet.Name); err == nil {
				f.SetActiveSheet(idx)
			}
		}
		rows := listAt(raw, sheet.Path)
		if err := writeSheet(f, sheet, rows, headerStyle); err != nil {
			f.Close()
			return nil, err
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet Sheet, rows []map[string]any, headerStyle int) error {
	headers := columns(rows, sheet.Leading)

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet.Name, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet.Name, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for r, item := range rows {
		for c, header := range headers {
			value, ok := item[header]
			if !ok || value == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheet.Name, cell, cellValue(value)); err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	return f.SetPanes(sheet.Name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// columns orders the union of keys: leading columns that occur, the rest
// alphabetically, then the timestamps.
func columns(rows []map[string]any, leading []string) []string {
	seen := map[string]bool{}
	for _, row := range rows {
		for k := range row {
			seen[k] = true
		}
	}

	var out []string
	placed := map[string]bool{}
	for _, k := range leading {
		if seen[k] || len(rows) == 0 {
			out = append(out, k)
			placed[k] = true
		}
	}
	for _, k := range trailing {
		placed[k] = true
	}

	var rest []string
	for k := range seen {
		if !placed[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	out = append(out, rest...)

	for _, k := range trailing {
		if seen[k] {
			out = append(out, k)
		}
	}
	return out
}

func listAt(raw map[string]any, path []string) []map[string]any {
	var node any = raw
	for _, key := range path {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node = m[key]
	}
	list, _ := node.([]any)
	rows := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			rows = append(rows, m)
		}
	}
	return rows
}

func cellValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case string, bool:
		return t
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
