package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/tofu-suite/tofu/internal/domain/entities"
)

const reportDateLayout = "20060102"

// GetProjectInfo returns the project header.
func (s *Store) GetProjectInfo() entities.ProjectInfo {
	var info entities.ProjectInfo
	s.view("get project info", func(doc *entities.Document) {
		info = doc.ProjectInfo
	})
	return info
}

// UpdateProjectInfo replaces the project header. Fields left empty in info
// are stored empty; nothing is carried over from the previous value.
func (s *Store) UpdateProjectInfo(ctx context.Context, info entities.ProjectInfo) error {
	return s.apply(ctx, "update project info", func(doc *entities.Document) ([]entities.Section, error) {
		doc.ProjectInfo = info
		return sections(entities.SectionProjectInfo), nil
	})
}

// GetLegacyProjectInfo returns the calculator and reviewer carried over from
// the old project header layout, if any.
func (s *Store) GetLegacyProjectInfo() (entities.LegacyProjectInfo, bool) {
	var (
		legacy entities.LegacyProjectInfo
		ok     bool
	)
	s.view("get legacy project info", func(doc *entities.Document) {
		if doc.LegacyProjectInfo != nil {
			legacy, ok = *doc.LegacyProjectInfo, true
		}
	})
	return legacy, ok
}

// GetReportCounter returns the stored daily counter.
func (s *Store) GetReportCounter() entities.ReportCounter {
	var counter entities.ReportCounter
	s.view("get report counter", func(doc *entities.Document) {
		counter = doc.ReportCounter
	})
	return counter
}

// NextReportNumber advances the daily counter and formats
// {prefix}-{YYYYMMDD}-{NNN}. The counter restarts at 1 on a new local date.
// The number is returned only once the counter has been saved.
func (s *Store) NextReportNumber(ctx context.Context, prefix string) (string, error) {
	var number string
	err := s.apply(ctx, "next report number", func(doc *entities.Document) ([]entities.Section, error) {
		today := s.now().Format(reportDateLayout)
		counter := &doc.ReportCounter
		if counter.Date != today {
			counter.Date = today
			counter.Count = 1
		} else {
			counter.Count++
		}
		number = fmt.Sprintf("%s-%s-%03d", prefix, counter.Date, counter.Count)
		return sections(entities.SectionReportCounter), nil
	})
	if err != nil {
		return "", err
	}
	return number, nil
}

// GetSettings returns a copy of the settings object.
func (s *Store) GetSettings() entities.Attributes {
	var out entities.Attributes
	s.view("get settings", func(doc *entities.Document) {
		out = doc.Settings.Clone()
	})
	return out
}

// GetSetting returns one setting.
func (s *Store) GetSetting(key string) (any, bool) {
	var (
		value any
		ok    bool
	)
	s.view("get setting", func(doc *entities.Document) {
		value, ok = doc.Settings[key]
	})
	return value, ok
}

// UpdateSettings replaces the settings object.
func (s *Store) UpdateSettings(ctx context.Context, settings map[string]any) error {
	return s.apply(ctx, "update settings", func(doc *entities.Document) ([]entities.Section, error) {
		doc.Settings = entities.Attributes(settings).Clone()
		if doc.Settings == nil {
			doc.Settings = entities.Attributes{}
		}
		return sections(entities.SectionSettings), nil
	})
}

// SetSetting stores one setting.
func (s *Store) SetSetting(ctx context.Context, key string, value any) error {
	return s.apply(ctx, "set setting", func(doc *entities.Document) ([]entities.Section, error) {
		doc.Settings[key] = value
		return sections(entities.SectionSettings), nil
	})
}

// GetCustomHolidays returns a copy of the custom holiday table.
func (s *Store) GetCustomHolidays() entities.Attributes {
	var out entities.Attributes
	s.view("get custom holidays", func(doc *entities.Document) {
		out = doc.CustomHolidays.Clone()
	})
	return out
}

// SaveCustomHolidays replaces the custom holiday table.
func (s *Store) SaveCustomHolidays(ctx context.Context, holidays map[string]any) error {
	return s.apply(ctx, "save custom holidays", func(doc *entities.Document) ([]entities.Section, error) {
		doc.CustomHolidays = entities.Attributes(holidays).Clone()
		if doc.CustomHolidays == nil {
			doc.CustomHolidays = entities.Attributes{}
		}
		return sections(entities.SectionCustomHolidays), nil
	})
}

// SaveFlowDiagram stores an arbitrary JSON structure as the process flow
// diagram and stamps flow_diagram_updated.
func (s *Store) SaveFlowDiagram(ctx context.Context, diagram any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(diagram); err != nil {
		return fmt.Errorf("encode flow diagram: %v: %w", err, entities.ErrValidation)
	}
	data := bytes.TrimRight(buf.Bytes(), "\n")
	return s.apply(ctx, "save flow diagram", func(doc *entities.Document) ([]entities.Section, error) {
		doc.ProcessDesign.FlowDiagram = json.RawMessage(data)
		doc.ProcessDesign.FlowDiagramUpdated = entities.TimestampPtr(s.now())
		return sections(entities.SectionFlowDiagram), nil
	})
}

// LoadFlowDiagram returns the stored flow diagram.
func (s *Store) LoadFlowDiagram() (json.RawMessage, bool) {
	var (
		out json.RawMessage
		ok  bool
	)
	s.view("load flow diagram", func(doc *entities.Document) {
		if len(doc.ProcessDesign.FlowDiagram) == 0 || string(doc.ProcessDesign.FlowDiagram) == "null" {
			return
		}
		out = append(json.RawMessage(nil), doc.ProcessDesign.FlowDiagram...)
		ok = true
	})
	return out, ok
}
