package services

import (
	"github.com/tofu-suite/tofu/internal/domain/codec"
	"github.com/tofu-suite/tofu/internal/domain/entities"
)

// nestedSections live inside process_design.
var nestedSections = map[entities.Section]bool{
	entities.SectionEquipment:     true,
	entities.SectionMaterials:     true,
	entities.SectionMSDSDocuments: true,
	entities.SectionProjects:      true,
	entities.SectionStreams:       true,
	entities.SectionFlowDiagram:   true,
}

// Section returns the generic JSON value of a top-level section, or of a
// process-design collection. Unknown top-level sections kept from a newer
// version are served too.
func (s *Store) Section(name string) (any, bool, error) {
	snapshot, err := s.Snapshot()
	if err != nil {
		return nil, false, err
	}
	raw, err := codec.DecodeRaw(snapshot)
	if err != nil {
		return nil, false, err
	}

	if value, ok := raw[name]; ok {
		return value, true, nil
	}
	if nestedSections[entities.Section(name)] {
		if design, ok := raw[string(entities.SectionProcessDesign)].(map[string]any); ok {
			value, ok := design[name]
			return value, ok, nil
		}
	}
	return nil, false, nil
}
