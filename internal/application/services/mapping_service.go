package services

import (
	"context"

	"github.com/tofu-suite/tofu/internal/domain/entities"
)

// GetEquipmentNameMapping returns a copy of the Chinese to English name map.
func (s *Store) GetEquipmentNameMapping() map[string]string {
	var out map[string]string
	s.view("get equipment name mapping", func(doc *entities.Document) {
		out = make(map[string]string, len(doc.EquipmentNameMapping))
		for k, v := range doc.EquipmentNameMapping {
			out[k] = v
		}
	})
	return out
}

// AddEquipmentNameMapping sets the translation for cn, replacing any other.
func (s *Store) AddEquipmentNameMapping(ctx context.Context, cn, en string) error {
	return s.apply(ctx, "add equipment name mapping", func(doc *entities.Document) ([]entities.Section, error) {
		doc.EquipmentNameMapping[cn] = en
		return sections(entities.SectionEquipmentNameMapping), nil
	})
}

// RemoveEquipmentNameMapping drops the translation for cn. Nothing is saved
// when there is none.
func (s *Store) RemoveEquipmentNameMapping(ctx context.Context, cn string) error {
	return s.apply(ctx, "remove equipment name mapping", func(doc *entities.Document) ([]entities.Section, error) {
		if _, ok := doc.EquipmentNameMapping[cn]; !ok {
			return nil, nil
		}
		delete(doc.EquipmentNameMapping, cn)
		return sections(entities.SectionEquipmentNameMapping), nil
	})
}

// LookupEquipmentName returns the translation for cn, or "".
func (s *Store) LookupEquipmentName(cn string) string {
	var en string
	s.view("lookup equipment name", func(doc *entities.Document) {
		en = doc.EquipmentNameMapping[cn]
	})
	return en
}
