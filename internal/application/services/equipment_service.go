package services

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tofu-suite/tofu/internal/domain/entities"
)

// randomToken returns eight upper-case hex characters.
func randomToken() string {
	id := uuid.New()
	return strings.ToUpper(hex.EncodeToString(id[:4]))
}

// GetEquipmentData returns a copy of the equipment list.
func (s *Store) GetEquipmentData() []entities.Equipment {
	var out []entities.Equipment
	s.view("get equipment", func(doc *entities.Document) {
		list := doc.ProcessDesign.Equipment
		out = make([]entities.Equipment, len(list))
		for i, eq := range list {
			out[i] = eq.Clone()
		}
	})
	return out
}

// GetEquipmentByID returns the first item with the given id.
func (s *Store) GetEquipmentByID(id string) (entities.Equipment, bool) {
	return s.findEquipment(func(eq entities.Equipment) bool { return eq.EquipmentID == id })
}

// GetEquipmentByUniqueCode returns the first item with the given unique code.
func (s *Store) GetEquipmentByUniqueCode(code string) (entities.Equipment, bool) {
	if code == "" {
		return entities.Equipment{}, false
	}
	return s.findEquipment(func(eq entities.Equipment) bool { return eq.UniqueCode == code })
}

func (s *Store) findEquipment(match func(entities.Equipment) bool) (entities.Equipment, bool) {
	var (
		out   entities.Equipment
		found bool
	)
	s.view("find equipment", func(doc *entities.Document) {
		for _, eq := range doc.ProcessDesign.Equipment {
			if match(eq) {
				out, found = eq.Clone(), true
				return
			}
		}
	})
	return out, found
}

// AddEquipment stores an item, generating an id when none is given. An item
// with an existing id replaces the stored one at its position and keeps its
// created_at.
func (s *Store) AddEquipment(ctx context.Context, fields map[string]any) (entities.Equipment, error) {
	var stored entities.Equipment
	err := s.apply(ctx, "add equipment", func(doc *entities.Document) ([]entities.Section, error) {
		eq := entities.NewEquipment(fields)
		now := s.timestamp()
		eq.CreatedAt, eq.UpdatedAt = now, now

		list := doc.ProcessDesign.Equipment
		if eq.EquipmentID == "" {
			id, err := s.newEquipmentID(list)
			if err != nil {
				return nil, err
			}
			eq.EquipmentID = id
		}

		replaced := false
		for i := range list {
			if list[i].EquipmentID == eq.EquipmentID {
				eq.CreatedAt = list[i].CreatedAt
				list[i] = eq
				replaced = true
				break
			}
		}
		if !replaced {
			doc.ProcessDesign.Equipment = append(list, eq)
		}

		s.logger.Infow("Equipment stored", "equipment_id", eq.EquipmentID, "replaced", replaced)
		stored = eq.Clone()
		return sections(entities.SectionEquipment), nil
	})
	return stored, err
}

// UpdateEquipment merges fields into an existing item.
func (s *Store) UpdateEquipment(ctx context.Context, id string, fields map[string]any) error {
	return s.apply(ctx, "update equipment", func(doc *entities.Document) ([]entities.Section, error) {
		list := doc.ProcessDesign.Equipment
		for i := range list {
			if list[i].EquipmentID != id {
				continue
			}
			list[i].Merge(fields)
			list[i].UpdatedAt = s.timestamp()
			return sections(entities.SectionEquipment), nil
		}
		s.logger.Warnw("Equipment not found", "equipment_id", id)
		return nil, fmt.Errorf("%q: %w", id, entities.ErrEquipmentNotFound)
	})
}

// DeleteEquipment removes the first item with the given id.
func (s *Store) DeleteEquipment(ctx context.Context, id string) error {
	return s.apply(ctx, "delete equipment", func(doc *entities.Document) ([]entities.Section, error) {
		list := doc.ProcessDesign.Equipment
		for i := range list {
			if list[i].EquipmentID == id {
				doc.ProcessDesign.Equipment = append(list[:i:i], list[i+1:]...)
				return sections(entities.SectionEquipment), nil
			}
		}
		s.logger.Warnw("Equipment not found", "equipment_id", id)
		return nil, fmt.Errorf("%q: %w", id, entities.ErrEquipmentNotFound)
	})
}

// maxKeyAttempts bounds the search for an unused generated id.
const maxKeyAttempts = 100

func (s *Store) newEquipmentID(list []entities.Equipment) (string, error) {
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		id := entities.EquipmentIDPrefix + s.newToken()
		taken := false
		for _, eq := range list {
			if eq.EquipmentID == id {
				taken = true
				break
			}
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("generate equipment id: no free id after %d attempts: %w", maxKeyAttempts, entities.ErrInternal)
}
