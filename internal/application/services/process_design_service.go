package services

import (
	"context"
	"fmt"

	"github.com/tofu-suite/tofu/internal/domain/entities"
)

// DesignCollection describes a keyed list under process_design.
type DesignCollection struct {
	Section entities.Section
	Key     string
	Prefix  string
	list    func(pd *entities.ProcessDesign) *[]entities.Attributes
}

// Keyed process-design collections.
var (
	Materials = DesignCollection{
		Section: entities.SectionMaterials, Key: "material_id", Prefix: "MAT_",
		list: func(pd *entities.ProcessDesign) *[]entities.Attributes { return &pd.Materials },
	}
	MSDSDocuments = DesignCollection{
		Section: entities.SectionMSDSDocuments, Key: "msds_id", Prefix: "MSDS_",
		list: func(pd *entities.ProcessDesign) *[]entities.Attributes { return &pd.MSDSDocuments },
	}
	Projects = DesignCollection{
		Section: entities.SectionProjects, Key: "project_id", Prefix: "PRJ_",
		list: func(pd *entities.ProcessDesign) *[]entities.Attributes { return &pd.Projects },
	}
	Streams = DesignCollection{
		Section: entities.SectionStreams, Key: "stream_id", Prefix: "STR_",
		list: func(pd *entities.ProcessDesign) *[]entities.Attributes { return &pd.Streams },
	}
)

// DesignCollections lists the keyed collections by section name.
var DesignCollections = map[entities.Section]DesignCollection{
	entities.SectionMaterials:     Materials,
	entities.SectionMSDSDocuments: MSDSDocuments,
	entities.SectionProjects:      Projects,
	entities.SectionStreams:       Streams,
}

// DesignItems returns a copy of a keyed collection.
func (s *Store) DesignItems(c DesignCollection) []entities.Attributes {
	var out []entities.Attributes
	s.view("get "+string(c.Section), func(doc *entities.Document) {
		list := *c.list(&doc.ProcessDesign)
		out = make([]entities.Attributes, len(list))
		for i, item := range list {
			out[i] = item.Clone()
		}
	})
	return out
}

// DesignItem returns the first item whose key equals id.
func (s *Store) DesignItem(c DesignCollection, id string) (entities.Attributes, bool) {
	var (
		out   entities.Attributes
		found bool
	)
	s.view("get "+string(c.Section), func(doc *entities.Document) {
		list := *c.list(&doc.ProcessDesign)
		if i := indexByKey(list, c.Key, id); i >= 0 {
			out, found = list[i].Clone(), true
		}
	})
	return out, found
}

// AddDesignItem upserts by key, generating one when absent. A replaced item
// keeps its position and created_at.
func (s *Store) AddDesignItem(ctx context.Context, c DesignCollection, fields map[string]any) (entities.Attributes, error) {
	var stored entities.Attributes
	err := s.apply(ctx, "add "+string(c.Section), func(doc *entities.Document) ([]entities.Section, error) {
		list := c.list(&doc.ProcessDesign)
		now := s.timestamp().String()

		item := entities.Attributes(fields).Clone()
		if item == nil {
			item = entities.Attributes{}
		}
		id := item.String(c.Key)
		if id == "" {
			key, err := s.newDesignKey(*list, c)
			if err != nil {
				return nil, err
			}
			id = key
			item[c.Key] = id
		}
		item[entities.FieldCreatedAt] = now
		item[entities.FieldUpdatedAt] = now

		if i := indexByKey(*list, c.Key, id); i >= 0 {
			if created, ok := (*list)[i][entities.FieldCreatedAt]; ok {
				item[entities.FieldCreatedAt] = created
			}
			(*list)[i] = item
		} else {
			*list = append(*list, item)
		}
		stored = item.Clone()
		return sections(c.Section), nil
	})
	return stored, err
}

// UpdateDesignItem merges fields into an existing item. The key and
// created_at cannot be changed.
func (s *Store) UpdateDesignItem(ctx context.Context, c DesignCollection, id string, fields map[string]any) error {
	return s.apply(ctx, "update "+string(c.Section), func(doc *entities.Document) ([]entities.Section, error) {
		list := *c.list(&doc.ProcessDesign)
		i := indexByKey(list, c.Key, id)
		if i < 0 {
			s.logger.Warnw("Process design item not found", "section", c.Section, "id", id)
			return nil, fmt.Errorf("%s %q: %w", c.Section, id, entities.ErrRecordNotFound)
		}
		for k, v := range fields {
			if k == c.Key || k == entities.FieldCreatedAt {
				continue
			}
			list[i][k] = v
		}
		list[i][entities.FieldUpdatedAt] = s.timestamp().String()
		return sections(c.Section), nil
	})
}

// DeleteDesignItem removes the first item whose key equals id.
func (s *Store) DeleteDesignItem(ctx context.Context, c DesignCollection, id string) error {
	return s.apply(ctx, "delete "+string(c.Section), func(doc *entities.Document) ([]entities.Section, error) {
		list := c.list(&doc.ProcessDesign)
		i := indexByKey(*list, c.Key, id)
		if i < 0 {
			s.logger.Warnw("Process design item not found", "section", c.Section, "id", id)
			return nil, fmt.Errorf("%s %q: %w", c.Section, id, entities.ErrRecordNotFound)
		}
		*list = append((*list)[:i:i], (*list)[i+1:]...)
		return sections(c.Section), nil
	})
}

func (s *Store) newDesignKey(list []entities.Attributes, c DesignCollection) (string, error) {
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		id := c.Prefix + s.newToken()
		if indexByKey(list, c.Key, id) < 0 {
			return id, nil
		}
	}
	return "", fmt.Errorf("generate %s key: no free key after %d attempts: %w", c.Section, maxKeyAttempts, entities.ErrInternal)
}

func indexByKey(list []entities.Attributes, key, id string) int {
	for i, item := range list {
		if item.String(key) == id {
			return i
		}
	}
	return -1
}

// Materials

func (s *Store) GetMaterials() []entities.Attributes { return s.DesignItems(Materials) }

func (s *Store) GetMaterial(id string) (entities.Attributes, bool) { return s.DesignItem(Materials, id) }

func (s *Store) AddMaterial(ctx context.Context, fields map[string]any) (entities.Attributes, error) {
	return s.AddDesignItem(ctx, Materials, fields)
}

func (s *Store) UpdateMaterial(ctx context.Context, id string, fields map[string]any) error {
	return s.UpdateDesignItem(ctx, Materials, id, fields)
}

func (s *Store) DeleteMaterial(ctx context.Context, id string) error {
	return s.DeleteDesignItem(ctx, Materials, id)
}

// MSDS documents

func (s *Store) GetMSDSDocuments() []entities.Attributes { return s.DesignItems(MSDSDocuments) }

func (s *Store) GetMSDSDocument(id string) (entities.Attributes, bool) {
	return s.DesignItem(MSDSDocuments, id)
}

func (s *Store) AddMSDSDocument(ctx context.Context, fields map[string]any) (entities.Attributes, error) {
	return s.AddDesignItem(ctx, MSDSDocuments, fields)
}

func (s *Store) UpdateMSDSDocument(ctx context.Context, id string, fields map[string]any) error {
	return s.UpdateDesignItem(ctx, MSDSDocuments, id, fields)
}

func (s *Store) DeleteMSDSDocument(ctx context.Context, id string) error {
	return s.DeleteDesignItem(ctx, MSDSDocuments, id)
}

// Projects

func (s *Store) GetProjects() []entities.Attributes { return s.DesignItems(Projects) }

func (s *Store) AddProject(ctx context.Context, fields map[string]any) (entities.Attributes, error) {
	return s.AddDesignItem(ctx, Projects, fields)
}

func (s *Store) UpdateProject(ctx context.Context, id string, fields map[string]any) error {
	return s.UpdateDesignItem(ctx, Projects, id, fields)
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.DeleteDesignItem(ctx, Projects, id)
}

// Streams

func (s *Store) GetStreams() []entities.Attributes { return s.DesignItems(Streams) }

func (s *Store) AddStream(ctx context.Context, fields map[string]any) (entities.Attributes, error) {
	return s.AddDesignItem(ctx, Streams, fields)
}

func (s *Store) UpdateStream(ctx context.Context, id string, fields map[string]any) error {
	return s.UpdateDesignItem(ctx, Streams, id, fields)
}

func (s *Store) DeleteStream(ctx context.Context, id string) error {
	return s.DeleteDesignItem(ctx, Streams, id)
}
