package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/tofu-suite/tofu/internal/domain/entities"
)

const noteFolderField = "folder"

// GetFolders returns folder names in stored order.
func (s *Store) GetFolders() []string {
	var names []string
	s.view("get folders", func(doc *entities.Document) {
		names = doc.FolderNames()
	})
	return names
}

// AddFolder appends a folder. An existing name yields ErrFolderExists and
// changes nothing.
func (s *Store) AddFolder(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("folder name is empty: %w", entities.ErrValidation)
	}

	return s.apply(ctx, "add folder", func(doc *entities.Document) ([]entities.Section, error) {
		if doc.HasFolder(name) {
			return nil, fmt.Errorf("%q: %w", name, entities.ErrFolderExists)
		}
		doc.Folders = append(doc.Folders, entities.Folder{Name: name, CreatedAt: entities.TimestampPtr(s.now())})
		return sections(entities.SectionFolders), nil
	})
}

// DeleteFolder moves the folder's notes to the uncategorized bucket and drops
// the folder. Deleting an unknown folder still rewrites both sections.
func (s *Store) DeleteFolder(ctx context.Context, name string) error {
	return s.apply(ctx, "delete folder", func(doc *entities.Document) ([]entities.Section, error) {
		moved := moveNotes(doc.Notes, name, entities.UncategorizedFolder)

		kept := make([]entities.Folder, 0, len(doc.Folders))
		for _, f := range doc.Folders {
			if f.Name != name {
				kept = append(kept, f)
			}
		}
		doc.Folders = kept

		s.logger.Infow("Folder deleted", "folder", name, "notes_moved", moved)
		return sections(entities.SectionFolders, entities.SectionNotes), nil
	})
}

// RenameFolder renames a folder and every note that refers to it.
func (s *Store) RenameFolder(ctx context.Context, oldName, newName string) error {
	if strings.TrimSpace(newName) == "" {
		return fmt.Errorf("folder name is empty: %w", entities.ErrValidation)
	}

	return s.apply(ctx, "rename folder", func(doc *entities.Document) ([]entities.Section, error) {
		if newName != oldName && doc.HasFolder(newName) {
			return nil, fmt.Errorf("%q: %w", newName, entities.ErrFolderExists)
		}
		idx := -1
		for i, f := range doc.Folders {
			if f.Name == oldName {
				idx = i
				break
			}
		}
		if idx < 0 {
			s.logger.Warnw("Folder not found", "folder", oldName)
			return nil, fmt.Errorf("%q: %w", oldName, entities.ErrFolderNotFound)
		}

		doc.Folders[idx].Name = newName
		moved := moveNotes(doc.Notes, oldName, newName)

		s.logger.Infow("Folder renamed", "from", oldName, "to", newName, "notes_moved", moved)
		return sections(entities.SectionFolders, entities.SectionNotes), nil
	})
}

func moveNotes(notes []entities.Record, from, to string) int {
	moved := 0
	for i := range notes {
		if notes[i].Str(noteFolderField) == from {
			notes[i].Merge(map[string]any{noteFolderField: to})
			moved++
		}
	}
	return moved
}
