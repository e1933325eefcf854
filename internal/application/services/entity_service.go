package services

import (
	"context"
	"fmt"

	"github.com/tofu-suite/tofu/internal/domain/entities"
)

// Add appends a record to a generic collection. The id is one more than the
// largest id present, starting at 1.
//
// When the save fails the record is still returned together with an error
// matching entities.ErrPersist: it exists in memory but not on disk.
func (s *Store) Add(ctx context.Context, kind entities.EntityKind, fields map[string]any) (entities.Record, error) {
	if !kind.IsValid() {
		return entities.Record{}, fmt.Errorf("%w: %q", entities.ErrUnknownKind, kind)
	}

	var added entities.Record
	err := s.apply(ctx, "add "+string(kind), func(doc *entities.Document) ([]entities.Section, error) {
		list := doc.Collection(kind)
		rec := entities.Record{ID: nextRecordID(*list), CreatedAt: s.timestamp()}
		rec.Merge(fields)
		*list = append(*list, rec)
		added = rec.Clone()
		return sections(kind.Section()), nil
	})
	return added, err
}

// Update merges fields into the record with the given id. Reserved keys are
// ignored. Notes also get a fresh updated_at.
func (s *Store) Update(ctx context.Context, kind entities.EntityKind, id int, fields map[string]any) error {
	if !kind.IsValid() {
		return fmt.Errorf("%w: %q", entities.ErrUnknownKind, kind)
	}

	return s.apply(ctx, "update "+string(kind), func(doc *entities.Document) ([]entities.Section, error) {
		list := *doc.Collection(kind)
		for i := range list {
			if list[i].ID != id {
				continue
			}
			list[i].Merge(fields)
			if kind == entities.KindNotes {
				list[i].UpdatedAt = entities.TimestampPtr(s.now())
			}
			return sections(kind.Section()), nil
		}
		s.logger.Warnw("Record not found", "kind", kind, "id", id)
		return nil, fmt.Errorf("%s %d: %w", kind, id, entities.ErrRecordNotFound)
	})
}

// Delete removes the record with the given id. A missing id is not an error;
// the collection is saved either way.
func (s *Store) Delete(ctx context.Context, kind entities.EntityKind, id int) error {
	if !kind.IsValid() {
		return fmt.Errorf("%w: %q", entities.ErrUnknownKind, kind)
	}

	return s.apply(ctx, "delete "+string(kind), func(doc *entities.Document) ([]entities.Section, error) {
		list := doc.Collection(kind)
		kept := make([]entities.Record, 0, len(*list))
		for _, rec := range *list {
			if rec.ID != id {
				kept = append(kept, rec)
			}
		}
		if len(kept) == len(*list) {
			s.logger.Debugw("Delete of absent record", "kind", kind, "id", id)
		}
		*list = kept
		return sections(kind.Section()), nil
	})
}

// All returns a copy of a generic collection. Unknown kinds yield nil.
func (s *Store) All(kind entities.EntityKind) []entities.Record {
	if !kind.IsValid() {
		return nil
	}
	var out []entities.Record
	s.view("all "+string(kind), func(doc *entities.Document) {
		list := *doc.Collection(kind)
		out = make([]entities.Record, len(list))
		for i, rec := range list {
			out[i] = rec.Clone()
		}
	})
	return out
}

// Get returns the record with the given id.
func (s *Store) Get(kind entities.EntityKind, id int) (entities.Record, bool) {
	if !kind.IsValid() {
		return entities.Record{}, false
	}
	var (
		out   entities.Record
		found bool
	)
	s.view("get "+string(kind), func(doc *entities.Document) {
		for _, rec := range *doc.Collection(kind) {
			if rec.ID == id {
				out, found = rec.Clone(), true
				return
			}
		}
	})
	return out, found
}

func nextRecordID(list []entities.Record) int {
	next := 1
	for _, rec := range list {
		if rec.ID >= next {
			next = rec.ID + 1
		}
	}
	return next
}

// Todos

func (s *Store) GetTodos() []entities.Record { return s.All(entities.KindTodos) }

func (s *Store) AddTodo(ctx context.Context, fields map[string]any) (entities.Record, error) {
	return s.Add(ctx, entities.KindTodos, fields)
}

func (s *Store) UpdateTodo(ctx context.Context, id int, fields map[string]any) error {
	return s.Update(ctx, entities.KindTodos, id, fields)
}

func (s *Store) DeleteTodo(ctx context.Context, id int) error {
	return s.Delete(ctx, entities.KindTodos, id)
}

// Notes

func (s *Store) GetNotes() []entities.Record { return s.All(entities.KindNotes) }

func (s *Store) AddNote(ctx context.Context, fields map[string]any) (entities.Record, error) {
	return s.Add(ctx, entities.KindNotes, fields)
}

func (s *Store) UpdateNote(ctx context.Context, id int, fields map[string]any) error {
	return s.Update(ctx, entities.KindNotes, id, fields)
}

func (s *Store) DeleteNote(ctx context.Context, id int) error {
	return s.Delete(ctx, entities.KindNotes, id)
}

// Bookmarks

func (s *Store) GetBookmarks() []entities.Record { return s.All(entities.KindBookmarks) }

func (s *Store) AddBookmark(ctx context.Context, fields map[string]any) (entities.Record, error) {
	return s.Add(ctx, entities.KindBookmarks, fields)
}

func (s *Store) UpdateBookmark(ctx context.Context, id int, fields map[string]any) error {
	return s.Update(ctx, entities.KindBookmarks, id, fields)
}

func (s *Store) DeleteBookmark(ctx context.Context, id int) error {
	return s.Delete(ctx, entities.KindBookmarks, id)
}

// Birthdays

func (s *Store) GetBirthdays() []entities.Record { return s.All(entities.KindBirthdays) }

func (s *Store) AddBirthday(ctx context.Context, fields map[string]any) (entities.Record, error) {
	return s.Add(ctx, entities.KindBirthdays, fields)
}

func (s *Store) UpdateBirthday(ctx context.Context, id int, fields map[string]any) error {
	return s.Update(ctx, entities.KindBirthdays, id, fields)
}

func (s *Store) DeleteBirthday(ctx context.Context, id int) error {
	return s.Delete(ctx, entities.KindBirthdays, id)
}

// Holidays

func (s *Store) GetHolidays() []entities.Record { return s.All(entities.KindHolidays) }

func (s *Store) AddHoliday(ctx context.Context, fields map[string]any) (entities.Record, error) {
	return s.Add(ctx, entities.KindHolidays, fields)
}

func (s *Store) UpdateHoliday(ctx context.Context, id int, fields map[string]any) error {
	return s.Update(ctx, entities.KindHolidays, id, fields)
}

func (s *Store) DeleteHoliday(ctx context.Context, id int) error {
	return s.Delete(ctx, entities.KindHolidays, id)
}

// Anniversaries

func (s *Store) GetAnniversaries() []entities.Record { return s.All(entities.KindAnniversaries) }

func (s *Store) AddAnniversary(ctx context.Context, fields map[string]any) (entities.Record, error) {
	return s.Add(ctx, entities.KindAnniversaries, fields)
}

func (s *Store) UpdateAnniversary(ctx context.Context, id int, fields map[string]any) error {
	return s.Update(ctx, entities.KindAnniversaries, id, fields)
}

func (s *Store) DeleteAnniversary(ctx context.Context, id int) error {
	return s.Delete(ctx, entities.KindAnniversaries, id)
}

// Countdowns

func (s *Store) GetCountdowns() []entities.Record { return s.All(entities.KindCountdowns) }

func (s *Store) AddCountdown(ctx context.Context, fields map[string]any) (entities.Record, error) {
	return s.Add(ctx, entities.KindCountdowns, fields)
}

func (s *Store) UpdateCountdown(ctx context.Context, id int, fields map[string]any) error {
	return s.Update(ctx, entities.KindCountdowns, id, fields)
}

func (s *Store) DeleteCountdown(ctx context.Context, id int) error {
	return s.Delete(ctx, entities.KindCountdowns, id)
}

// Custom countdown buttons

func (s *Store) GetCustomCountdownButtons() []entities.Record {
	return s.All(entities.KindCustomCountdownButtons)
}

func (s *Store) AddCustomCountdownButton(ctx context.Context, fields map[string]any) (entities.Record, error) {
	return s.Add(ctx, entities.KindCustomCountdownButtons, fields)
}

func (s *Store) UpdateCustomCountdownButton(ctx context.Context, id int, fields map[string]any) error {
	return s.Update(ctx, entities.KindCustomCountdownButtons, id, fields)
}

func (s *Store) DeleteCustomCountdownButton(ctx context.Context, id int) error {
	return s.Delete(ctx, entities.KindCustomCountdownButtons, id)
}

// Pomodoro sessions

func (s *Store) GetPomodoroSessions() []entities.Record { return s.All(entities.KindPomodoroSessions) }

func (s *Store) AddPomodoroSession(ctx context.Context, fields map[string]any) (entities.Record, error) {
	return s.Add(ctx, entities.KindPomodoroSessions, fields)
}

func (s *Store) DeletePomodoroSession(ctx context.Context, id int) error {
	return s.Delete(ctx, entities.KindPomodoroSessions, id)
}
