package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/tofu-suite/tofu/internal/application/events"
	"github.com/tofu-suite/tofu/internal/application/migration"
	"github.com/tofu-suite/tofu/internal/domain/codec"
	"github.com/tofu-suite/tofu/internal/domain/entities"
	"github.com/tofu-suite/tofu/internal/infrastructure/logger"
	"github.com/tofu-suite/tofu/internal/ports"
)

// Load outcomes reported to the metrics recorder.
const (
	LoadOutcomeLoaded  = "loaded"
	LoadOutcomeNew     = "new"
	LoadOutcomeCorrupt = "corrupt"
	LoadOutcomeError   = "error"
)

// Store owns the in-memory document and is the only writer of the backing
// repository. Every mutation is applied in memory, saved, and then announced
// on the bus. A failed save keeps the in-memory change and suppresses the
// notification.
type Store struct {
	repo     ports.DocumentRepository
	logger   *logger.Logger
	bus      *events.Bus
	metrics  ports.MetricsRecorder
	migrator *migration.Migrator
	now      func() time.Time
	newToken func() string

	mu         sync.Mutex
	doc        *entities.Document
	batchDepth int
	pending    []entities.Section
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now. Report numbers and timestamps use it.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithBus publishes change notifications on bus.
func WithBus(bus *events.Bus) Option {
	return func(s *Store) { s.bus = bus }
}

// WithMetrics records load, save and notification metrics.
func WithMetrics(m ports.MetricsRecorder) Option {
	return func(s *Store) { s.metrics = m }
}

// WithMigrator replaces the standard schema migrator.
func WithMigrator(m *migration.Migrator) Option {
	return func(s *Store) { s.migrator = m }
}

// WithTokenSource replaces the random token used for generated keys.
func WithTokenSource(next func() string) Option {
	return func(s *Store) { s.newToken = next }
}

// NewStore creates a store over repo. The document is loaded by Init, or
// lazily by the first operation.
func NewStore(repo ports.DocumentRepository, log *logger.Logger, opts ...Option) *Store {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Store{
		repo:     repo,
		logger:   log.WithComponent("store"),
		metrics:  ports.NopMetrics{},
		migrator: migration.New(),
		now:      time.Now,
		newToken: randomToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = events.NewBus(log)
	}
	return s
}

// Bus returns the change notifier.
func (s *Store) Bus() *events.Bus { return s.bus }

// Location describes the backing repository.
func (s *Store) Location() string { return s.repo.Location() }

// Init loads, migrates and merges the stored document. A document that did
// not exist yet is written immediately. Calling Init again does nothing.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initLocked(ctx)
}

func (s *Store) initLocked(ctx context.Context) error {
	if s.doc != nil {
		return nil
	}
	doc, isNew := s.load(ctx)
	s.doc = doc
	if !isNew {
		return nil
	}
	if err := s.saveLocked(ctx, "init"); err != nil {
		// The document stays usable in memory; the next mutation retries.
		s.logger.Warnw("Could not write new document", "location", s.repo.Location(), "error", err)
	}
	return nil
}

// load never fails: anything unreadable yields the default document.
func (s *Store) load(ctx context.Context) (*entities.Document, bool) {
	location := s.repo.Location()

	// A cancelled caller must not turn a readable document into defaults that
	// the next mutation would write over it.
	data, err := s.repo.Load(context.WithoutCancel(ctx))
	if errors.Is(err, entities.ErrDocumentNotFound) {
		s.logger.Infow("No stored document, starting from defaults", "location", location)
		s.metrics.ObserveLoad(LoadOutcomeNew)
		return entities.NewDefaultDocument(s.now()), true
	}
	if err != nil {
		s.logger.Warnw("Failed to read document, using defaults", "location", location, "error", err)
		s.metrics.ObserveLoad(LoadOutcomeError)
		return entities.NewDefaultDocument(s.now()), false
	}

	raw, err := codec.DecodeRaw(data)
	if err != nil {
		s.logger.Warnw("Stored document is corrupt, using defaults", "location", location, "error", err)
		s.metrics.ObserveLoad(LoadOutcomeCorrupt)
		return entities.NewDefaultDocument(s.now()), false
	}

	report := s.migrator.Run(raw)
	if report.Changed() {
		s.logger.Infow("Migrated stored document", "location", location, "steps", report.Applied)
	}

	defaults, err := codec.ToRaw(entities.NewDefaultDocument(s.now()))
	if err != nil {
		s.logger.Errorw("Failed to build default document", "error", err)
	} else if added := migration.MergeDefaults(raw, defaults); len(added) > 0 {
		s.logger.Debugw("Added missing sections", "sections", added)
	}

	doc, err := codec.DecodeDocument(raw)
	if err != nil {
		s.logger.Warnw("Stored document does not match the schema, using defaults", "location", location, "error", err)
		s.metrics.ObserveLoad(LoadOutcomeCorrupt)
		return entities.NewDefaultDocument(s.now()), false
	}
	if len(doc.Repairs) > 0 {
		s.logger.Warnw("Dropped unreadable values from stored document", "location", location, "values", doc.Repairs)
	}

	s.metrics.ObserveLoad(LoadOutcomeLoaded)
	return doc, false
}

// Flush writes the current document regardless of pending changes.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.initLocked(ctx); err != nil {
		return err
	}
	return s.saveLocked(ctx, "flush")
}

// Snapshot returns the encoded document as it would be written.
func (s *Store) Snapshot() ([]byte, error) {
	var (
		data []byte
		err  error
	)
	s.view("snapshot", func(doc *entities.Document) {
		data, err = codec.Encode(doc)
	})
	if data == nil && err == nil {
		err = fmt.Errorf("snapshot: %w", entities.ErrInternal)
	}
	return data, err
}

// Batch runs fn with per-operation saves suspended. On return, panic
// included, the document is saved once and every section touched inside is
// announced once.
func (s *Store) Batch(ctx context.Context, fn func() error) (err error) {
	s.mu.Lock()
	if initErr := s.initLocked(ctx); initErr != nil {
		s.mu.Unlock()
		return initErr
	}
	s.batchDepth++
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("Recovered panic in batch", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("batch: %w", entities.ErrInternal)
		}

		s.mu.Lock()
		s.batchDepth--
		if s.batchDepth > 0 {
			s.mu.Unlock()
			return
		}
		sections := s.pending
		s.pending = nil
		var saveErr error
		if len(sections) > 0 {
			saveErr = s.saveLocked(ctx, "batch")
		}
		s.mu.Unlock()

		if saveErr != nil {
			err = errors.Join(err, saveErr)
			return
		}
		s.publish(sections)
	}()

	return fn()
}

// mutation changes doc and returns the sections it touched. Returning no
// sections means nothing changed and nothing is saved.
type mutation func(doc *entities.Document) ([]entities.Section, error)

// apply runs fn under the lock, saves and publishes.
func (s *Store) apply(ctx context.Context, op string, fn mutation) error {
	s.mu.Lock()
	if err := s.initLocked(ctx); err != nil {
		s.mu.Unlock()
		return err
	}

	sections, err := s.run(op, fn)
	if err != nil || len(sections) == 0 {
		s.mu.Unlock()
		return err
	}

	if s.batchDepth > 0 {
		for _, section := range sections {
			s.pending = appendSection(s.pending, section)
		}
		s.mu.Unlock()
		return nil
	}

	err = s.saveLocked(ctx, op)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish(sections)
	return nil
}

func (s *Store) run(op string, fn mutation) (sections []entities.Section, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("Recovered panic in store operation", "op", op, "panic", r, "stack", string(debug.Stack()))
			sections, err = nil, fmt.Errorf("%s: %w", op, entities.ErrInternal)
		}
	}()
	return fn(s.doc)
}

// view runs fn under the lock for reads. A panic is logged and fn's results
// are left at their zero values.
func (s *Store) view(op string, fn func(doc *entities.Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("Recovered panic in store read", "op", op, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	_ = s.initLocked(context.Background())
	fn(s.doc)
}

func (s *Store) saveLocked(ctx context.Context, op string) error {
	start := time.Now()
	data, err := codec.Encode(s.doc)
	if err == nil {
		err = s.repo.Save(context.WithoutCancel(ctx), data)
	}
	duration := time.Since(start)

	s.metrics.ObserveSave(duration, err)
	s.logger.LogDocumentSave(op, s.repo.Location(), float64(duration.Microseconds())/1000, err)

	if err != nil {
		return &entities.PersistError{Op: op, Err: err}
	}
	return nil
}

func (s *Store) publish(sections []entities.Section) {
	for _, section := range sections {
		s.metrics.IncNotification(section)
	}
	s.bus.Publish(sections...)
}

func (s *Store) timestamp() entities.Timestamp {
	return entities.NewTimestamp(s.now())
}

func sections(list ...entities.Section) []entities.Section { return list }

func appendSection(list []entities.Section, section entities.Section) []entities.Section {
	for _, existing := range list {
		if existing == section {
			return list
		}
	}
	return append(list, section)
}
