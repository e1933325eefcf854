package services

import (
	"context"
	"sync"

	"github.com/tofu-suite/tofu/internal/infrastructure/logger"
	"github.com/tofu-suite/tofu/internal/ports"
)

// RepositoryFactory opens the repository for a resolved data path.
type RepositoryFactory func(path string) (ports.DocumentRepository, error)

// PathResolver supplies the data path when none is given.
type PathResolver func() string

// Manager hands out the one Store of a composition root. The first call to
// Instance builds and initialises it; later calls return the same Store.
type Manager struct {
	open    RepositoryFactory
	resolve PathResolver
	logger  *logger.Logger
	opts    []Option

	once  sync.Once
	store *Store
	err   error
}

// NewManager creates a manager. opts are applied to the Store it builds.
func NewManager(open RepositoryFactory, resolve PathResolver, log *logger.Logger, opts ...Option) *Manager {
	return &Manager{open: open, resolve: resolve, logger: log, opts: opts}
}

// Instance returns the store, creating it on first use. path is only
// consulted on that first call; an empty path is resolved.
func (m *Manager) Instance(ctx context.Context, path string) (*Store, error) {
	m.once.Do(func() {
		if path == "" && m.resolve != nil {
			path = m.resolve()
		}
		repo, err := m.open(path)
		if err != nil {
			m.err = err
			return
		}
		store := NewStore(repo, m.logger, m.opts...)
		if err := store.Init(ctx); err != nil {
			m.err = err
			return
		}
		m.store = store
	})
	return m.store, m.err
}
