package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tofu-suite/tofu/internal/domain/entities"
	"github.com/tofu-suite/tofu/internal/ports"
)

// SQLRepository stores the document as one row of the documents table. It
// works with any driver sqlx knows the bind type of; Tofu uses sqlite and
// postgres.
type SQLRepository struct {
	db   *sqlx.DB
	name string
}

// NewSQLRepository creates a repository for the document called name
func NewSQLRepository(db *sqlx.DB, name string) *SQLRepository {
	return &SQLRepository{db: db, name: name}
}

var _ ports.DocumentRepository = (*SQLRepository)(nil)

func (r *SQLRepository) Location() string {
	return fmt.Sprintf("%s:documents/%s", r.db.DriverName(), r.name)
}

func (r *SQLRepository) Load(ctx context.Context) ([]byte, error) {
	query := r.db.Rebind(`SELECT payload FROM documents WHERE name = ?`)

	var payload string
	err := r.db.GetContext(ctx, &payload, query, r.name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	return []byte(payload), nil
}

func (r *SQLRepository) Save(ctx context.Context, data []byte) error {
	query := r.db.Rebind(`
		INSERT INTO documents (name, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`)

	updatedAt := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := r.db.ExecContext(ctx, query, r.name, string(data), updatedAt); err != nil {
		return fmt.Errorf("save document: %w", err)
	}

	return nil
}
