package ports

import (
	"context"
	"time"

	"github.com/tofu-suite/tofu/internal/domain/entities"
)

// DocumentRepository stores the encoded document. Implementations return
// entities.ErrDocumentNotFound from Load when nothing has been saved yet.
type DocumentRepository interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	// Location describes where the document lives, for logs.
	Location() string
}

// BackupRepository keeps point-in-time copies of the encoded document.
type BackupRepository interface {
	Put(ctx context.Context, name string, data []byte) (BackupInfo, error)
	List(ctx context.Context) ([]BackupInfo, error)
}

// BackupInfo describes a stored backup.
type BackupInfo struct {
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// MetricsRecorder receives store instrumentation.
type MetricsRecorder interface {
	ObserveSave(duration time.Duration, err error)
	ObserveLoad(outcome string)
	IncNotification(section entities.Section)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) ObserveSave(time.Duration, error) {}
func (NopMetrics) ObserveLoad(string) {}
func (NopMetrics) IncNotification(entities.Section) {}
