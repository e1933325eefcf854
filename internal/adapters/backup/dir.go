// Package backup stores point-in-time copies of the encoded document in a
// local directory or an S3 bucket.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tofu-suite/tofu/internal/ports"
)

// Extension of backup objects.
const Extension = ".json"

// NewName returns a unique, time-ordered backup name.
func NewName(now time.Time) string {
	return fmt.Sprintf("tofu_data_%s_%s%s", now.Format("20060102-150405"), uuid.NewString()[:8], Extension)
}

// DirStore writes backups as files in one directory.
type DirStore struct {
	dir string
}

// NewDirStore creates a store rooted at dir. The directory is created on the
// first Put.
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

var _ ports.BackupRepository = (*DirStore)(nil)

func (d *DirStore) Put(ctx context.Context, name string, data []byte) (ports.BackupInfo, error) {
	if err := ctx.Err(); err != nil {
		return ports.BackupInfo{}, err
	}
	if name == "" || filepath.Base(name) != name {
		return ports.BackupInfo{}, fmt.Errorf("invalid backup name %q", name)
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return ports.BackupInfo{}, fmt.Errorf("create backup directory: %w", err)
	}

	path := filepath.Join(d.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return ports.BackupInfo{}, fmt.Errorf("create backup %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return ports.BackupInfo{}, fmt.Errorf("write backup %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return ports.BackupInfo{}, fmt.Errorf("close backup %s: %w", name, err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return ports.BackupInfo{}, err
	}
	return ports.BackupInfo{Name: name, Location: path, Size: st.Size(), CreatedAt: st.ModTime()}, nil
}

func (d *DirStore) List(ctx context.Context) ([]ports.BackupInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list backups: %w", err)
	}

	var infos []ports.BackupInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Extension) {
			continue
		}
		st, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, ports.BackupInfo{
			Name:      e.Name(),
			Location:  filepath.Join(d.dir, e.Name()),
			Size:      st.Size(),
			CreatedAt: st.ModTime(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}
