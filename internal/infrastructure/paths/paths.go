// Package paths locates the data file when none is configured.
package paths

import (
	"os"
	"path/filepath"
)

const (
	// AppDir is the per-user directory name.
	AppDir = "Tofu"
	// DataFile is the document file name.
	DataFile = "tofu_data.json"
)

// Resolver finds the default data file. The function fields exist for
// tests; the zero value is not usable, call NewResolver.
type Resolver struct {
	UserConfigDir func() (string, error)
	Getwd         func() (string, error)
	MkdirAll      func(path string, perm os.FileMode) error
}

// NewResolver returns a resolver backed by the os package.
func NewResolver() *Resolver {
	return &Resolver{
		UserConfigDir: os.UserConfigDir,
		Getwd:         os.Getwd,
		MkdirAll:      os.MkdirAll,
	}
}

// ResolveDataFile returns <user config dir>/Tofu/tofu_data.json, creating
// the directory. When that fails it falls back to the working directory and
// finally to a relative path. It never fails.
func (r *Resolver) ResolveDataFile() string {
	if base, err := r.UserConfigDir(); err == nil && base != "" {
		dir := filepath.Join(base, AppDir)
		if err := r.MkdirAll(dir, 0o755); err == nil {
			return filepath.Join(dir, DataFile)
		}
	}
	if wd, err := r.Getwd(); err == nil && wd != "" {
		return filepath.Join(wd, DataFile)
	}
	return filepath.Join(".", DataFile)
}

// ResolveDataFile resolves with the os-backed resolver.
func ResolveDataFile() string {
	return NewResolver().ResolveDataFile()
}
