// Package fs implements ports.Storage with one file per record.
package fs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bft-labs/courier/internal/domain"
)

const (
	recordExt = ".json"
	tmpExt    = ".tmp"
)

// Storage keeps each record in its own file under dir. Record names are
// base64url encoded so any name maps to a safe file name.
type Storage struct {
	dir string
}

// NewStorage creates a Storage rooted at dir. The directory is created on
// first write.
func NewStorage(dir string) *Storage {
	return &Storage{dir: dir}
}

// Dir returns the root directory.
func (s *Storage) Dir() string {
	return s.dir
}

func (s *Storage) path(name string) string {
	return filepath.Join(s.dir, base64.RawURLEncoding.EncodeToString([]byte(name))+recordExt)
}

// Get reads a record. Returns domain.ErrNotFound if the file does not exist.
func (s *Storage) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("read record %s: %w", name, err)
	}
	return data, nil
}

// Set writes a record atomically: the data goes to a temp file which is
// synced and then renamed over the target.
func (s *Storage) Set(ctx context.Context, name string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}

	path := s.path(name)
	tmp := path + tmpExt

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("write record %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write record %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync record %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close record %s: %w", name, err)
	}

	return os.Rename(tmp, path)
}

// Remove deletes a record. A missing file is not an error.
func (s *Storage) Remove(ctx context.Context, name string) error {
	err := os.Remove(s.path(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove record %s: %w", name, err)
	}
	return nil
}

// ListKeys returns every record name, sorted. Leftover temp files and
// foreign files are skipped.
func (s *Storage) ListKeys(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list records: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), recordExt) {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(e.Name(), recordExt))
		if err != nil {
			continue
		}
		names = append(names, string(raw))
	}
	sort.Strings(names)
	return names, nil
}
