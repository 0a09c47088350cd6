package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LocalStorage implements Inbox over a local directory.
type LocalStorage struct {
	basePath    string
	archivePath string
	extensions  map[string]bool
	now         func() time.Time
}

// NewLocalStorage creates both directories when missing. An empty
// ArchiveDir archives into <Dir>/processed.
func NewLocalStorage(cfg Config) (*LocalStorage, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("inbox directory is required")
	}
	archive := cfg.ArchiveDir
	if archive == "" {
		archive = filepath.Join(cfg.Dir, "processed")
	}
	for _, dir := range []string{cfg.Dir, archive} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create inbox directory: %w", err)
		}
	}

	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	accepted := make(map[string]bool, len(exts))
	for _, e := range exts {
		accepted[strings.ToLower(e)] = true
	}

	return &LocalStorage{
		basePath:    cfg.Dir,
		archivePath: archive,
		extensions:  accepted,
		now:         time.Now,
	}, nil
}

// List returns pending files, oldest first. Hidden files, directories and
// unknown extensions are ignored.
func (s *LocalStorage) List(ctx context.Context) ([]FileInfo, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !s.extensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{Name: name, Size: info.Size(), ModTime: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].ModTime.Before(files[j].ModTime)
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

func (s *LocalStorage) Read(ctx context.Context, name string) ([]byte, error) {
	path, err := s.pending(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// Archive moves name into the archive directory. An existing archived file
// with the same name is kept and the new one gets a timestamp prefix.
func (s *LocalStorage) Archive(ctx context.Context, name string) error {
	src, err := s.pending(name)
	if err != nil {
		return err
	}
	dst := filepath.Join(s.archivePath, name)
	if _, err := os.Stat(dst); err == nil {
		dst = filepath.Join(s.archivePath, fmt.Sprintf("%s_%s", s.now().Format("20060102T150405"), name))
	}
	if err := os.Rename(src, dst); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("failed to archive file: %w", err)
	}
	return nil
}

func (s *LocalStorage) pending(name string) (string, error) {
	if sanitizeFilename(name) != name || name == "" {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(s.basePath, name), nil
}

// sanitizeFilename removes unsafe characters from filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
