package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInbox(t *testing.T) (*LocalStorage, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewLocalStorage(Config{Dir: dir})
	require.NoError(t, err)
	return s, dir
}

func writeFile(t *testing.T, dir, name string, mod time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(name), 0644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestLocalStorage_List(t *testing.T) {
	s, dir := newInbox(t)
	base := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	writeFile(t, dir, "junio.csv", base.Add(time.Hour))
	writeFile(t, dir, "mayo.XLSX", base)
	writeFile(t, dir, "notas.pdf", base)
	writeFile(t, dir, ".oculto.csv", base)

	files, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "mayo.XLSX", files[0].Name)
	assert.Equal(t, "junio.csv", files[1].Name)
	assert.Equal(t, int64(len("junio.csv")), files[1].Size)
}

func TestLocalStorage_ReadAndArchive(t *testing.T) {
	s, dir := newInbox(t)
	ctx := context.Background()
	writeFile(t, dir, "junio.csv", time.Now())

	data, err := s.Read(ctx, "junio.csv")
	require.NoError(t, err)
	assert.Equal(t, []byte("junio.csv"), data)

	require.NoError(t, s.Archive(ctx, "junio.csv"))
	assert.FileExists(t, filepath.Join(dir, "processed", "junio.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "junio.csv"))

	files, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestLocalStorage_ArchiveKeepsExisting(t *testing.T) {
	s, dir := newInbox(t)
	s.now = func() time.Time { return time.Date(2025, time.June, 2, 8, 30, 0, 0, time.UTC) }
	ctx := context.Background()

	writeFile(t, dir, "junio.csv", time.Now())
	require.NoError(t, s.Archive(ctx, "junio.csv"))
	writeFile(t, dir, "junio.csv", time.Now())
	require.NoError(t, s.Archive(ctx, "junio.csv"))

	assert.FileExists(t, filepath.Join(dir, "processed", "junio.csv"))
	assert.FileExists(t, filepath.Join(dir, "processed", "20250602T083000_junio.csv"))
}

func TestLocalStorage_Errors(t *testing.T) {
	s, _ := newInbox(t)
	ctx := context.Background()

	_, err := s.Read(ctx, "falta.csv")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Archive(ctx, "falta.csv"), ErrNotFound)

	_, err = s.Read(ctx, "../secreto.csv")
	assert.Error(t, err)

	_, err = NewLocalStorage(Config{})
	assert.Error(t, err)
}
