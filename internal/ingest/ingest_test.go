package ingest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string, mtime time.Time) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("jpeg"), 0o644))
	require.NoError(t, os.Chtimes(p, mtime, mtime))
	return p
}

func TestFindRecentImage(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 5, 14, 30, 10, 0, time.Local)

	touch(t, dir, "IMG-20240305-142000.jpg", now.Add(-10*time.Minute))
	want := touch(t, dir, "IMG-20240305-143005.JPG", now.Add(-5*time.Second))
	touch(t, dir, "notes.txt", now)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "z.jpg"), 0o755))

	got, err := FindRecentImage(dir, DefaultThreshold, now)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "IMG-20240305-143005", ImageID(got))
}

func TestFindRecentImage_NoneRecent(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	touch(t, dir, "IMG-old.jpg", now.Add(-time.Minute))

	_, err := FindRecentImage(dir, DefaultThreshold, now)
	assert.ErrorIs(t, err, ErrNoRecentImage)

	_, err = FindRecentImage(filepath.Join(dir, "missing"), DefaultThreshold, now)
	assert.Error(t, err)
}

func TestMetadata(t *testing.T) {
	m := Metadata(5.5, time.Date(2024, 3, 5, 9, 4, 3, 0, time.UTC))
	assert.Equal(t, 5.5, m.Weight)
	assert.Equal(t, "2024-03-05", m.Date)
	assert.Equal(t, "09:04:03", m.Time)
}
