package local

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*BlobStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := New(Config{BaseDir: dir})
	require.NoError(t, err)
	return s, dir
}

func TestPutAndGetObject(t *testing.T) {
	s, dir := newStore(t)
	ctx := context.Background()

	uri, err := s.PutObject(ctx, "2024-03-22/example.com/标题.txt", "text/plain; charset=utf-8", []byte("正文内容"))
	require.NoError(t, err)
	require.Equal(t, "file://"+filepath.Join(dir, "2024-03-22/example.com/标题.txt"), uri)

	data, err := s.GetObject(ctx, "2024-03-22/example.com/标题.txt")
	require.NoError(t, err)
	require.Equal(t, "正文内容", string(data))
}

func TestGetObjectMissing(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.GetObject(context.Background(), "nope/missing.txt")
	require.Error(t, err)
	require.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestCountObjects(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, putAll(ctx, s,
		"2024-03-22/example.com/a.txt",
		"2024-03-22/example.com/b.txt",
		"2024-03-22/example.com/notes.json",
		"2024-03-23/example.com/c.txt",
	))

	n, err := s.CountObjects(ctx, "2024-03-22/example.com", ".txt")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = s.CountObjects(ctx, "2024-03-24/example.com", ".txt")
	require.NoError(t, err)
	require.Zero(t, n)
}

func putAll(ctx context.Context, s *BlobStore, paths ...string) error {
	for _, p := range paths {
		if _, err := s.PutObject(ctx, p, "text/plain", []byte("x")); err != nil {
			return err
		}
	}
	return nil
}

func TestPathTraversalRejected(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.PutObject(context.Background(), "../outside.txt", "text/plain", []byte("x"))
	require.Error(t, err)
}

func TestNewRejectsFilePath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "afile")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	_, err := New(Config{BaseDir: file})
	require.Error(t, err)
}
