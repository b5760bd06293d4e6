package images

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestNewStorage(t *testing.T) {
	t.Run("creates the directory", func(t *testing.T) {
		dir := t.TempDir() + "/nested/covers"
		s, err := NewStorage(dir)
		require.NoError(t, err)
		require.NotNil(t, s)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("rejects empty path", func(t *testing.T) {
		s, err := NewStorage("")
		assert.Error(t, err)
		assert.Nil(t, s)
	})
}

func TestStorage_SaveDelete(t *testing.T) {
	t.Run("save then read back", func(t *testing.T) {
		s := setupTestStorage(t)
		require.NoError(t, s.Save("book-1.jpg", []byte("img")))

		data, err := os.ReadFile(s.Path("book-1.jpg"))
		require.NoError(t, err)
		assert.Equal(t, []byte("img"), data)
		assert.True(t, s.Exists("book-1.jpg"))
	})

	t.Run("rejects empty data", func(t *testing.T) {
		s := setupTestStorage(t)
		assert.Error(t, s.Save("book-1.jpg", nil))
	})

	t.Run("delete removes the file", func(t *testing.T) {
		s := setupTestStorage(t)
		require.NoError(t, s.Save("book-1.jpg", []byte("img")))
		require.NoError(t, s.Delete("book-1.jpg"))
		assert.False(t, s.Exists("book-1.jpg"))
	})

	t.Run("deleting a missing file is a no-op", func(t *testing.T) {
		s := setupTestStorage(t)
		assert.NoError(t, s.Delete("never-existed.jpg"))
	})

	t.Run("path traversal in filename stays inside the directory", func(t *testing.T) {
		s := setupTestStorage(t)
		p := s.Path("../../etc/passwd")
		assert.Contains(t, p, "passwd")
		assert.NotContains(t, p, "..")
	})
}

func TestFilenameFromURL(t *testing.T) {
	assert.Equal(t, "book-123-abc.jpg", FilenameFromURL("http://localhost:4000/images/book-123-abc.jpg"))
	assert.Equal(t, "", FilenameFromURL(""))
	assert.Equal(t, "", FilenameFromURL("http://localhost:4000/images/"))
	assert.Equal(t, "", FilenameFromURL("http://localhost:4000/api/books"))
}
