package product

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileHeader round-trips a single file through a multipart form so the
// header is backed by real content.
func fileHeader(t *testing.T, filename, content string) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("images", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/products", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["images"][0]
}

func TestDiskImageStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewDiskImageStore(dir, "/uploads")
	require.NoError(t, err)

	t.Run("SaveAndRemove", func(t *testing.T) {
		public, err := store.Save(fileHeader(t, "Mug.PNG", "png-bytes"))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(public, "/uploads/"))
		assert.True(t, strings.HasSuffix(public, ".png"))

		onDisk := filepath.Join(dir, filepath.Base(public))
		data, err := os.ReadFile(onDisk)
		require.NoError(t, err)
		assert.Equal(t, "png-bytes", string(data))

		store.Remove(public)
		_, err = os.Stat(onDisk)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("RejectsUnknownExtension", func(t *testing.T) {
		_, err := store.Save(fileHeader(t, "payload.exe", "MZ"))
		assert.ErrorIs(t, err, ErrInvalidImage)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("RemoveIgnoresMissingAndTraversal", func(t *testing.T) {
		assert.NotPanics(t, func() {
			store.Remove("/uploads/missing.png", "/uploads/../../etc/passwd", "")
		})
	})
}
