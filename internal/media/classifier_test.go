package media

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
	gifHeader  = []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\xff\xff\xff\x00\x00\x00")
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestClassifyUsesContentNotName(t *testing.T) {
	t.Parallel()

	c := NewClassifier()
	cases := []struct {
		name string
		file string
		data []byte
		want string
	}{
		{name: "png named txt", file: "notes.txt", data: pngHeader, want: "image/png"},
		{name: "jpeg named cache", file: "x.cache", data: jpegHeader, want: "image/jpeg"},
		{name: "gif named jpg", file: "x.jpg", data: gifHeader, want: "image/gif"},
		{name: "text named png", file: "x.png", data: []byte("just some words\n"), want: "text/plain"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Classify(writeFile(t, tc.file, tc.data))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	t.Parallel()

	c := NewClassifier()
	a, err := c.Classify(writeFile(t, "a.bin", pngHeader))
	require.NoError(t, err)
	b, err := c.Classify(writeFile(t, "b.dat", pngHeader))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestClassifyUnreadable(t *testing.T) {
	t.Parallel()

	_, err := NewClassifier().Classify(filepath.Join(t.TempDir(), "missing.cache"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreadable))
}

func TestNormalizeMime(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image/jpeg", NormalizeMime("IMAGE/JPEG; charset=utf-8"))
	assert.Equal(t, "", NormalizeMime("  "))
}

func TestAllowed(t *testing.T) {
	t.Parallel()

	allow := []string{"image/jpeg", "Image/PNG"}
	assert.True(t, Allowed("image/png", allow))
	assert.True(t, Allowed("image/jpeg; q=1", allow))
	assert.False(t, Allowed("text/plain", allow))
	assert.False(t, Allowed("", allow))
}

func TestOriginExtension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "jpg", OriginPhoto.Extension())
	assert.Equal(t, "cache", OriginDocument.Extension())
}
