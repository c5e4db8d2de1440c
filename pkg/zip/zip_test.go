package zip

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveAssets(t *testing.T) {
	archive, err := ArchiveAssets([]Asset{
		{Filename: "source.jpg", MIME: "image/jpeg", Data: []byte("src")},
		{Filename: "empty.png", MIME: "image/png"},
		{Filename: "result.png", MIME: "image/png", Data: []byte("one")},
		{Filename: "result.png", MIME: "image/png", Data: []byte("two")},
	})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)

	got := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		got[f.Name] = string(data)
	}
	assert.Equal(t, map[string]string{
		"source.jpg":   "src",
		"result.png":   "one",
		"1-result.png": "two",
	}, got)
}

func TestArchiveAssetsEmpty(t *testing.T) {
	archive, err := ArchiveAssets(nil)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	assert.Empty(t, zr.File)
}
