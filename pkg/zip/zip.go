package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"
)

type Asset struct {
	Filename string
	MIME     string
	Data     []byte
}

// ArchiveAssets packs assets into an in-memory zip. Assets without data are
// skipped; duplicate file names get a numeric suffix.
func ArchiveAssets(assets []Asset) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	seen := make(map[string]int, len(assets))
	for _, asset := range assets {
		if len(asset.Data) == 0 {
			continue
		}
		name := asset.Filename
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%d-%s", n, name)
		}
		seen[asset.Filename]++
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Store,
			Modified: time.Now(),
		})
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", name, err)
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close: %w", err)
	}
	return buf.Bytes(), nil
}
