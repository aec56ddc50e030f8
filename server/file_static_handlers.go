package server

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
	"sync"
)

//go:embed static/*
var staticFiles embed.FS

// asset is an embedded file with its response metadata computed once.
type asset struct {
	data        []byte
	contentType string
	etag        string
}

var loadAssets = sync.OnceValues(func() (map[string]asset, error) {
	root, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to open static filesystem: %w", err)
	}

	assets := map[string]asset{}
	err = fs.WalkDir(root, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(root, name)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		assets[name] = asset{
			data:        data,
			contentType: contentTypeFor(name, data),
			etag:        `"` + hex.EncodeToString(sum[:8]) + `"`,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to index static files: %w", err)
	}
	return assets, nil
})

func contentTypeFor(name string, data []byte) string {
	ctype := mime.TypeByExtension(strings.ToLower(path.Ext(name)))
	if ctype == "" {
		ctype = http.DetectContentType(data)
	}
	if strings.HasPrefix(ctype, "text/") && !strings.Contains(strings.ToLower(ctype), "charset=") {
		ctype += "; charset=utf-8"
	}
	return ctype
}

// StreamFile writes the embedded static file fileName. A matching If-None-Match
// gets a 304 with no body.
func StreamFile(w http.ResponseWriter, r *http.Request, fileName string) error {
	assets, err := loadAssets()
	if err != nil {
		return err
	}
	a, ok := assets[fileName]
	if !ok {
		return fmt.Errorf("static file %s: %w", fileName, fs.ErrNotExist)
	}

	w.Header().Set("ETag", a.etag)
	if match := r.Header.Get("If-None-Match"); match != "" && strings.Contains(match, a.etag) {
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	w.Header().Set("Content-Type", a.contentType)
	if _, err := w.Write(a.data); err != nil {
		return fmt.Errorf("failed to write %s: %w", fileName, err)
	}
	return nil
}
