package server

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"io/fs"
	"net/http"
	"path"
	"sync"

	apperrors "github.com/jrsteele09/go-token-handoff/internal/errors"
)

//go:embed static/*
var staticFiles embed.FS

// staticAsset is an embedded page asset held in memory with its validator
type staticAsset struct {
	body        []byte
	contentType string
	etag        string
}

var assetTypes = map[string]string{
	".css": "text/css; charset=utf-8",
	".js":  "text/javascript; charset=utf-8",
}

var (
	assetsOnce sync.Once
	assets     map[string]staticAsset
)

// loadAssets indexes the css and js files under static/ by their request path
func loadAssets() map[string]staticAsset {
	assetsOnce.Do(func() {
		assets = map[string]staticAsset{}
		err := fs.WalkDir(staticFiles, "static", func(name string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			contentType, ok := assetTypes[path.Ext(name)]
			if !ok {
				return nil
			}
			body, err := staticFiles.ReadFile(name)
			if err != nil {
				return err
			}
			sum := sha256.Sum256(body)
			assets[name[len("static/"):]] = staticAsset{
				body:        body,
				contentType: contentType,
				etag:        `"` + hex.EncodeToString(sum[:8]) + `"`,
			}
			return nil
		})
		if err != nil {
			panic("Failed to index static assets: " + err.Error())
		}
	})
	return assets
}

// StreamFile writes the named asset, answering a matching If-None-Match with 304
func StreamFile(w http.ResponseWriter, r *http.Request, fileName string) error {
	asset, ok := loadAssets()[fileName]
	if !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "static asset %s", fileName)
	}

	w.Header().Set("ETag", asset.etag)
	if r.Header.Get("If-None-Match") == asset.etag {
		w.WriteHeader(http.StatusNotModified)
		return nil
	}
	w.Header().Set("Content-Type", asset.contentType)
	_, err := w.Write(asset.body)
	return err
}
