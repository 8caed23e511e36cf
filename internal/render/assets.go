package render

import (
	"embed"
	"fmt"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
)

//go:embed assets/*
var assetFS embed.FS

// Assets holds the minified page stylesheet and client script.
type Assets struct {
	CSS string
	JS  string
}

var (
	assetsOnce sync.Once
	assets     *Assets
	assetsErr  error
)

// LoadAssets minifies the embedded assets on first use.
func LoadAssets() (*Assets, error) {
	assetsOnce.Do(func() {
		m := minify.New()
		m.AddFunc("text/css", css.Minify)
		m.AddFunc("application/javascript", js.Minify)

		cssOut, err := minifyFile(m, "text/css", "assets/layout.css")
		if err != nil {
			assetsErr = err
			return
		}
		jsOut, err := minifyFile(m, "application/javascript", "assets/client.js")
		if err != nil {
			assetsErr = err
			return
		}
		assets = &Assets{CSS: cssOut, JS: jsOut}
	})
	return assets, assetsErr
}

func minifyFile(m *minify.M, mediaType, name string) (string, error) {
	raw, err := assetFS.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	out, err := m.Bytes(mediaType, raw)
	if err != nil {
		return "", fmt.Errorf("minify %s: %w", name, err)
	}
	return string(out), nil
}
