package threadpool

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed static/*
var staticFiles embed.FS

// pages returns the directory the handlers read from: root when set,
// otherwise the pages embedded in the binary.
func pages(root string) (fs.FS, error) {
	if root != "" {
		return os.DirFS(root), nil
	}
	return fs.Sub(staticFiles, "static")
}
