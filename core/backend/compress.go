package backend

import (
	"compress/gzip"
	"net/http"

	"github.com/gorilla/handlers"
)

// handleCompression compresses responses for clients which accept gzip or deflate.
// A level of 0 selects the default compression.
func (b *Backend) handleCompression(level int) {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	b.router.Use(func(h http.Handler) http.Handler {
		return handlers.CompressHandlerLevel(h, level)
	})
}
