package rest

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
)

// StaticHandler serves a prebuilt single-page application. Any path that does not
// name a regular file under root is answered with the index document so the
// client-side router can take over.
type StaticHandler struct {
	root  string
	index string
}

// NewStaticHandler creates a handler serving files from root with index as the fallback document.
func NewStaticHandler(root, index string) *StaticHandler {
	return &StaticHandler{root: root, index: index}
}

func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := filepath.Join(h.root, filepath.FromSlash(path.Clean("/"+r.URL.Path)))

	if serveFile(w, r, name) {
		return
	}

	if !serveFile(w, r, filepath.Join(h.root, h.index)) {
		http.NotFound(w, r)
	}
}

// serveFile writes name if it is a regular file and reports whether it did.
// Content type is inferred from the extension by http.ServeContent.
func serveFile(w http.ResponseWriter, r *http.Request, name string) bool {
	f, err := os.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)

	return true
}
