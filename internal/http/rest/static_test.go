package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/italolelis/mp3grab/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const indexHTML = `<!doctype html><html><body><div id="root"></div></body></html>`

func newStaticDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(indexHTML), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte(`console.log("mp3grab")`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "favicon.svg"), []byte(`<svg/>`), 0o600))

	return dir
}

func newStaticRouter(t *testing.T, staticDir string) http.Handler {
	t.Helper()

	tel, err := telemetry.New(context.Background(), telemetry.Config{Enabled: false})
	require.NoError(t, err)

	dh := NewDownloadHandler(&stubExtractor{}, "", t.TempDir(), nil, tel)

	var static http.Handler
	if staticDir != "" {
		static = NewStaticHandler(staticDir, "index.html")
	}

	return NewRouter(dh, static, tel, []string{"*"})
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	return rec
}

func TestStatic_ServesExistingFiles(t *testing.T) {
	h := newStaticRouter(t, newStaticDir(t))

	tests := []struct {
		name        string
		path        string
		wantBody    string
		contentType string
	}{
		{"nested asset", "/assets/app.js", `console.log("mp3grab")`, "javascript"},
		{"root asset", "/favicon.svg", `<svg/>`, "image/svg+xml"},
		{"index by name", "/index.html", indexHTML, "text/html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.path)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
			assert.Contains(t, rec.Header().Get("Content-Type"), tt.contentType)
		})
	}
}

func TestStatic_FallsBackToIndex(t *testing.T) {
	h := newStaticRouter(t, newStaticDir(t))

	for _, p := range []string{"/", "/some/client/route", "/assets", "/assets/", "/missing.js"} {
		t.Run(p, func(t *testing.T) {
			rec := get(t, h, p)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, indexHTML, rec.Body.String())
			assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		})
	}
}

func TestStatic_DoesNotEscapeRoot(t *testing.T) {
	parent := t.TempDir()
	staticDir := filepath.Join(parent, "dist")
	require.NoError(t, os.Mkdir(staticDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte(indexHTML), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("secret"), 0o600))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.URL.Path = "/../secret.txt"

	NewStaticHandler(staticDir, "index.html").ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, indexHTML, rec.Body.String())
}

func TestStatic_MissingIndex(t *testing.T) {
	rec := get(t, NewStaticHandler(t.TempDir(), "index.html"), "/anything")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatic_Head(t *testing.T) {
	h := newStaticRouter(t, newStaticDir(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/assets/app.js", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestStatic_Disabled(t *testing.T) {
	h := newStaticRouter(t, "")

	assert.Equal(t, http.StatusNotFound, get(t, h, "/").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/assets/app.js").Code)
}

func TestStatic_APITakesPrecedence(t *testing.T) {
	h := newStaticRouter(t, newStaticDir(t))

	rec := get(t, h, "/api/download")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
