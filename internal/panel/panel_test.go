package panel

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandlerServesRoot(t *testing.T) {
	w := get(t, Handler(""), "/")

	if w.Code != http.StatusOK {
		t.Fatalf("GET /: got status %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("GET /: response doesn't contain HTML doctype")
	}
	if got := w.Header().Get("Cache-Control"); got != "no-cache, must-revalidate" {
		t.Errorf("Cache-Control = %q", got)
	}
}

func TestHandlerPageUsesDeviceEndpoints(t *testing.T) {
	body := get(t, Handler(""), "/").Body.String()

	for _, endpoint := range []string{`"/status"`, `"/trancar"`, `"/destrancar"`, `"/desligaBuzzer"`, "data.temp", "data.umid"} {
		if !strings.Contains(body, endpoint) {
			t.Errorf("page does not reference %s", endpoint)
		}
	}
}

func TestHandlerUnknownPath(t *testing.T) {
	for _, p := range []string{"/nonexistent", "/some/deep/route"} {
		if w := get(t, Handler(""), p); w.Code != http.StatusNotFound {
			t.Errorf("GET %s: got status %d, want 404", p, w.Code)
		}
	}
}

func TestHandlerFilesystemMode(t *testing.T) {
	dir := t.TempDir()
	indexContent := `<!DOCTYPE html><html><body>bench page</body></html>`
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(indexContent), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "extra.js"), []byte("console.log('bench')"), 0o644); err != nil {
		t.Fatal(err)
	}

	handler := Handler(dir)

	w := get(t, handler, "/")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "bench page") {
		t.Errorf("filesystem GET /: status %d body %q", w.Code, w.Body.String())
	}

	if w := get(t, handler, "/extra.js"); w.Code != http.StatusOK {
		t.Errorf("filesystem GET /extra.js: got status %d, want 200", w.Code)
	}
}

func TestHandlerInvalidDirFallsBackToEmbed(t *testing.T) {
	w := get(t, Handler("/nonexistent/dir/that/does/not/exist"), "/")

	if w.Code != http.StatusOK {
		t.Errorf("invalid dir GET /: got status %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Geladeira Inteligente") {
		t.Error("invalid dir: didn't fall back to the embedded page")
	}
}
