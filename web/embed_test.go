package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
)

func TestSPAHandler(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		wantType    string
		wantContain string
	}{
		{"root", "/", "text/html", `id="messages"`},
		{"script", "/app.js", "javascript", "receiveMessage"},
		{"stylesheet", "/app.css", "text/css", ".chat"},
		{"client route falls back", "/rooms/1", "text/html", `id="composer"`},
	}

	handler := SPAHandler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, tt.wantType) {
				t.Errorf("Content-Type = %q, want %s", ct, tt.wantType)
			}
			if !strings.Contains(rr.Body.String(), tt.wantContain) {
				t.Errorf("body does not contain %q", tt.wantContain)
			}
		})
	}
}

func TestNewSPAHandler_FallbackFromCustomFS(t *testing.T) {
	fsys := fstest.MapFS{
		"index.html":  {Data: []byte("<html>shell</html>")},
		"assets/a.js": {Data: []byte("console.log(1)")},
	}
	handler := NewSPAHandler(fsys)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/assets/a.js", nil))
	if rr.Body.String() != "console.log(1)" {
		t.Errorf("asset body = %q", rr.Body.String())
	}

	for _, p := range []string{"/assets", "/missing/page"} {
		rr = httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, p, nil))
		if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "shell") {
			t.Errorf("%s: status %d body %q, want index shell", p, rr.Code, rr.Body.String())
		}
		if rr.Header().Get("Cache-Control") != "no-cache" {
			t.Errorf("%s: missing no-cache header", p)
		}
	}
}
