package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starford/notehub/internal/noteservice"
	"github.com/starford/notehub/internal/testutil"
)

func TestMockRouter_HealthSkipsAuth(t *testing.T) {
	svc := noteservice.NewService(testutil.TestDB(t))
	r := newMockRouter(svc, AuthConfig{Mode: AuthModeToken, Token: "secret"})

	for _, path := range []string{"/health/live", "/health/ready"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, w.Code)
		}
		if body := w.Body.String(); body != `{"status":"ok"}` {
			t.Errorf("%s: body = %q", path, body)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notes", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("/notes without token: status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("/notes with token: status = %d, want 200", w.Code)
	}
}
