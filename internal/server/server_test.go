package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pomokey/pomokey/internal/shared"
	"golang.org/x/oauth2"
)

func TestBasicRouter(t *testing.T) {
	t.Run("Filters Methods", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle("POST", "/submit", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/submit", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("POST", "/submit", nil))
		if rec.Code != http.StatusCreated {
			t.Errorf("expected 201, got %d", rec.Code)
		}
	})

	t.Run("Applies Middleware In Order", func(t *testing.T) {
		router := NewBasicRouter()
		var order []string

		tag := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}
		router.Use(tag("first"), tag("second"))
		router.Handle("GET", "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
		if got := strings.Join(order, ","); got != "first,second,handler" {
			t.Errorf("expected first,second,handler, got %s", got)
		}
	})

	t.Run("Registers Handler Routes", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handler(NewNoCacheStatic(t.TempDir()))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/missing.js", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected handler to be routed, got %d", rec.Code)
		}
	})
}

func TestNoCacheStatic(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>home</html>"), 0o644); err != nil {
		t.Fatalf("failed to write index: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatalf("failed to write asset: %v", err)
	}

	handler := NewNoCacheStatic(dir)

	t.Run("Root Serves Index", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "home") {
			t.Errorf("expected index contents, got %q", rec.Body.String())
		}
		if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
			t.Errorf("expected no-store cache control, got %q", cc)
		}
	})

	t.Run("Serves Assets", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/app.js", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("Rejects Traversal", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/", nil)
		req.URL.Path = "/../secret"
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("Missing File", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/nope.css", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestOAuthHandler(t *testing.T) {
	newConfig := func(tokenURL string) *oauth2.Config {
		return &oauth2.Config{
			ClientID:     "client",
			ClientSecret: "secret",
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
			RedirectURL:  "http://localhost:3000/callback",
		}
	}

	t.Run("Exchanges Code", func(t *testing.T) {
		tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token": "tok", "token_type": "Bearer", "expires_in": 3600}`)
		}))
		defer tokenServer.Close()

		handler := NewOAuthHandler(newConfig(tokenServer.URL), "state-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/callback?state=state-1&code=abc", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := <-handler.Result()
		if result.Error() != nil {
			t.Fatalf("unexpected error: %v", result.Error())
		}
		if result.Token.AccessToken != "tok" {
			t.Errorf("expected access token, got %q", result.Token.AccessToken)
		}
	})

	t.Run("Rejects Bad State", func(t *testing.T) {
		handler := NewOAuthHandler(newConfig("http://unused"), "state-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/callback?state=wrong&code=abc", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		result := <-handler.Result()
		if !errors.Is(result.Error(), shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", result.Error())
		}
	})

	t.Run("Reports Denied Authorization", func(t *testing.T) {
		handler := NewOAuthHandler(newConfig("http://unused"), "state-1")
		rec := httptest.NewRecorder()
		query := url.Values{"state": {"state-1"}, "error": {"access_denied"}, "error_description": {"user denied"}}
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/callback?"+query.Encode(), nil))

		result := <-handler.Result()
		if !errors.Is(result.Error(), shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", result.Error())
		}
	})

	t.Run("Handles Callback Once", func(t *testing.T) {
		handler := NewOAuthHandler(newConfig("http://unused"), "state-1")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/callback?state=wrong", nil))

		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/callback?state=state-1&code=abc", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected repeat callback rejection, got %d", rec.Code)
		}
	})
}
