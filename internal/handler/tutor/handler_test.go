package tutor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/atlas/backend/internal/model/tutor"
)

func setupRouter() *chi.Mux {
	r := chi.NewRouter()
	New(tutor.NewMemoryStore(tutor.Seed())).RegisterRoutes(r)
	return r
}

func TestListTutors(t *testing.T) {
	resp := httptest.NewRecorder()
	setupRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/tutors", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var got []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) == 0 || got[0]["id"] != tutor.DefaultID {
		t.Fatalf("expected atlas first, got %v", got)
	}
	if _, leaked := got[0]["systemInstruction"]; leaked {
		t.Fatalf("system instruction must not be exposed")
	}
}

func TestGetTutorNotFound(t *testing.T) {
	resp := httptest.NewRecorder()
	setupRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/tutors/nobody", nil))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
