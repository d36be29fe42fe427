package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zhouzirui/atlas/backend/internal/model/tutor"
	chatService "github.com/zhouzirui/atlas/backend/internal/service/chat"
	progressService "github.com/zhouzirui/atlas/backend/internal/service/progress"
	"github.com/zhouzirui/atlas/backend/internal/store"
)

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func newTestRouter(pinger Pinger) http.Handler {
	repo := store.NewMemory()
	tutors := tutor.NewMemoryStore(tutor.Seed())
	progressSvc := progressService.NewService(repo)
	if pinger == nil {
		pinger = repo
	}
	return NewRouter(Dependencies{
		Tutors:         tutors,
		Store:          pinger,
		Chat:           chatService.NewService(repo, tutors, progressSvc, nil),
		Progress:       progressSvc,
		AllowedOrigins: []string{"*"},
	})
}

func TestRouterRoutes(t *testing.T) {
	r := newTestRouter(nil)

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/api/tutors", http.StatusOK},
		{http.MethodPost, "/api/practice/abc/exercise", http.StatusServiceUnavailable},
		{http.MethodPost, "/api/speech/synthesize", http.StatusServiceUnavailable},
		{http.MethodGet, "/api/speech/health", http.StatusOK},
		{http.MethodGet, "/api/voice/ws/abc", http.StatusNotImplemented},
		{http.MethodGet, "/api/progress/missing", http.StatusNotFound},
	}

	for _, tc := range cases {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
		if rr.Code != tc.want {
			t.Errorf("%s %s: expected %d, got %d", tc.method, tc.path, tc.want, rr.Code)
		}
	}
}

func TestHealthzReportsStoreFailure(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(failingPinger{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
