package practice

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/atlas/backend/internal/model/exercise"
	"github.com/zhouzirui/atlas/backend/internal/model/tutor"
	chatService "github.com/zhouzirui/atlas/backend/internal/service/chat"
	practiceService "github.com/zhouzirui/atlas/backend/internal/service/practice"
	progressService "github.com/zhouzirui/atlas/backend/internal/service/progress"
	"github.com/zhouzirui/atlas/backend/internal/store"
)

type fixedGenerator struct {
	ex exercise.Exercise
}

func (g fixedGenerator) GenerateExercise(context.Context, tutor.Tutor) (exercise.Exercise, error) {
	return g.ex, nil
}

func setup(t *testing.T) (*chi.Mux, string, *progressService.Service) {
	t.Helper()
	repo := store.NewMemory()
	progressSvc := progressService.NewService(repo)
	chatSvc := chatService.NewService(repo, tutor.NewMemoryStore(tutor.Seed()), progressSvc, nil)
	session, err := chatSvc.CreateSession(context.Background(), tutor.DefaultID)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	gen := fixedGenerator{ex: exercise.Exercise{
		Question:      "The ___ connects muscle to bone.",
		Type:          exercise.FillInBlank,
		CorrectAnswer: "tendon",
		Explanation:   "Il tendine collega il muscolo all'osso.",
	}}
	svc := practiceService.NewService(chatSvc, gen, progressSvc)

	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)
	return r, session.ID, progressSvc
}

func post(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestGenerateAndAnswer(t *testing.T) {
	r, sessionID, progressSvc := setup(t)

	resp := post(r, "/practice/"+sessionID+"/exercise", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if bytes.Contains(resp.Body.Bytes(), []byte("tendon")) {
		t.Fatalf("answer leaked to client: %s", resp.Body.String())
	}

	resp = post(r, "/practice/"+sessionID+"/answer", map[string]string{"answer": "Tendon"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var fb exercise.Feedback
	if err := json.Unmarshal(resp.Body.Bytes(), &fb); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !fb.IsCorrect || fb.XPAwarded != 25 {
		t.Fatalf("expected correct answer worth 25 XP, got %+v", fb)
	}

	p, err := progressSvc.Get(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if p.XP != 25 {
		t.Fatalf("expected 25 XP, got %d", p.XP)
	}
}

func TestAnswerWithoutExercise(t *testing.T) {
	r, sessionID, _ := setup(t)

	resp := post(r, "/practice/"+sessionID+"/answer", map[string]string{"answer": "x"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestGenerateUnknownSession(t *testing.T) {
	r, _, _ := setup(t)

	resp := post(r, "/practice/missing/exercise", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestCurrentState(t *testing.T) {
	r, sessionID, _ := setup(t)
	post(r, "/practice/"+sessionID+"/exercise", nil)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/practice/"+sessionID+"/", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var state practiceService.State
	if err := json.Unmarshal(resp.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.Exercise == nil || state.Exercise.Question == "" {
		t.Fatalf("expected active exercise, got %+v", state)
	}
}

func TestCurrentUnknownSession(t *testing.T) {
	r, _, _ := setup(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/practice/missing/", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
