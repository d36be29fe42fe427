package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	chatModel "github.com/zhouzirui/atlas/backend/internal/model/chat"
	"github.com/zhouzirui/atlas/backend/internal/model/tutor"
	chatService "github.com/zhouzirui/atlas/backend/internal/service/chat"
	progressService "github.com/zhouzirui/atlas/backend/internal/service/progress"
	"github.com/zhouzirui/atlas/backend/internal/store"
)

type stubResponder struct {
	reply string
}

func (s stubResponder) GenerateReply(context.Context, tutor.Tutor, []chatModel.Message, string) (string, error) {
	return s.reply, nil
}

func (s stubResponder) StreamReply(_ context.Context, _ tutor.Tutor, _ []chatModel.Message, _ string, onDelta func(string)) (string, error) {
	onDelta(s.reply)
	return s.reply, nil
}

func (stubResponder) StreamingEnabled() bool { return false }

func setupRouter() *chi.Mux {
	repo := store.NewMemory()
	progressSvc := progressService.NewService(repo)
	chatSvc := chatService.NewService(repo, tutor.NewMemoryStore(tutor.Seed()), progressSvc, stubResponder{reply: "Great job! +10 XP"})

	r := chi.NewRouter()
	New(chatSvc, progressSvc).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func createSession(t *testing.T, r http.Handler, body any) sessionResponse {
	t.Helper()
	resp := do(r, http.MethodPost, "/session", body)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var out sessionResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestCreateSessionDefaultsToAtlas(t *testing.T) {
	r := setupRouter()
	out := createSession(t, r, nil)

	if out.Session.TutorID != tutor.DefaultID {
		t.Fatalf("expected tutor %s, got %s", tutor.DefaultID, out.Session.TutorID)
	}
	if out.Progress.Level != 1 {
		t.Fatalf("expected level 1, got %d", out.Progress.Level)
	}
	if out.Greeting != nil {
		t.Fatalf("did not ask for a greeting")
	}
}

func TestCreateSessionWithGreeting(t *testing.T) {
	r := setupRouter()
	out := createSession(t, r, map[string]any{"tutorId": tutor.DefaultID, "greet": true})

	if out.Greeting == nil || out.Greeting.Reply.Text != "Great job! +10 XP" {
		t.Fatalf("expected greeting reply, got %+v", out.Greeting)
	}

	resp := do(r, http.MethodGet, "/session/"+out.Session.ID+"/messages", nil)
	var messages []chatModel.Message
	if err := json.Unmarshal(resp.Body.Bytes(), &messages); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(messages) != 1 || messages[0].Role != chatModel.RoleModel {
		t.Fatalf("expected only the tutor reply, got %+v", messages)
	}
}

func TestCreateSessionInvalidTutor(t *testing.T) {
	resp := do(setupRouter(), http.MethodPost, "/session", map[string]string{"tutorId": "non-existent"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestCreateSessionInvalidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/session", bytes.NewReader([]byte("{")))
	resp := httptest.NewRecorder()
	setupRouter().ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestChatAwardsXP(t *testing.T) {
	r := setupRouter()
	out := createSession(t, r, nil)

	resp := do(r, http.MethodPost, "/chat/"+out.Session.ID, map[string]string{"message": "Hello Atlas"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var turn chatService.Turn
	if err := json.Unmarshal(resp.Body.Bytes(), &turn); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if turn.XPAwarded != 10 || turn.Progress.XP != 10 {
		t.Fatalf("expected 10 XP, got %+v", turn)
	}

	resp = do(r, http.MethodGet, "/session/"+out.Session.ID, nil)
	var got sessionResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Progress.XP != 10 {
		t.Fatalf("expected persisted XP 10, got %d", got.Progress.XP)
	}
}

func TestChatErrors(t *testing.T) {
	r := setupRouter()

	if resp := do(r, http.MethodPost, "/chat/missing", map[string]string{"message": "hi"}); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}

	out := createSession(t, r, nil)
	if resp := do(r, http.MethodPost, "/chat/"+out.Session.ID, map[string]string{"message": "  "}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if resp := do(r, http.MethodGet, "/session/missing", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
