package voice

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/atlas/backend/internal/audio/pcm"
	"github.com/zhouzirui/atlas/backend/internal/model/chat"
	"github.com/zhouzirui/atlas/backend/internal/model/tutor"
	voicesvc "github.com/zhouzirui/atlas/backend/internal/service/voice"
)

type stubSessions struct{}

func (stubSessions) SessionTutor(_ context.Context, sessionID string) (chat.Session, tutor.Tutor, error) {
	if sessionID != "s1" {
		return chat.Session{}, tutor.Tutor{}, errors.New("session not found")
	}
	return chat.Session{ID: sessionID, TutorID: tutor.DefaultID}, tutor.Seed()[0], nil
}

type stubLive struct {
	mu     sync.Mutex
	frames int
	closed chan struct{}
	once   sync.Once
}

func (s *stubLive) SendAudio([]byte, string) error {
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()
	return nil
}

func (s *stubLive) Receive() (voicesvc.ServerEvent, error) {
	<-s.closed
	return voicesvc.ServerEvent{}, io.EOF
}

func (s *stubLive) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type stubConnector struct {
	live *stubLive
}

func (c *stubConnector) Connect(context.Context, tutor.Tutor) (voicesvc.LiveSession, error) {
	return c.live, nil
}

func TestApplyConfigUpdatesState(t *testing.T) {
	seeds := append(tutor.Seed(), tutor.Tutor{ID: "coach", Name: "Coach"})
	handler := &WebSocketHandler{tutors: tutor.NewMemoryStore(seeds)}
	state := newConnectionState("session", seeds[0], voicesvc.Options{})

	handler.applyConfig(state, ConfigMessage{
		TutorID:         "coach",
		InputSampleRate: 48000,
		VADThreshold:    20,
	})

	if state.tutor.ID != "coach" {
		t.Fatalf("expected tutor coach, got %s", state.tutor.ID)
	}
	if state.opts.InputRate != 48000 {
		t.Fatalf("expected rate 48000, got %d", state.opts.InputRate)
	}
	if state.opts.VADThreshold != 20 {
		t.Fatalf("expected threshold 20, got %d", state.opts.VADThreshold)
	}

	handler.applyConfig(state, ConfigMessage{TutorID: "missing"})
	if state.tutor.ID != "coach" {
		t.Fatalf("unknown tutor must be ignored, got %s", state.tutor.ID)
	}
}

func TestWebSocketFallbackWhenUnavailable(t *testing.T) {
	r := chi.NewRouter()
	NewWebSocketHandler(nil, nil, nil, voicesvc.Options{}).RegisterRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/voice/ws/abc", nil))

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 status, got %d", rr.Code)
	}
}

func TestWebSocketUnknownSession(t *testing.T) {
	r := chi.NewRouter()
	NewWebSocketHandler(&stubConnector{live: &stubLive{closed: make(chan struct{})}}, stubSessions{}, nil, voicesvc.Options{}).RegisterRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/voice/ws/nope", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 status, got %d", rr.Code)
	}
}

func readUntil(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		data, _ := msg["data"].(map[string]any)
		if data != nil && data["type"] == want {
			return data
		}
	}
}

func TestCallLifecycleOverWebSocket(t *testing.T) {
	live := &stubLive{closed: make(chan struct{})}
	r := chi.NewRouter()
	NewWebSocketHandler(&stubConnector{live: live}, stubSessions{}, nil, voicesvc.Options{PollInterval: time.Hour}).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/voice/ws/s1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readUntil(t, conn, "connected")

	if err := conn.WriteJSON(map[string]any{"type": "start"}); err != nil {
		t.Fatalf("write start: %v", err)
	}
	readUntil(t, conn, "connecting")
	readUntil(t, conn, "listening")

	frame := make([]float32, pcm.FrameSize)
	for i := 0; i < 3; i++ {
		if err := conn.WriteJSON(map[string]any{"type": "audio", "data": map[string]string{"audio": pcm.EncodeBase64(frame)}}); err != nil {
			t.Fatalf("write audio: %v", err)
		}
	}

	if err := conn.WriteJSON(map[string]any{"type": "hangup"}); err != nil {
		t.Fatalf("write hangup: %v", err)
	}
	ended := readUntil(t, conn, "ended")
	if ended["reason"] != voicesvc.ReasonHangup {
		t.Fatalf("expected hangup reason, got %v", ended["reason"])
	}

	live.mu.Lock()
	frames := live.frames
	live.mu.Unlock()
	if frames == 0 {
		t.Fatal("expected audio to reach the live session")
	}
}
