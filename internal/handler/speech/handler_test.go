package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/atlas/backend/internal/model/chat"
	speechmodel "github.com/zhouzirui/atlas/backend/internal/model/speech"
	"github.com/zhouzirui/atlas/backend/internal/model/tutor"
)

type fakeSpeechService struct {
	transcribeSession string
	transcribeFormat  string
	synthSession      string
	synthVoice        string
}

func (f *fakeSpeechService) TranscribeAudio(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error) {
	f.transcribeSession = req.SessionID
	f.transcribeFormat = req.Format
	return &speechmodel.ASRResponse{SessionID: req.SessionID, Text: "ok"}, nil
}

func (f *fakeSpeechService) SynthesizeSpeech(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	f.synthSession = req.SessionID
	f.synthVoice = req.Voice
	return &speechmodel.TTSResponse{SessionID: req.SessionID, AudioData: []byte("RIFF"), Format: "wav", Duration: 1200}, nil
}

type fakeSessions map[string]tutor.Tutor

func (f fakeSessions) SessionTutor(_ context.Context, sessionID string) (chat.Session, tutor.Tutor, error) {
	t, ok := f[sessionID]
	if !ok {
		return chat.Session{}, tutor.Tutor{}, errors.New("session not found")
	}
	return chat.Session{ID: sessionID, TutorID: t.ID}, t, nil
}

func multipartAudio(t *testing.T, filename string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		t.Fatalf("CreateFormFile err: %v", err)
	}
	if _, err := part.Write([]byte("audio")); err != nil {
		t.Fatalf("write audio err: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("writer.Close err: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestProcessTranscribeOverridesSession(t *testing.T) {
	fakeSvc := &fakeSpeechService{}
	handler := New(fakeSvc, nil)

	body, contentType := multipartAudio(t, "sample.webm")
	req := httptest.NewRequest(http.MethodPost, "/speech/transcribe/test", body)
	req.Header.Set("Content-Type", contentType)

	rr := httptest.NewRecorder()
	handler.processTranscribe(rr, req, "session-override")

	if fakeSvc.transcribeSession != "session-override" {
		t.Fatalf("expected override session, got %s", fakeSvc.transcribeSession)
	}
	if fakeSvc.transcribeFormat != "webm" {
		t.Fatalf("expected webm format, got %s", fakeSvc.transcribeFormat)
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestTranscribeRequiresAudio(t *testing.T) {
	r := chi.NewRouter()
	New(&fakeSpeechService{}, nil).RegisterRoutes(r)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.WriteField("language", "it-IT")
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/speech/transcribe", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestProcessSynthesizeUsesTutorVoice(t *testing.T) {
	fakeSvc := &fakeSpeechService{}
	atlas := tutor.Seed()[0]
	handler := New(fakeSvc, fakeSessions{"s1": atlas})

	buf, err := json.Marshal(map[string]any{"text": "hello"})
	if err != nil {
		t.Fatalf("Marshal err: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/speech/synthesize/s1", bytes.NewReader(buf))
	rr := httptest.NewRecorder()
	handler.processSynthesize(rr, req, "s1")

	if fakeSvc.synthSession != "s1" {
		t.Fatalf("expected override session, got %s", fakeSvc.synthSession)
	}
	if fakeSvc.synthVoice != atlas.VoiceName {
		t.Fatalf("expected voice %s, got %s", atlas.VoiceName, fakeSvc.synthVoice)
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Fatalf("expected audio/wav, got %s", ct)
	}
	if d := rr.Header().Get("X-Audio-Duration-Ms"); d != "1200" {
		t.Fatalf("expected duration header, got %q", d)
	}
}

func TestSynthesizeRequiresText(t *testing.T) {
	r := chi.NewRouter()
	New(&fakeSpeechService{}, nil).RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/speech/synthesize", bytes.NewReader([]byte(`{"text":"  "}`)))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestUnavailableWithoutService(t *testing.T) {
	r := chi.NewRouter()
	New(nil, nil).RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/speech/synthesize", bytes.NewReader([]byte(`{"text":"hi"}`)))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/speech/health", nil))
	if rr.Code != http.StatusOK || !bytes.Contains(rr.Body.Bytes(), []byte("unavailable")) {
		t.Fatalf("expected unavailable health, got %d %s", rr.Code, rr.Body.String())
	}
}
