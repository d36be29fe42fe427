package speech

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/atlas/backend/internal/model/chat"
	"github.com/zhouzirui/atlas/backend/internal/model/speech"
	"github.com/zhouzirui/atlas/backend/internal/model/tutor"
	speechsvc "github.com/zhouzirui/atlas/backend/internal/service/speech"
	"github.com/zhouzirui/atlas/backend/pkg/utils"
)

const maxUploadBytes = 32 << 20

// SpeechService 抽象语音业务，便于测试与替换实现
type SpeechService interface {
	TranscribeAudio(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error)
	SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
}

// SessionResolver 根据会话解析 tutor，用于选择默认声音
type SessionResolver interface {
	SessionTutor(ctx context.Context, sessionID string) (chat.Session, tutor.Tutor, error)
}

// Handler 语音服务的HTTP处理器
type Handler struct {
	speechSvc SpeechService
	sessions  SessionResolver
}

// New 创建语音处理器. speechSvc may be nil when no API key is configured.
func New(speechSvc SpeechService, sessions SessionResolver) *Handler {
	return &Handler{
		speechSvc: speechSvc,
		sessions:  sessions,
	}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(speechRouter chi.Router) {
		// 健康检查
		speechRouter.Get("/health", h.handleHealth)

		if h.speechSvc == nil {
			unavailable := func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "speech service not available")
			}
			speechRouter.Post("/transcribe", unavailable)
			speechRouter.Post("/transcribe/{sessionID}", unavailable)
			speechRouter.Post("/synthesize", unavailable)
			speechRouter.Post("/synthesize/{sessionID}", unavailable)
			return
		}

		// ASR 端点
		speechRouter.Post("/transcribe", h.handleTranscribe)
		speechRouter.Post("/transcribe/{sessionID}", h.handleTranscribeWithSession)

		// TTS 端点
		speechRouter.Post("/synthesize", h.handleSynthesize)
		speechRouter.Post("/synthesize/{sessionID}", h.handleSynthesizeWithSession)
	})
}

// handleTranscribe 处理语音转文本请求
func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	h.processTranscribe(w, r, "")
}

// handleTranscribeWithSession 处理带会话ID的语音转文本请求
func (h *Handler) handleTranscribeWithSession(w http.ResponseWriter, r *http.Request) {
	h.processTranscribe(w, r, chi.URLParam(r, "sessionID"))
}

// handleSynthesize 处理文本转语音请求
func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	h.processSynthesize(w, r, "")
}

// handleSynthesizeWithSession 处理带会话ID的文本转语音请求
func (h *Handler) handleSynthesizeWithSession(w http.ResponseWriter, r *http.Request) {
	h.processSynthesize(w, r, chi.URLParam(r, "sessionID"))
}

func (h *Handler) processTranscribe(w http.ResponseWriter, r *http.Request, overrideSessionID string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	sessionID := overrideSessionID
	if sessionID == "" {
		sessionID = r.FormValue("sessionId")
	}

	language := r.FormValue("language")
	if language == "" {
		language = "en-US"
	}

	format := r.FormValue("format")
	if format == "" {
		format = inferAudioFormat(header.Filename)
	}

	resp, err := h.speechSvc.TranscribeAudio(r.Context(), &speech.ASRRequest{
		SessionID: sessionID,
		AudioData: file,
		Format:    format,
		Language:  language,
	})
	if err != nil {
		if errors.Is(err, speechsvc.ErrEmptyAudio) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("[speech] ASR error: %v", err)
		utils.RespondError(w, http.StatusBadGateway, "speech recognition failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) processSynthesize(w http.ResponseWriter, r *http.Request, overrideSessionID string) {
	var req speech.TTSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if overrideSessionID != "" {
		req.SessionID = overrideSessionID
	}

	if strings.TrimSpace(req.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	if strings.TrimSpace(req.Voice) == "" {
		req.Voice = h.resolveVoiceFromContext(r.Context(), req.SessionID)
	}

	resp, err := h.speechSvc.SynthesizeSpeech(r.Context(), &req)
	if err != nil {
		log.Printf("[speech] TTS error: %v", err)
		utils.RespondError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}

	if len(resp.AudioData) == 0 {
		utils.RespondJSON(w, http.StatusOK, resp)
		return
	}

	format := resp.Format
	if format == "" {
		format = "octet-stream"
	}
	w.Header().Set("Content-Type", "audio/"+format)
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.AudioData)))
	w.Header().Set("Content-Disposition", "inline; filename=speech."+format)
	w.Header().Set("X-Audio-Duration-Ms", strconv.FormatInt(resp.Duration, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.AudioData); err != nil {
		log.Printf("[speech] failed to write audio response: %v", err)
	}
}

func (h *Handler) resolveVoiceFromContext(ctx context.Context, sessionID string) string {
	if h.sessions == nil {
		return ""
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ""
	}

	_, t, err := h.sessions.SessionTutor(ctx, sessionID)
	if err != nil {
		return ""
	}
	return t.VoiceName
}

// handleHealth 健康检查端点
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if h.speechSvc == nil {
		status = "unavailable"
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"service": "speech",
	})
}

// inferAudioFormat 从文件名推断音频格式
func inferAudioFormat(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".mp3", ".webm", ".ogg", ".m4a", ".aac", ".flac", ".pcm":
		return strings.TrimPrefix(ext, ".")
	default:
		return "wav"
	}
}
