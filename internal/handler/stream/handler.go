package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/atlas/backend/internal/model/progress"
	chatService "github.com/zhouzirui/atlas/backend/internal/service/chat"
	"github.com/zhouzirui/atlas/backend/pkg/utils"
)

// Handler manages streaming tutor replies via Server-Sent Events
type Handler struct {
	chatSvc *chatService.Service
}

// New creates a new stream handler
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string                `json:"event"`
	Content   string                `json:"content,omitempty"`
	SessionID string                `json:"sessionId,omitempty"`
	Finished  bool                  `json:"finished,omitempty"`
	Error     string                `json:"error,omitempty"`
	XPAwarded int                   `json:"xpAwarded,omitempty"`
	Progress  *progress.Progression `json:"progress,omitempty"`
}

// RegisterRoutes mounts the SSE endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userMessage := r.URL.Query().Get("message")

	if strings.TrimSpace(userMessage) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}
	if _, _, err := h.chatSvc.SessionTutor(r.Context(), sessionID); err != nil {
		if errors.Is(err, chatService.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to resolve session")
		return
	}

	if err := h.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
		log.Printf("[stream] error handling request: %v", err)
	}
}

// HandleStreamRequest runs one chat exchange and streams the reply as it is generated
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID string, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return fmt.Errorf("streaming unsupported")
	}

	_, t, err := h.chatSvc.SessionTutor(ctx, sessionID)
	if err != nil {
		return err
	}

	utils.SetupSSEHeaders(w)

	h.sendSSE(w, flusher, StreamResponse{
		Event:     "start",
		SessionID: sessionID,
		Content:   t.Name,
	})

	turn, err := h.chatSvc.Stream(ctx, sessionID, userMessage, func(delta string) {
		if delta == "" {
			return
		}
		h.sendSSE(w, flusher, StreamResponse{
			Event:     "delta",
			SessionID: sessionID,
			Content:   delta,
		})
	})
	if err != nil {
		h.sendSSEError(w, flusher, err.Error())
		return err
	}

	h.sendSSE(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: sessionID,
		Content:   turn.Reply.Text,
		XPAwarded: turn.XPAwarded,
		Progress:  &turn.Progress,
	})
	if turn.Failed {
		h.sendSSEError(w, flusher, "ai generation failed")
	}

	// Send completion signal
	h.sendSSE(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
	})

	log.Printf("[stream] completed response for session=%s, tutor=%s", sessionID, t.ID)
	return nil
}

// sendSSE sends a Server-Sent Event
func (h *Handler) sendSSE(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	utils.SendSSEChunk(w, flusher, response)
}

// sendSSEError sends an error via Server-Sent Events
func (h *Handler) sendSSEError(w http.ResponseWriter, flusher http.Flusher, errorMsg string) {
	h.sendSSE(w, flusher, StreamResponse{
		Event: "error",
		Error: errorMsg,
	})
}
