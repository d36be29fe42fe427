package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/atlas/backend/internal/model/chat"
	"github.com/zhouzirui/atlas/backend/internal/model/progress"
	"github.com/zhouzirui/atlas/backend/internal/model/tutor"
	chatService "github.com/zhouzirui/atlas/backend/internal/service/chat"
	progressService "github.com/zhouzirui/atlas/backend/internal/service/progress"
	"github.com/zhouzirui/atlas/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc     *chatService.Service
	progressSvc *progressService.Service
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, progressSvc *progressService.Service) *Handler {
	return &Handler{
		chatSvc:     chatSvc,
		progressSvc: progressSvc,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/session/{sessionID}", h.handleGetSession)
	r.Get("/session/{sessionID}/messages", h.handleListMessages)
	r.Post("/chat/{sessionID}", h.handleChat)
}

type sessionResponse struct {
	Session  chat.Session         `json:"session"`
	Progress progress.Progression `json:"progress"`
	Greeting *chatService.Turn    `json:"greeting,omitempty"`
}

// handleCreateSession 创建会话，可选地执行隐藏的开场白
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		TutorID string `json:"tutorId"`
		Greet   bool   `json:"greet"`
	}

	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if strings.TrimSpace(payload.TutorID) == "" {
		payload.TutorID = tutor.DefaultID
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.TutorID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := sessionResponse{Session: session}
	if payload.Greet {
		turn, err := h.chatSvc.Greet(r.Context(), session.ID)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		resp.Greeting = &turn
		resp.Progress = turn.Progress
	} else if resp.Progress, err = h.progressSvc.Get(r.Context(), session.ID); err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, resp)
}

// handleGetSession 返回会话与进度
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	p, err := h.progressSvc.Get(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, sessionResponse{Session: session, Progress: p})
}

// handleListMessages 返回有序的对话记录
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatSvc.LoadTranscript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

// handleChat 处理一次完整的对话轮次
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	turn, err := h.chatSvc.Send(r.Context(), chi.URLParam(r, "sessionID"), payload.Message)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, turn)
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrTutorRequired), errors.Is(err, chatService.ErrTutorNotFound),
		errors.Is(err, chatService.ErrEmptyMessage):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chatService.ErrSessionNotFound), errors.Is(err, progressService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, chatService.ErrBusy):
		utils.RespondError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("[chat] request failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
