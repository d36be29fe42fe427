package practice

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatService "github.com/zhouzirui/atlas/backend/internal/service/chat"
	practiceService "github.com/zhouzirui/atlas/backend/internal/service/practice"
	"github.com/zhouzirui/atlas/backend/pkg/utils"
)

// Handler 练习题的HTTP处理器
type Handler struct {
	practiceSvc *practiceService.Service
}

// New 创建练习处理器
func New(practiceSvc *practiceService.Service) *Handler {
	return &Handler{practiceSvc: practiceSvc}
}

// RegisterRoutes 注册练习相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/practice/{sessionID}", func(pr chi.Router) {
		pr.Get("/", h.handleCurrent)
		pr.Post("/exercise", h.handleGenerate)
		pr.Post("/answer", h.handleAnswer)
	})
}

// handleCurrent 返回当前练习状态（不含答案）
func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	state, err := h.practiceSvc.Current(r.Context(), sessionID)
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, state)
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found")
	default:
		log.Printf("[practice] load state error session=%s: %v", sessionID, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load practice state")
	}
}

// handleGenerate 生成新练习，替换当前练习
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	view, err := h.practiceSvc.Generate(r.Context(), sessionID)
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, view)
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, practiceService.ErrBusy):
		utils.RespondError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("[practice] generate error session=%s: %v", sessionID, err)
		utils.RespondError(w, http.StatusBadGateway, "exercise generation failed")
	}
}

// handleAnswer 批改答案
func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fb, err := h.practiceSvc.Check(r.Context(), sessionID, payload.Answer)
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, fb)
	case errors.Is(err, practiceService.ErrNoExercise):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, practiceService.ErrNoAnswer):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, practiceService.ErrBusy):
		utils.RespondError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("[practice] check error session=%s: %v", sessionID, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to grade answer")
	}
}
