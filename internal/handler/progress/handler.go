package progress

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	progressService "github.com/zhouzirui/atlas/backend/internal/service/progress"
	"github.com/zhouzirui/atlas/backend/pkg/utils"
)

// Handler 学习进度的HTTP处理器
type Handler struct {
	progressSvc *progressService.Service
}

// New 创建进度处理器
func New(progressSvc *progressService.Service) *Handler {
	return &Handler{progressSvc: progressSvc}
}

// RegisterRoutes 注册进度相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/progress/{sessionID}", h.handleGetProgress)
}

func (h *Handler) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.progressSvc.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if errors.Is(err, progressService.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load progress")
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}
