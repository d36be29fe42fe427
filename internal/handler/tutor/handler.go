package tutor

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/atlas/backend/internal/model/tutor"
	"github.com/zhouzirui/atlas/backend/pkg/utils"
)

// Handler tutor 资料的HTTP处理器
type Handler struct {
	tutors tutor.Store
}

// New 创建 tutor 处理器
func New(tutors tutor.Store) *Handler {
	return &Handler{
		tutors: tutors,
	}
}

// RegisterRoutes 注册 tutor 相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/tutors", h.handleListTutors)
	r.Get("/tutors/{tutorID}", h.handleGetTutor)
}

// handleListTutors 列出所有 tutor
func (h *Handler) handleListTutors(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.tutors.List())
}

func (h *Handler) handleGetTutor(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tutors.FindByID(chi.URLParam(r, "tutorID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "tutor not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, t)
}
