package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/omnimind/omnimind-engine/internal/model/persona"
	"github.com/omnimind/omnimind-engine/pkg/utils"
)

// Handler persona目录的HTTP处理器
type Handler struct{}

// New 创建persona处理器
func New() *Handler {
	return &Handler{}
}

// RegisterRoutes 注册persona相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleListPersonas)
}

type personaView struct {
	Mode persona.Mode `json:"mode"`
	persona.Profile
}

// handleListPersonas 列出全部治疗模式及其画像
func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	modes := persona.Modes()
	views := make([]personaView, 0, len(modes))
	for _, mode := range modes {
		views = append(views, personaView{Mode: mode, Profile: mode.Profile()})
	}
	utils.RespondJSON(w, http.StatusOK, views)
}
