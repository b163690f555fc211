package moderation

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/omnimind/omnimind-engine/internal/moderation"
	"github.com/omnimind/omnimind-engine/pkg/utils"
)

// Handler 暴露提交前的文本审核与打码接口，供UI在发布动态/评论前预检。
type Handler struct {
	gate *moderation.Gate
}

// New 创建审核处理器
func New(gate *moderation.Gate) *Handler {
	return &Handler{gate: gate}
}

// RegisterRoutes 注册审核相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/moderation/analyze", h.handleAnalyze)
	r.Post("/moderation/censor", h.handleCensor)
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	text, ok := decodeText(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.gate.Analyze(r.Context(), text))
}

func (h *Handler) handleCensor(w http.ResponseWriter, r *http.Request) {
	text, ok := decodeText(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"text": h.gate.Censor(text)})
}

func decodeText(w http.ResponseWriter, r *http.Request) (string, bool) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	if strings.TrimSpace(payload.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return "", false
	}
	return payload.Text, true
}
