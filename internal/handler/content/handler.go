package content

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/omnimind/omnimind-engine/internal/content"
	"github.com/omnimind/omnimind-engine/pkg/utils"
)

// Handler 结构化内容生成的HTTP处理器
type Handler struct {
	meditation *content.Meditation
	study      *content.Study
}

// New 创建内容生成处理器
func New(meditation *content.Meditation, study *content.Study) *Handler {
	return &Handler{meditation: meditation, study: study}
}

// RegisterRoutes 注册内容生成相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/meditations", h.handleMeditation)
	r.Post("/study/questions", h.handleQuestions)
	r.Post("/study/schedule", h.handleSchedule)
}

// handleMeditation 生成冥想引导词。生成器自身保证永不失败，
// 这里只校验输入。
func (h *Handler) handleMeditation(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Topic   string `json:"topic"`
		OwnerID string `json:"ownerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Topic) == "" {
		utils.RespondError(w, http.StatusBadRequest, "topic is required")
		return
	}

	script := h.meditation.GenerateScript(r.Context(), payload.Topic, payload.OwnerID)
	utils.RespondJSON(w, http.StatusOK, map[string]string{"script": script})
}

func (h *Handler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Topic   string `json:"topic"`
		OwnerID string `json:"ownerId"`
		Count   int    `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Topic) == "" {
		utils.RespondError(w, http.StatusBadRequest, "topic is required")
		return
	}

	questions := h.study.GenerateQuestions(r.Context(), payload.Topic, payload.OwnerID, payload.Count)
	utils.RespondJSON(w, http.StatusOK, questions)
}

func (h *Handler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Goal          string `json:"goal"`
		AvailableTime string `json:"availableTime"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Goal) == "" {
		utils.RespondError(w, http.StatusBadRequest, "goal is required")
		return
	}

	schedule := h.study.GenerateSchedule(r.Context(), payload.Goal, payload.AvailableTime)
	utils.RespondJSON(w, http.StatusOK, schedule)
}
