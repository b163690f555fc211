package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/omnimind/omnimind-engine/internal/model/persona"
	chatservice "github.com/omnimind/omnimind-engine/internal/service/chat"
	"github.com/omnimind/omnimind-engine/pkg/utils"
)

// Handler 会话与轮次的HTTP处理器
type Handler struct {
	chatSvc *chatservice.Service
}

// New 创建聊天处理器
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Get("/sessions", h.handleListSessions)
	r.Get("/sessions/{sessionID}", h.handleGetSession)
	r.Get("/sessions/{sessionID}/messages", h.handleTranscript)
	r.Post("/sessions/{sessionID}/messages", h.handleSendTurn)
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		OwnerID     string `json:"ownerId"`
		TherapyMode string `json:"therapyMode"`
		SeedText    string `json:"seedText"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode, ok := persona.Parse(payload.TherapyMode)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "unknown therapy mode")
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.OwnerID, mode, payload.SeedText)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session)
}

// handleListSessions 按用户列出会话，最近活跃在前
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("ownerId")
	if ownerID == "" {
		utils.RespondError(w, http.StatusBadRequest, "ownerId query parameter is required")
		return
	}

	sessions, err := h.chatSvc.ListSessions(r.Context(), ownerID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	utils.RespondJSON(w, http.StatusOK, sessions)
}

// handleGetSession 返回单个会话
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

// handleTranscript 返回会话的全部消息
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatSvc.Transcript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

// handleSendTurn 执行一个对话轮次。被审核拦截时返回 422 与结论，
// 正常完成返回助手消息。
func (h *Handler) handleSendTurn(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Content string `json:"content"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.chatSvc.SendTurn(r.Context(), chi.URLParam(r, "sessionID"), payload.Content)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	if result.Blocked() {
		utils.RespondJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatservice.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, chatservice.ErrEmptyMessage), errors.Is(err, chatservice.ErrOwnerRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
