// Package stream 通过Server-Sent Events推送一个对话轮次的生成增量。
package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	chatservice "github.com/omnimind/omnimind-engine/internal/service/chat"
	"github.com/omnimind/omnimind-engine/pkg/utils"
)

// Handler manages streaming turn responses via Server-Sent Events.
type Handler struct {
	chatSvc *chatservice.Service
}

// New creates a new stream handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// StreamResponse represents a streaming response chunk.
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Payload   any    `json:"payload,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HandleStreamRequest 执行一个轮次并以SSE推送：start → delta* → message → end。
// 被审核拦截时推送 moderation 事件后结束，增量不会出现。
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	h.send(w, flusher, StreamResponse{Event: "start", SessionID: sessionID})

	result, err := h.chatSvc.SendTurnStream(ctx, sessionID, userMessage, func(chunk string) error {
		h.send(w, flusher, StreamResponse{Event: "delta", SessionID: sessionID, Content: chunk})
		return nil
	})
	if err != nil {
		h.sendError(w, flusher, err)
		return err
	}

	if result.Blocked() {
		h.send(w, flusher, StreamResponse{Event: "moderation", SessionID: sessionID, Payload: result.Verdict})
		h.send(w, flusher, StreamResponse{Event: "end", SessionID: sessionID, Finished: true})
		return nil
	}

	h.send(w, flusher, StreamResponse{Event: "message", SessionID: sessionID, Content: result.Message.Content})
	h.send(w, flusher, StreamResponse{Event: "end", SessionID: sessionID, Finished: true})

	log.Printf("[stream] completed turn for session=%s", sessionID)
	return nil
}

func (h *Handler) send(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	utils.SendSSEChunk(w, flusher, response)
}

func (h *Handler) sendError(w http.ResponseWriter, flusher http.Flusher, err error) {
	message := "turn failed"
	if errors.Is(err, chatservice.ErrSessionNotFound) {
		message = "session not found"
	} else if errors.Is(err, chatservice.ErrEmptyMessage) {
		message = "message content is empty"
	}
	h.send(w, flusher, StreamResponse{Event: "error", Error: message})
}
