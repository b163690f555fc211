package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/omnimind/omnimind-engine/internal/analysis/therapy"
	"github.com/omnimind/omnimind-engine/internal/memory"
	"github.com/omnimind/omnimind-engine/internal/model/chat"
	"github.com/omnimind/omnimind-engine/internal/model/persona"
	"github.com/omnimind/omnimind-engine/internal/moderation"
)

const defaultSessionTitle = "New conversation"

// Generator 是编排器依赖的生成接口，由推理运行时实现。
type Generator interface {
	Chat(ctx context.Context, system string, history []*schema.Message, query string) (string, error)
	ChatStream(ctx context.Context, system string, history []*schema.Message, query string, onDelta func(chunk string) error) (string, error)
}

// MemoryBank 是编排器依赖的长期记忆接口。
type MemoryBank interface {
	Save(ctx context.Context, ownerID, content string, metadata map[string]string) (*memory.Record, error)
	Search(ctx context.Context, ownerID, query string, limit int, threshold float64) ([]memory.Record, error)
}

// Moderator 审核一段文本并给出结构化结论。
type Moderator interface {
	Analyze(ctx context.Context, text string) moderation.Verdict
}

// Options 控制检索与历史窗口。零值字段取默认。
type Options struct {
	HistoryLimit    int
	MemoryLimit     int
	MemoryThreshold float64
}

// TurnResult 是一次对话轮次的结果：要么是助手消息，要么是拦截结论。
type TurnResult struct {
	Message *chat.Message       `json:"message,omitempty"`
	Verdict *moderation.Verdict `json:"verdict,omitempty"`
}

// Blocked 表示该轮次被审核拦截。
func (r TurnResult) Blocked() bool { return r.Verdict != nil }

// Service 负责每个会话的轮次协议：审核、检索、提示词组装、持久化，
// 以及轮次结束后的后台记忆写入。
type Service struct {
	store     Store
	memories  MemoryBank
	moderator Moderator
	generator Generator
	opts      Options

	background sync.WaitGroup
}

// NewService 组装对话编排器。
func NewService(store Store, memories MemoryBank, moderator Moderator, generator Generator, opts Options) *Service {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}
	if opts.MemoryLimit <= 0 {
		opts.MemoryLimit = 3
	}
	if opts.MemoryThreshold <= 0 {
		opts.MemoryThreshold = 0.45
	}

	return &Service{
		store:     store,
		memories:  memories,
		moderator: moderator,
		generator: generator,
		opts:      opts,
	}
}

// CreateSession 创建会话。seedText 非空时充当首条消息的标题来源。
func (s *Service) CreateSession(ctx context.Context, ownerID string, mode persona.Mode, seedText string) (chat.Session, error) {
	if strings.TrimSpace(ownerID) == "" {
		return chat.Session{}, ErrOwnerRequired
	}
	if !mode.Valid() {
		return chat.Session{}, ErrInvalidMode
	}

	now := time.Now().UTC()
	session := chat.Session{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Mode:      mode,
		Title:     sessionTitle(seedText),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateSession(ctx, session); err != nil {
		return chat.Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// GetSession 返回单个会话。
func (s *Service) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	return s.store.GetSession(ctx, sessionID)
}

// ListSessions 返回用户的会话列表。
func (s *Service) ListSessions(ctx context.Context, ownerID string) ([]chat.Session, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrOwnerRequired
	}
	return s.store.ListSessions(ctx, ownerID)
}

// Transcript 返回会话的全部消息。
func (s *Service) Transcript(ctx context.Context, sessionID string) ([]chat.Message, error) {
	return s.store.ListMessages(ctx, sessionID)
}

// SendTurn 执行一个完整轮次。被审核拦截时返回结论且不持久化任何消息；
// 持久化失败按硬错误冒泡，调用方可重试。
func (s *Service) SendTurn(ctx context.Context, sessionID, userText string) (TurnResult, error) {
	turn, result, err := s.prepareTurn(ctx, sessionID, userText)
	if err != nil || result.Blocked() {
		return result, err
	}

	reply, genErr := s.generator.Chat(ctx, turn.system, turn.history, turn.userText)
	if genErr != nil || strings.TrimSpace(reply) == "" {
		if genErr != nil {
			log.Printf("[chat] generation failed for session=%s, using fallback: %v", sessionID, genErr)
		}
		reply = therapy.Respond(turn.session.Mode, turn.userText)
	}

	return s.finishTurn(ctx, turn, reply)
}

// SendTurnStream 与 SendTurn 语义一致，但生成增量经 onDelta 实时送出。
// 回退路径会把完整回退文案作为单个增量送出。
func (s *Service) SendTurnStream(ctx context.Context, sessionID, userText string, onDelta func(chunk string) error) (TurnResult, error) {
	turn, result, err := s.prepareTurn(ctx, sessionID, userText)
	if err != nil || result.Blocked() {
		return result, err
	}

	reply, genErr := s.generator.ChatStream(ctx, turn.system, turn.history, turn.userText, onDelta)
	if genErr != nil || strings.TrimSpace(reply) == "" {
		if genErr != nil {
			log.Printf("[chat] streaming generation failed for session=%s, using fallback: %v", sessionID, genErr)
		}
		reply = therapy.Respond(turn.session.Mode, turn.userText)
		if onDelta != nil {
			if err := onDelta(reply); err != nil {
				return TurnResult{}, err
			}
		}
	}

	return s.finishTurn(ctx, turn, reply)
}

// Wait 阻塞直到所有后台记忆写入完成，用于优雅停机与测试。
func (s *Service) Wait() {
	s.background.Wait()
}

// turnContext 汇集一个轮次在生成前收集到的所有状态。
type turnContext struct {
	session  chat.Session
	userText string
	system   string
	history  []*schema.Message
}

func (s *Service) prepareTurn(ctx context.Context, sessionID, userText string) (turnContext, TurnResult, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return turnContext{}, TurnResult{}, ErrEmptyMessage
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return turnContext{}, TurnResult{}, err
	}

	// 审核先于一切持久化：被拦截的文本不会进入持久日志。
	verdict := s.moderator.Analyze(ctx, userText)
	if !verdict.IsSafe {
		return turnContext{}, TurnResult{Verdict: &verdict}, nil
	}

	// 零命中是冷启动用户的正常情况；检索失败同样降级为空上下文。
	records, err := s.memories.Search(ctx, session.OwnerID, userText, s.opts.MemoryLimit, s.opts.MemoryThreshold)
	if err != nil {
		log.Printf("[chat] memory search failed for session=%s: %v", sessionID, err)
		records = nil
	}

	messages, err := s.store.ListMessages(ctx, sessionID)
	if err != nil {
		return turnContext{}, TurnResult{}, fmt.Errorf("failed to load transcript: %w", err)
	}

	return turnContext{
		session:  session,
		userText: userText,
		system:   buildSystemPrompt(session.Mode, records),
		history:  buildHistory(messages, s.opts.HistoryLimit),
	}, TurnResult{}, nil
}

func (s *Service) finishTurn(ctx context.Context, turn turnContext, reply string) (TurnResult, error) {
	now := time.Now().UTC()
	userMsg := chat.Message{
		ID:        uuid.NewString(),
		SessionID: turn.session.ID,
		Role:      chat.RoleUser,
		Content:   turn.userText,
		CreatedAt: now,
	}
	if err := s.store.SaveMessage(ctx, userMsg); err != nil {
		return TurnResult{}, fmt.Errorf("failed to persist user message: %w", err)
	}

	assistantMsg := chat.Message{
		ID:        uuid.NewString(),
		SessionID: turn.session.ID,
		Role:      chat.RoleAssistant,
		Content:   reply,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveMessage(ctx, assistantMsg); err != nil {
		return TurnResult{}, fmt.Errorf("failed to persist assistant message: %w", err)
	}

	if err := s.store.TouchSession(ctx, turn.session.ID, assistantMsg.CreatedAt); err != nil {
		return TurnResult{}, fmt.Errorf("failed to update session: %w", err)
	}

	s.scheduleMemoryWrite(turn.session, turn.userText, reply)

	return TurnResult{Message: &assistantMsg}, nil
}

// scheduleMemoryWrite 在后台把轮次摘要写入长期记忆。尽力而为：
// 失败只记日志，绝不影响已完成的轮次。
func (s *Service) scheduleMemoryWrite(session chat.Session, userText, reply string) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		content := "User: " + userText + "\nAssistant: " + reply
		metadata := map[string]string{
			"source":    "conversation",
			"sessionId": session.ID,
			"mode":      session.Mode.String(),
		}
		if _, err := s.memories.Save(ctx, session.OwnerID, content, metadata); err != nil {
			log.Printf("[chat] background memory write failed for session=%s: %v", session.ID, err)
		}
	}()
}

// buildSystemPrompt 组合流派固定指令与检索到的记忆块。
func buildSystemPrompt(mode persona.Mode, records []memory.Record) string {
	base := mode.SystemPrompt()
	if len(records) == 0 {
		return base
	}

	var builder strings.Builder
	builder.WriteString(base)
	builder.WriteString("\n\nThings the user has shared in past conversations, most relevant first:")
	for _, record := range records {
		builder.WriteString("\n- ")
		builder.WriteString(record.Content)
	}
	builder.WriteString("\nDraw on these memories only when they help the user feel heard.")
	return builder.String()
}

func buildHistory(messages []chat.Message, limit int) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	start := 0
	if len(messages) > limit {
		start = len(messages) - limit
	}

	history := make([]*schema.Message, 0, len(messages)-start)
	for _, msg := range messages[start:] {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}

// sessionTitle 从首条消息截取标题，隐式建会话时使用。
func sessionTitle(seedText string) string {
	seedText = strings.TrimSpace(seedText)
	if seedText == "" {
		return defaultSessionTitle
	}

	runes := []rune(seedText)
	if len(runes) <= 30 {
		return seedText
	}
	return string(runes[:30]) + "..."
}
