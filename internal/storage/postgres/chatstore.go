// Package postgres 提供基于 Postgres + pgvector 的持久化实现：
// 会话与消息的关系存储，以及按所有者隔离的向量近邻检索。
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnimind/omnimind-engine/internal/model/chat"
	"github.com/omnimind/omnimind-engine/internal/model/persona"
	chatservice "github.com/omnimind/omnimind-engine/internal/service/chat"
)

// ChatStore 实现编排器的会话持久化接口。
type ChatStore struct {
	pool *pgxpool.Pool
}

// NewChatStore 创建会话存储。
func NewChatStore(pool *pgxpool.Pool) *ChatStore {
	return &ChatStore{pool: pool}
}

func (s *ChatStore) CreateSession(ctx context.Context, session chat.Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_sessions (id, owner_id, therapy_mode, title, summary, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		session.ID, session.OwnerID, string(session.Mode), session.Title, session.Summary,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (s *ChatStore) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, therapy_mode, title, summary, created_at, updated_at
		 FROM chat_sessions WHERE id = $1`,
		sessionID,
	)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Session{}, chatservice.ErrSessionNotFound
	}
	if err != nil {
		return chat.Session{}, fmt.Errorf("failed to query session: %w", err)
	}
	return session, nil
}

func (s *ChatStore) ListSessions(ctx context.Context, ownerID string) ([]chat.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, therapy_mode, title, summary, created_at, updated_at
		 FROM chat_sessions WHERE owner_id = $1
		 ORDER BY updated_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]chat.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

func (s *ChatStore) SaveMessage(ctx context.Context, message chat.Message) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		message.ID, message.SessionID, message.Role, message.Content, message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (s *ChatStore) ListMessages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, role, content, created_at
		 FROM chat_messages WHERE session_id = $1
		 ORDER BY created_at`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0)
	for rows.Next() {
		var message chat.Message
		if err := rows.Scan(&message.ID, &message.SessionID, &message.Role, &message.Content, &message.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

func (s *ChatStore) TouchSession(ctx context.Context, sessionID string, updatedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE chat_sessions SET updated_at = $2 WHERE id = $1`,
		sessionID, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return chatservice.ErrSessionNotFound
	}
	return nil
}

func scanSession(row pgx.Row) (chat.Session, error) {
	var session chat.Session
	var mode string
	err := row.Scan(&session.ID, &session.OwnerID, &mode, &session.Title, &session.Summary,
		&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return chat.Session{}, err
	}
	session.Mode = persona.Mode(mode)
	return session, nil
}
