package chat

import (
	"context"
	"errors"
	"time"

	"github.com/omnimind/omnimind-engine/internal/model/chat"
)

var (
	ErrOwnerRequired   = errors.New("owner id is required")
	ErrInvalidMode     = errors.New("unknown therapy mode")
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyMessage    = errors.New("message content is empty")
)

// Store 是编排器需要的会话持久化接口：生产实现基于 Postgres，
// 未配置数据库时退化为进程内实现。所有写入均为追加或单字段更新。
type Store interface {
	CreateSession(ctx context.Context, session chat.Session) error
	GetSession(ctx context.Context, sessionID string) (chat.Session, error)
	ListSessions(ctx context.Context, ownerID string) ([]chat.Session, error)
	SaveMessage(ctx context.Context, message chat.Message) error
	ListMessages(ctx context.Context, sessionID string) ([]chat.Message, error)
	TouchSession(ctx context.Context, sessionID string, updatedAt time.Time) error
}
