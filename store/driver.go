package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	Migrate(ctx context.Context) error

	// Session model related methods.
	GetSession(ctx context.Context, userID string) (*Session, error)
	UpsertSession(ctx context.Context, upsert *UpsertSession) (*Session, error)

	// ChatLog model related methods.
	CreateChatLog(ctx context.Context, create *ChatLog) (*ChatLog, error)
	ListChatLogs(ctx context.Context, find *FindChatLog) ([]*ChatLog, error)
}
