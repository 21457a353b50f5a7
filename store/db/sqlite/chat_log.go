package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/smartchat/store"
)

func (d *DB) CreateChatLog(ctx context.Context, create *store.ChatLog) (*store.ChatLog, error) {
	now := time.Now().Unix()
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO chat_log (uid, user_id, payload, created_ts)
		VALUES (?, ?, ?, ?)
		RETURNING id`,
		create.UID, create.UserID, create.Payload, now,
	).Scan(&create.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create chat log")
	}
	create.CreatedTs = now
	return create, nil
}

func (d *DB) ListChatLogs(ctx context.Context, find *store.FindChatLog) ([]*store.ChatLog, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.UserID != nil {
		where, args = append(where, "user_id = ?"), append(args, *find.UserID)
	}

	query := fmt.Sprintf(`
		SELECT id, uid, user_id, payload, created_ts
		FROM chat_log
		WHERE %s
		ORDER BY id DESC`, strings.Join(where, " AND "))
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list chat logs")
	}
	defer rows.Close()

	list := []*store.ChatLog{}
	for rows.Next() {
		chatLog := &store.ChatLog{}
		if err := rows.Scan(&chatLog.ID, &chatLog.UID, &chatLog.UserID, &chatLog.Payload, &chatLog.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan chat log")
		}
		list = append(list, chatLog)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate chat logs")
	}
	return list, nil
}
