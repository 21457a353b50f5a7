package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/smartchat/store"
)

func (d *DB) GetSession(ctx context.Context, userID string) (*store.Session, error) {
	session := &store.Session{}
	err := d.db.QueryRowContext(ctx, `
		SELECT user_id, context, version, created_ts, updated_ts
		FROM session
		WHERE user_id = ?`,
		userID,
	).Scan(&session.UserID, &session.Context, &session.Version, &session.CreatedTs, &session.UpdatedTs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get session")
	}
	return session, nil
}

// UpsertSession writes the session only when the stored version still
// matches upsert.Version. A new session is created with version 1 when
// upsert.Version is zero and no row exists. Any mismatch returns
// store.ErrVersionConflict so the caller can retry the whole turn.
func (d *DB) UpsertSession(ctx context.Context, upsert *store.UpsertSession) (*store.Session, error) {
	now := time.Now().Unix()
	session := &store.Session{UserID: upsert.UserID, Context: upsert.Context}
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO session (user_id, context, version, created_ts, updated_ts)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			context = excluded.context,
			version = session.version + 1,
			updated_ts = excluded.updated_ts
		WHERE session.version = ?
		RETURNING version, created_ts, updated_ts`,
		upsert.UserID, upsert.Context, now, now, upsert.Version,
	).Scan(&session.Version, &session.CreatedTs, &session.UpdatedTs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrVersionConflict
		}
		return nil, errors.Wrap(err, "failed to upsert session")
	}
	return session, nil
}
