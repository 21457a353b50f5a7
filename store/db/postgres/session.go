package postgres

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
		WHERE user_id = $1`,
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
// matches upsert.Version, returning store.ErrVersionConflict otherwise.
func (d *DB) UpsertSession(ctx context.Context, upsert *store.UpsertSession) (*store.Session, error) {
	now := time.Now().Unix()
	session := &store.Session{UserID: upsert.UserID, Context: upsert.Context}
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO session (user_id, context, version, created_ts, updated_ts)
		VALUES ($1, $2, 1, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			context = EXCLUDED.context,
			version = session.version + 1,
			updated_ts = EXCLUDED.updated_ts
		WHERE session.version = $5
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
