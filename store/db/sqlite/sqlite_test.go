package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/smartchat/internal/profile"
	"github.com/hrygo/smartchat/store"
)

func newTestDB(t *testing.T) store.Driver {
	t.Helper()
	driver, err := NewDB(&profile.Profile{
		Mode:   "demo",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "smartchat_test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = driver.Close() })
	require.NoError(t, driver.Migrate(context.Background()))
	return driver
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	driver := newTestDB(t)

	// No session yet.
	session, err := driver.GetSession(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, session)

	// First write creates version 1.
	created, err := driver.UpsertSession(ctx, &store.UpsertSession{
		UserID:  "user-1",
		Context: []byte(`{"api":{}}`),
		Version: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), created.Version)
	assert.NotZero(t, created.CreatedTs)

	loaded, err := driver.GetSession(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "user-1", loaded.UserID)
	assert.JSONEq(t, `{"api":{}}`, string(loaded.Context))
	assert.Equal(t, int32(1), loaded.Version)

	// Update against the loaded version bumps it.
	updated, err := driver.UpsertSession(ctx, &store.UpsertSession{
		UserID:  "user-1",
		Context: []byte(`{"api":{"LOOP":"3400"}}`),
		Version: loaded.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), updated.Version)
}

func TestSessionVersionConflict(t *testing.T) {
	ctx := context.Background()
	driver := newTestDB(t)

	_, err := driver.UpsertSession(ctx, &store.UpsertSession{
		UserID:  "user-1",
		Context: []byte(`{}`),
		Version: 0,
	})
	require.NoError(t, err)

	// Writing with a stale version loses the race.
	_, err = driver.UpsertSession(ctx, &store.UpsertSession{
		UserID:  "user-1",
		Context: []byte(`{"stale":true}`),
		Version: 0,
	})
	assert.ErrorIs(t, err, store.ErrVersionConflict)

	_, err = driver.UpsertSession(ctx, &store.UpsertSession{
		UserID:  "user-1",
		Context: []byte(`{"stale":true}`),
		Version: 7,
	})
	assert.ErrorIs(t, err, store.ErrVersionConflict)

	// The stored context is untouched by the losing writes.
	session, err := driver.GetSession(ctx, "user-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(session.Context))
	assert.Equal(t, int32(1), session.Version)
}

func TestChatLogAppendAndList(t *testing.T) {
	ctx := context.Background()
	driver := newTestDB(t)

	for i, payload := range []string{`{"turn":1}`, `{"turn":2}`, `{"turn":3}`} {
		created, err := driver.CreateChatLog(ctx, &store.ChatLog{
			UID:     "uid-" + string(rune('a'+i)),
			UserID:  "user-1",
			Payload: []byte(payload),
		})
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
	}
	_, err := driver.CreateChatLog(ctx, &store.ChatLog{
		UID:     "uid-other",
		UserID:  "user-2",
		Payload: []byte(`{"turn":1}`),
	})
	require.NoError(t, err)

	userID := "user-1"
	logs, err := driver.ListChatLogs(ctx, &store.FindChatLog{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, logs, 3)
	// Most recent first.
	assert.JSONEq(t, `{"turn":3}`, string(logs[0].Payload))
	assert.JSONEq(t, `{"turn":1}`, string(logs[2].Payload))

	limit := 2
	logs, err = driver.ListChatLogs(ctx, &store.FindChatLog{UserID: &userID, Limit: &limit})
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	all, err := driver.ListChatLogs(ctx, &store.FindChatLog{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
