package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/smartchat/store/cache"
)

// fakeDriver keeps sessions in memory and counts reads so cache
// behavior is observable.
type fakeDriver struct {
	sessions map[string]*Session
	chatLogs []*ChatLog
	getCalls int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{sessions: map[string]*Session{}}
}

func (d *fakeDriver) GetDB() *sql.DB                { return nil }
func (d *fakeDriver) Close() error                  { return nil }
func (d *fakeDriver) Migrate(context.Context) error { return nil }

func (d *fakeDriver) GetSession(_ context.Context, userID string) (*Session, error) {
	d.getCalls++
	session, ok := d.sessions[userID]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (d *fakeDriver) UpsertSession(_ context.Context, upsert *UpsertSession) (*Session, error) {
	existing, ok := d.sessions[upsert.UserID]
	if ok && existing.Version != upsert.Version {
		return nil, ErrVersionConflict
	}
	if !ok && upsert.Version != 0 {
		return nil, ErrVersionConflict
	}
	session := &Session{
		UserID:    upsert.UserID,
		Context:   upsert.Context,
		Version:   upsert.Version + 1,
		CreatedTs: time.Now().Unix(),
		UpdatedTs: time.Now().Unix(),
	}
	d.sessions[upsert.UserID] = session
	copied := *session
	return &copied, nil
}

func (d *fakeDriver) CreateChatLog(_ context.Context, create *ChatLog) (*ChatLog, error) {
	create.ID = int32(len(d.chatLogs) + 1)
	create.CreatedTs = time.Now().Unix()
	d.chatLogs = append(d.chatLogs, create)
	return create, nil
}

func (d *fakeDriver) ListChatLogs(_ context.Context, find *FindChatLog) ([]*ChatLog, error) {
	list := []*ChatLog{}
	for i := len(d.chatLogs) - 1; i >= 0; i-- {
		log := d.chatLogs[i]
		if find.UserID != nil && log.UserID != *find.UserID {
			continue
		}
		list = append(list, log)
		if find.Limit != nil && len(list) >= *find.Limit {
			break
		}
	}
	return list, nil
}

func TestStoreSessionCacheHit(t *testing.T) {
	ctx := context.Background()
	driver := newFakeDriver()
	s := New(driver, cache.NewLRUCache(100, time.Minute), nil)

	_, err := s.UpsertSession(ctx, &UpsertSession{UserID: "user-1", Context: []byte(`{"a":1}`)})
	require.NoError(t, err)

	// Upsert primed the cache, so the read never hits the driver.
	session, err := s.GetSession(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.JSONEq(t, `{"a":1}`, string(session.Context))
	assert.Equal(t, int32(1), session.Version)
	assert.Zero(t, driver.getCalls)

	// A cache-served version still passes the write check.
	_, err = s.UpsertSession(ctx, &UpsertSession{UserID: "user-1", Context: []byte(`{"a":2}`), Version: session.Version})
	require.NoError(t, err)
}

func TestStoreSessionCacheMiss(t *testing.T) {
	ctx := context.Background()
	driver := newFakeDriver()
	driver.sessions["user-1"] = &Session{UserID: "user-1", Context: []byte(`{"b":2}`), Version: 3}
	s := New(driver, cache.NewLRUCache(100, time.Minute), nil)

	session, err := s.GetSession(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, int32(3), session.Version)
	assert.Equal(t, 1, driver.getCalls)

	// Second read is served from cache.
	_, err = s.GetSession(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, driver.getCalls)
}

func TestStoreUpsertConflictInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	driver := newFakeDriver()
	s := New(driver, cache.NewLRUCache(100, time.Minute), nil)

	_, err := s.UpsertSession(ctx, &UpsertSession{UserID: "user-1", Context: []byte(`{}`)})
	require.NoError(t, err)

	_, err = s.UpsertSession(ctx, &UpsertSession{UserID: "user-1", Context: []byte(`{}`), Version: 9})
	assert.ErrorIs(t, err, ErrVersionConflict)

	// Cache was dropped, so the next read consults the driver again.
	_, err = s.GetSession(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, driver.getCalls)
}

func TestStoreWithoutCache(t *testing.T) {
	ctx := context.Background()
	driver := newFakeDriver()
	s := New(driver, nil, nil)

	_, err := s.UpsertSession(ctx, &UpsertSession{UserID: "user-1", Context: []byte(`{}`)})
	require.NoError(t, err)

	session, err := s.GetSession(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, 1, driver.getCalls)
}

func TestStoreAppendChatLog(t *testing.T) {
	ctx := context.Background()
	driver := newFakeDriver()
	s := New(driver, nil, nil)

	first, err := s.AppendChatLog(ctx, "user-1", []byte(`{"turn":1}`))
	require.NoError(t, err)
	assert.NotEmpty(t, first.UID)

	second, err := s.AppendChatLog(ctx, "user-1", []byte(`{"turn":2}`))
	require.NoError(t, err)
	assert.NotEqual(t, first.UID, second.UID)

	userID := "user-1"
	logs, err := s.ListChatLogs(ctx, &FindChatLog{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.JSONEq(t, `{"turn":2}`, string(logs[0].Payload))
}
