package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/smartchat/internal/profile"
	"github.com/hrygo/smartchat/store/cache"
)

const sessionCacheTTL = 30 * time.Minute

// Store provides database access to sessions and chat logs, with a
// read-through session cache in front of the driver.
type Store struct {
	profile *profile.Profile
	driver  Driver
	cache   cache.Service
}

// New creates a new instance of Store. The cache may be an in-process
// LRU or Redis; a nil cache disables caching entirely.
func New(driver Driver, cache cache.Service, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		cache:   cache,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func sessionCacheKey(userID string) string {
	return "session:" + userID
}

// cachedSession carries the version alongside the context so a cache
// hit still supports the version check on the next write.
type cachedSession struct {
	Version int32           `json:"version"`
	Context json.RawMessage `json:"context"`
}

func (s *Store) cacheSession(ctx context.Context, session *Session) {
	raw, err := json.Marshal(cachedSession{Version: session.Version, Context: session.Context})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, sessionCacheKey(session.UserID), raw, sessionCacheTTL); err != nil {
		slog.Warn("failed to cache session", "user_id", session.UserID, "error", err)
	}
}

// GetSession returns the user's session, or nil when the user has no
// session yet. Cache hits skip the database; cache failures fall back
// to the driver silently since the database is authoritative.
func (s *Store) GetSession(ctx context.Context, userID string) (*Session, error) {
	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, sessionCacheKey(userID)); ok {
			var cached cachedSession
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &Session{UserID: userID, Context: cached.Context, Version: cached.Version}, nil
			}
		}
	}

	session, err := s.driver.GetSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session != nil && s.cache != nil {
		s.cacheSession(ctx, session)
	}
	return session, nil
}

// UpsertSession persists the session with a version check and refreshes
// the cache on success. ErrVersionConflict propagates untouched.
func (s *Store) UpsertSession(ctx context.Context, upsert *UpsertSession) (*Session, error) {
	session, err := s.driver.UpsertSession(ctx, upsert)
	if err != nil {
		if s.cache != nil {
			// A failed write may leave the cache stale relative to a
			// concurrent winner, drop the entry.
			if cerr := s.cache.Invalidate(ctx, sessionCacheKey(upsert.UserID)); cerr != nil {
				slog.Warn("failed to invalidate session cache", "user_id", upsert.UserID, "error", cerr)
			}
		}
		return nil, err
	}
	if s.cache != nil {
		s.cacheSession(ctx, session)
	}
	return session, nil
}

// AppendChatLog records one finalized turn. The UID makes individual
// entries addressable without exposing row ids.
func (s *Store) AppendChatLog(ctx context.Context, userID string, payload []byte) (*ChatLog, error) {
	return s.driver.CreateChatLog(ctx, &ChatLog{
		UID:     shortuuid.New(),
		UserID:  userID,
		Payload: payload,
	})
}

func (s *Store) ListChatLogs(ctx context.Context, find *FindChatLog) ([]*ChatLog, error) {
	return s.driver.ListChatLogs(ctx, find)
}
