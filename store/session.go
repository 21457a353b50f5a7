package store

import "errors"

// ErrVersionConflict is returned when a session upsert loses a
// compare-and-swap race against a concurrent turn.
var ErrVersionConflict = errors.New("session version conflict")

// Session is the durable per-user conversational state carried across turns.
// Context is the serialized conversation context; the store never inspects it.
type Session struct {
	UserID    string
	Context   []byte
	Version   int32
	CreatedTs int64
	UpdatedTs int64
}

// UpsertSession creates or updates a session. Version must be the version
// the caller loaded (zero for a brand-new session); the write fails with
// ErrVersionConflict when the stored version has moved.
type UpsertSession struct {
	UserID  string
	Context []byte
	Version int32
}
