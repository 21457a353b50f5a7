package store

// ChatLog is one finalized turn appended to the chat history. Payload is the
// full message+context JSON; append order equals turn completion order per
// user, with no cross-user ordering guarantee.
type ChatLog struct {
	ID        int32
	UID       string
	UserID    string
	Payload   []byte
	CreatedTs int64
}

// FindChatLog filters chat log reads.
type FindChatLog struct {
	UserID *string
	Limit  *int
}
