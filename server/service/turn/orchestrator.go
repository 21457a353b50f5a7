// Package turn orchestrates one complete conversation turn: session load
// and merge, enrichment, the dialog exchange, directive dispatch, chat
// logging, and session persistence.
package turn

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/hrygo/smartchat/internal/profile"
	"github.com/hrygo/smartchat/plugin/dialog"
	"github.com/hrygo/smartchat/plugin/enrichment"
	"github.com/hrygo/smartchat/plugin/erp"
	errs "github.com/hrygo/smartchat/server/internal/errors"
	"github.com/hrygo/smartchat/server/internal/observability"
	"github.com/hrygo/smartchat/store"
	"github.com/hrygo/smartchat/store/cache"
)

// emptyTextPlaceholder replaces empty inbound text so the enrichment and
// dialog collaborators never see an empty string.
const emptyTextPlaceholder = "test"

// distributedLockTTL bounds how long a crashed instance can hold a user's
// turn lock.
const distributedLockTTL = time.Minute

// webuiSource is the channel source the demo web UI sends.
const webuiSource = "webui"

// SessionStore is the slice of the store the orchestrator needs.
// *store.Store satisfies it.
type SessionStore interface {
	GetSession(ctx context.Context, userID string) (*store.Session, error)
	UpsertSession(ctx context.Context, upsert *store.UpsertSession) (*store.Session, error)
	AppendChatLog(ctx context.Context, userID string, payload []byte) (*store.ChatLog, error)
}

// Orchestrator processes turns. Turns for the same user are serialized
// through a per-user mutex, plus an optional distributed locker when
// several instances share the session store. The session version check at
// save time backstops both.
type Orchestrator struct {
	profile    *profile.Profile
	sessions   SessionStore
	dialog     dialog.Service
	enrichment enrichment.Service
	dispatcher *Dispatcher
	metrics    *observability.Metrics

	locks  *keyedMutex
	locker cache.Locker
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithLocker enables distributed per-user locking.
func WithLocker(locker cache.Locker) Option {
	return func(o *Orchestrator) {
		o.locker = locker
	}
}

// WithMetrics overrides the global metrics sink.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = metrics
	}
}

func NewOrchestrator(
	profile *profile.Profile,
	sessions SessionStore,
	dialogService dialog.Service,
	enrichmentService enrichment.Service,
	erpService erp.Service,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		profile:    profile,
		sessions:   sessions,
		dialog:     dialogService,
		enrichment: enrichmentService,
		metrics:    observability.GlobalMetrics(),
		locks:      newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.dispatcher = NewDispatcher(dialogService, erpService, o.metrics)
	return o
}

// demoSmartChatProfile is the fixed profile the web UI simulation path
// installs in place of channel-provided facts.
func demoSmartChatProfile() map[string]string {
	return map[string]string{
		"ATTUID":        "BJ123A",
		"ACDCat":        "Install/Repair/Voice Support",
		"BAN":           "000000001",
		"CUSTNAME":      "John Smith",
		"DISPATCHTYPE":  "Install",
		"TECHCBR":       "2145555555",
		"LEVEL1":        "Package/Profile Change",
		"TRANSPORTTYPE": "FTTN",
	}
}

// ProcessTurn runs one complete turn for the inbound message and returns
// the final dialog response. Hard failures return a *errs.TurnError; soft
// failures come back inside the response context instead.
func (o *Orchestrator) ProcessTurn(ctx context.Context, msg *dialog.Message, source string) (*dialog.MessageResponse, error) {
	userID := msg.UserID()
	if userID == "" {
		return nil, errs.InvalidArgument("message has no user")
	}

	turnCtx := observability.NewTurnContext(slog.Default(), userID, source)
	ctx = observability.WithTurnContext(ctx, turnCtx)

	unlock := o.locks.Lock(userID)
	defer unlock()
	if o.locker != nil {
		release, err := o.locker.Lock(ctx, "user:"+userID, distributedLockTTL)
		if err != nil {
			return nil, errs.SessionStoreFailed("failed to acquire turn lock", err)
		}
		defer func() {
			if err := release(ctx); err != nil {
				turnCtx.Warn("failed to release turn lock", slog.String("error", err.Error()))
			}
		}()
	}

	o.metrics.RecordTurn()
	resp, err := o.processLocked(ctx, turnCtx, msg, source)
	if err != nil {
		o.metrics.RecordTurnFailure()
		turnCtx.Error("turn failed", err,
			slog.String(observability.LogFieldErrorCode, string(errs.FromError(err, errs.ErrCodeSessionStoreFailed).Code)))
		return nil, err
	}
	turnCtx.Info("turn completed", slog.Int64(observability.LogFieldDuration, turnCtx.DurationMs()))
	return resp, nil
}

func (o *Orchestrator) processLocked(ctx context.Context, turnCtx *observability.TurnContext, msg *dialog.Message, source string) (*dialog.MessageResponse, error) {
	userID := msg.UserID()

	// Channel shorthand: a bare text field beats the structured input.
	input := msg.Input
	if msg.Text != "" {
		input = dialog.Input{Text: msg.Text}
	}

	stored, err := o.sessions.GetSession(ctx, userID)
	if err != nil {
		return nil, errs.SessionStoreFailed("failed to load session", err)
	}

	convCtx := &dialog.Context{}
	var version int32
	if stored != nil {
		version = stored.Version
		if err := json.Unmarshal(stored.Context, convCtx); err != nil {
			// Unreadable state is worse than a fresh conversation.
			turnCtx.Warn("stored context unreadable, starting fresh", slog.String("error", err.Error()))
			convCtx = &dialog.Context{}
		}
	}

	// A stored profile wins over the inbound one; the inbound value only
	// seeds brand-new sessions.
	if convCtx.SmartChat == nil {
		convCtx.SmartChat = map[string]string{}
		if msg.Context != nil && msg.Context.SmartChat != nil {
			convCtx.SmartChat = msg.Context.SmartChat
		}
	}

	if input.Text == "" {
		input.Text = emptyTextPlaceholder
	}

	if source == webuiSource && o.profile.DemoProfile {
		convCtx.SmartChat = demoSmartChatProfile()
	}

	// Enrichment never fails the turn; errors come back inside the maps.
	convCtx.Emotion = o.enrichment.ExtractEmotion(ctx, input.Text)
	entityText := input.Text
	if convCtx.API != nil && convCtx.API.AlchemyText != "" {
		// One-shot prefix the dialog tree set for itself last turn.
		entityText = convCtx.API.AlchemyText + input.Text
		convCtx.API.AlchemyText = ""
	}
	convCtx.Entities = o.enrichment.ExtractEntities(ctx, entityText)

	resp, err := o.dialog.Send(ctx, &dialog.Message{Input: input, Context: convCtx, User: userID})
	if err != nil {
		return nil, errs.EngineUnavailable(err)
	}

	resp, err = o.dispatcher.Dispatch(ctx, resp)
	if err != nil {
		return nil, err
	}

	o.appendChatLog(ctx, turnCtx, userID, resp)

	if err := o.persistSession(ctx, userID, version, resp.Context); err != nil {
		return nil, err
	}
	return resp, nil
}

// appendChatLog records the finalized turn. Chat history is best-effort:
// failures are counted and logged, never surfaced.
func (o *Orchestrator) appendChatLog(ctx context.Context, turnCtx *observability.TurnContext, userID string, resp *dialog.MessageResponse) {
	payload, err := json.Marshal(resp)
	if err == nil {
		_, err = o.sessions.AppendChatLog(ctx, userID, payload)
	}
	if err != nil {
		o.metrics.RecordChatLogDropped()
		turnCtx.Warn("failed to append chat log", slog.String("error", err.Error()))
	}
}

// persistSession clears any spent directive and writes the context back
// under the version loaded at the start of the turn.
func (o *Orchestrator) persistSession(ctx context.Context, userID string, version int32, convCtx *dialog.Context) error {
	if convCtx == nil {
		return errs.SessionStoreFailed("dialog response has no context", nil)
	}
	// A stale directive must never survive into the next turn, even if a
	// dispatch branch missed it.
	if convCtx.API != nil {
		convCtx.API.Run = ""
	}

	raw, err := json.Marshal(convCtx)
	if err != nil {
		return errs.SessionStoreFailed("failed to encode context", pkgerrors.Wrap(err, "marshal context"))
	}
	if _, err := o.sessions.UpsertSession(ctx, &store.UpsertSession{
		UserID:  userID,
		Context: raw,
		Version: version,
	}); err != nil {
		if pkgerrors.Is(err, store.ErrVersionConflict) {
			return errs.SessionConflict(userID)
		}
		return errs.SessionStoreFailed("failed to save session", err)
	}
	return nil
}
