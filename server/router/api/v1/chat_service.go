package v1

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/smartchat/plugin/dialog"
	errs "github.com/hrygo/smartchat/server/internal/errors"
	"github.com/hrygo/smartchat/server/internal/observability"
	"github.com/hrygo/smartchat/store"
)

// defaultSource is assumed when the channel does not identify itself.
const defaultSource = "smartchat"

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// chatReply is the caller-facing shape: output only, with the engine's
// diagnostic fields stripped.
type chatReply struct {
	Output dialog.Output `json:"output"`
}

// Chat runs one conversation turn for the posted message.
func (s *APIV1Service) Chat(c echo.Context) error {
	if !s.Profile.IsEngineConfigured() {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error: "dialog engine is not configured",
			Code:  string(errs.ErrCodeEngineNotConfigured),
		})
	}

	msg := &dialog.Message{}
	if err := c.Bind(msg); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	source := c.QueryParam("source")
	if source == "" {
		source = c.Request().Header.Get("X-Channel-Source")
	}
	if source == "" {
		source = defaultSource
	}

	ctx := c.Request().Context()
	if err := s.turnSemaphore.Acquire(ctx, 1); err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "server busy"})
	}
	defer s.turnSemaphore.Release(1)

	resp, err := s.Turns.ProcessTurn(ctx, msg, source)
	if err != nil {
		turnErr := errs.FromError(err, errs.ErrCodeSessionStoreFailed)
		return c.JSON(turnErr.HTTPStatus(), errorResponse{
			Error: turnErr.Message,
			Code:  string(turnErr.Code),
		})
	}

	// Node-visit traces and engine log messages are internal diagnostics.
	out := resp.Output
	out.NodesVisited = nil
	out.LogMessages = nil
	return c.JSON(http.StatusOK, chatReply{Output: out})
}

type chatLogItem struct {
	UID       string          `json:"uid"`
	UserID    string          `json:"userId"`
	Payload   json.RawMessage `json:"payload"`
	CreatedTs int64           `json:"createdTs"`
}

// ListChatLogs returns recent chat log entries, newest first.
func (s *APIV1Service) ListChatLogs(c echo.Context) error {
	userID := c.QueryParam("user")
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid limit"})
		}
		limit = parsed
	}

	find := &store.FindChatLog{Limit: &limit}
	if userID != "" {
		find.UserID = &userID
	}

	logs, err := s.Store.ListChatLogs(c.Request().Context(), find)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to list chat logs"})
	}

	items := make([]chatLogItem, 0, len(logs))
	for _, log := range logs {
		items = append(items, chatLogItem{
			UID:       log.UID,
			UserID:    log.UserID,
			Payload:   json.RawMessage(log.Payload),
			CreatedTs: log.CreatedTs,
		})
	}
	return c.JSON(http.StatusOK, items)
}

// Metrics exposes the in-process turn counters.
func (s *APIV1Service) Metrics(c echo.Context) error {
	return c.JSON(http.StatusOK, observability.GlobalMetrics().SnapshotNow())
}
