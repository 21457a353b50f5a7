package v1

import (
	"context"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/semaphore"

	"github.com/hrygo/smartchat/internal/profile"
	"github.com/hrygo/smartchat/plugin/dialog"
	"github.com/hrygo/smartchat/store"
)

// TurnProcessor is the orchestrator surface the handlers need.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, msg *dialog.Message, source string) (*dialog.MessageResponse, error)
}

type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store
	Turns   TurnProcessor

	// turnSemaphore bounds concurrent turn processing so a burst cannot
	// exhaust dialog engine connections.
	turnSemaphore *semaphore.Weighted
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store, turns TurnProcessor, maxConcurrentTurns int64) *APIV1Service {
	if maxConcurrentTurns <= 0 {
		maxConcurrentTurns = 64
	}
	return &APIV1Service{
		Profile:       profile,
		Store:         store,
		Turns:         turns,
		turnSemaphore: semaphore.NewWeighted(maxConcurrentTurns),
	}
}

// Register mounts the v1 routes on the given Echo instance.
func (s *APIV1Service) Register(echoServer *echo.Echo) {
	g := echoServer.Group("/api/v1")
	g.POST("/chat", s.Chat)
	g.GET("/chatlogs", s.ListChatLogs)
	g.GET("/metrics", s.Metrics)
}
