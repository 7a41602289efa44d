package api

import (
	"context"
	"net/http"

	"github.com/navikt/benchroom/internal/models"
	"github.com/navikt/benchroom/internal/service"
)

// OccupancyServicer defines the reconciler operations needed by API handlers
type OccupancyServicer interface {
	GetRoom(ctx context.Context) (*models.Room, error)
	UpdateRoomInfo(ctx context.Context, update service.RoomInfoUpdate) (*models.Room, error)
	AvailableBenches(ctx context.Context) ([]models.Bench, error)

	SubmitCheckIn(ctx context.Context, req service.CheckInRequest) (string, error)
	CheckOut(ctx context.Context, checkInID string, benches []models.Bench) error
	GetCheckIn(ctx context.Context, id string) (*models.CheckIn, error)
	ActiveCheckIns(ctx context.Context) ([]*models.CheckIn, error)
	AllCheckIns(ctx context.Context) ([]*models.CheckIn, error)
}

// SupportServicer defines the support session operations needed by API handlers
type SupportServicer interface {
	StartSession(ctx context.Context, userName string) (*models.SupportSession, error)
	ListActiveSessions(ctx context.Context) []*models.SupportSession
	EndSession(ctx context.Context, id string) error
	ApplyCallEvent(ctx context.Context, callID string, state models.CallState) (*models.SupportSession, error)
}

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// AdminGuard protects admin endpoints with authentication and an authorization decision
type AdminGuard interface {
	Require(object, action string, next http.HandlerFunc) http.HandlerFunc
}
