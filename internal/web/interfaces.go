package web

import (
	"context"

	"github.com/navikt/benchroom/internal/models"
	"github.com/navikt/benchroom/internal/service"
)

// OccupancyViewer defines the reconciler operations used by the web pages
type OccupancyViewer interface {
	Benches() []models.Bench
	RoomStatus(ctx context.Context) (*models.RoomStatus, error)
	AvailableBenches(ctx context.Context) ([]models.Bench, error)
	UpdateRoomInfo(ctx context.Context, update service.RoomInfoUpdate) (*models.Room, error)
	SubmitCheckIn(ctx context.Context, req service.CheckInRequest) (string, error)
	CheckOut(ctx context.Context, checkInID string, benches []models.Bench) error
	ActiveCheckIns(ctx context.Context) ([]*models.CheckIn, error)
	AllCheckIns(ctx context.Context) ([]*models.CheckIn, error)
}

// SupportDesk defines the support session operations used by the web pages
type SupportDesk interface {
	StartSession(ctx context.Context, userName string) (*models.SupportSession, error)
	ListActiveSessions(ctx context.Context) []*models.SupportSession
	EndSession(ctx context.Context, id string) error
}
