// Package repository defines the document-store contract used by the reconciler
package repository

import (
	"context"

	"github.com/navikt/benchroom/internal/models"
)

// ErrNotFound is returned when a requested document does not exist
var ErrNotFound = models.ErrNotFound

// Repository is the document store holding the room record and the check-in ledger.
// Each call reads or writes a single document; there are no cross-document transactions.
type Repository interface {
	// Room operations
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	SaveRoom(ctx context.Context, room *models.Room) error
	// CreateRoomIfAbsent writes room only if no document exists under its id
	CreateRoomIfAbsent(ctx context.Context, room *models.Room) (bool, error)
	// UpdateRoom applies a partial update; it fails with ErrNotFound for a missing room
	UpdateRoom(ctx context.Context, id string, update models.RoomUpdate) error

	// Check-in ledger operations
	AddCheckIn(ctx context.Context, checkIn *models.CheckIn) (string, error)
	GetCheckIn(ctx context.Context, id string) (*models.CheckIn, error)
	UpdateCheckIn(ctx context.Context, id string, update models.CheckInUpdate) error
	// ListCheckIns returns matching records, newest first
	ListCheckIns(ctx context.Context, filter models.CheckInFilter) ([]*models.CheckIn, error)

	// Watch streams a change notification for every write until ctx is done
	Watch(ctx context.Context) (<-chan models.Change, error)

	Ping(ctx context.Context) error
	Close() error
}
