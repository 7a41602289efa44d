package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/navikt/benchroom/internal/logging"
	"github.com/navikt/benchroom/internal/metrics"
	"github.com/navikt/benchroom/internal/models"
	"github.com/navikt/benchroom/internal/repository"
	"github.com/navikt/benchroom/internal/utils"
	"github.com/navikt/benchroom/internal/validation"
)

// UpdateCallback is called for every change to the room, the ledger or support sessions
type UpdateCallback func(models.Change)

// CheckInRequest is a visitor's claim on one or more benches
type CheckInRequest struct {
	Benches []models.Bench `json:"benches" validate:"required,min=1,dive,bench"`
	// TimeIn defaults to the current wall-clock time when empty
	TimeIn  string `json:"timeIn"`
	TimeOut string `json:"timeOut" validate:"required"`
}

// CheckOutRequest names the benches to release; empty means the record's own benches
type CheckOutRequest struct {
	Benches []models.Bench `json:"benches"`
}

// RoomInfoUpdate is the admin edit of the room document
type RoomInfoUpdate struct {
	Name             *string `json:"name" validate:"omitnil,notblank"`
	Availability     *bool   `json:"availability"`
	Capacity         *int    `json:"capacity" validate:"omitnil,gte=0"`
	CurrentOccupancy *int    `json:"currentOccupancy" validate:"omitnil,gte=0"`
}

// OccupancyService keeps the room's occupancy counter and bench set in step with
// the check-in ledger. Each operation is a sequence of independent store writes
// with no transaction around them; concurrent callers can interleave.
type OccupancyService struct {
	repo    repository.Repository
	roomID  string
	benches  []models.Bench
	benchSet validation.BenchSet
	now      func() time.Time

	callbacksMu     sync.RWMutex
	updateCallbacks []UpdateCallback
}

// NewOccupancyService creates a service for the room roomID with the given bench enumeration
func NewOccupancyService(repo repository.Repository, roomID string, benches []models.Bench) *OccupancyService {
	enumeration := make([]models.Bench, len(benches))
	copy(enumeration, benches)

	return &OccupancyService{
		repo:            repo,
		roomID:          roomID,
		benches:         enumeration,
		benchSet:        validation.NewBenchSet(enumeration),
		now:             time.Now,
		updateCallbacks: make([]UpdateCallback, 0),
	}
}

// SetClock replaces the time source
func (s *OccupancyService) SetClock(now func() time.Time) {
	s.now = now
}

// Benches returns the configured bench enumeration
func (s *OccupancyService) Benches() []models.Bench {
	result := make([]models.Bench, len(s.benches))
	copy(result, s.benches)
	return result
}

// RegisterUpdateCallback registers a callback function to be called when data changes
func (s *OccupancyService) RegisterUpdateCallback(callback UpdateCallback) {
	s.callbacksMu.Lock()
	defer s.callbacksMu.Unlock()
	s.updateCallbacks = append(s.updateCallbacks, callback)
}

// notifyUpdate calls all registered callbacks with the change
func (s *OccupancyService) notifyUpdate(change models.Change) {
	s.callbacksMu.RLock()
	callbacks := make([]UpdateCallback, len(s.updateCallbacks))
	copy(callbacks, s.updateCallbacks)
	s.callbacksMu.RUnlock()

	for _, callback := range callbacks {
		callback(change)
	}
}

// Run watches the store and forwards every change to the registered callbacks.
// It returns when ctx is done or the store closes the stream.
func (s *OccupancyService) Run(ctx context.Context) error {
	changes, err := s.repo.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch store: %w", err)
	}

	for change := range changes {
		if change.Kind == models.ChangeKindRoom && change.ID == s.roomID {
			if room, err := s.repo.GetRoom(ctx, s.roomID); err == nil {
				metrics.RecordRoom(room)
			}
		}
		s.notifyUpdate(change)
	}
	return nil
}

// EnsureRoom writes the placeholder room if none exists and returns the stored room
func (s *OccupancyService) EnsureRoom(ctx context.Context) (*models.Room, error) {
	created, err := s.repo.CreateRoomIfAbsent(ctx, models.NewSampleRoom(s.roomID))
	if err != nil {
		return nil, fmt.Errorf("failed to seed room: %w", err)
	}
	if created {
		logging.Info().Str("roomId", s.roomID).Msg("Created sample room")
	}

	room, err := s.repo.GetRoom(ctx, s.roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to read room: %w", err)
	}
	metrics.RecordRoom(room)
	return room, nil
}

// GetRoom returns the room document
func (s *OccupancyService) GetRoom(ctx context.Context) (*models.Room, error) {
	return s.repo.GetRoom(ctx, s.roomID)
}

// UpdateRoomInfo applies an admin edit to the room and returns the result.
// The bench set is never edited here.
func (s *OccupancyService) UpdateRoomInfo(ctx context.Context, update RoomInfoUpdate) (*models.Room, error) {
	if verr := validation.ValidateStruct(&update); verr != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoomUpdate, verr)
	}

	err := s.repo.UpdateRoom(ctx, s.roomID, models.RoomUpdate{
		Name:             update.Name,
		Availability:     update.Availability,
		Capacity:         update.Capacity,
		CurrentOccupancy: update.CurrentOccupancy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update room: %w", err)
	}

	room, err := s.repo.GetRoom(ctx, s.roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to read room: %w", err)
	}
	metrics.RecordRoom(room)
	return room, nil
}

// SubmitCheckIn records a check-in and then adds its benches to the room.
// The two writes are independent: if the room update fails the check-in stays
// in the ledger and the error is returned together with its id.
// A missing room document is left alone.
func (s *OccupancyService) SubmitCheckIn(ctx context.Context, req CheckInRequest) (string, error) {
	if verr := validation.ValidateStructCtx(validation.WithBenches(ctx, s.benchSet), &req); verr != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidCheckIn, verr)
	}

	now := s.now()
	timeIn := req.TimeIn
	if timeIn == "" {
		timeIn = now.Format(models.TimeOfDayLayout)
	}

	benches := make([]models.Bench, len(req.Benches))
	copy(benches, req.Benches)

	id, err := s.repo.AddCheckIn(ctx, &models.CheckIn{
		Benches:    benches,
		TimeIn:     timeIn,
		TimeOut:    req.TimeOut,
		Timestamp:  now,
		CheckedOut: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to add check-in: %w", err)
	}
	metrics.CheckInsSubmitted.Inc()

	room, err := s.repo.GetRoom(ctx, s.roomID)
	if errors.Is(err, repository.ErrNotFound) {
		logging.Warn().Str("checkInId", id).Str("roomId", s.roomID).Msg("Room not found, occupancy not updated")
		return id, nil
	}
	if err != nil {
		return id, s.orphaned(id, err)
	}

	inUse := models.UnionBenches(room.BenchesInUse, benches)
	occupancy := room.CurrentOccupancy + len(benches)
	if err := s.repo.UpdateRoom(ctx, s.roomID, models.RoomUpdate{
		CurrentOccupancy: &occupancy,
		BenchesInUse:     &inUse,
	}); err != nil {
		return id, s.orphaned(id, err)
	}

	logging.Info().
		Str("checkInId", id).
		Str("benches", utils.SanitizeLogList(benches)).
		Int("occupancy", occupancy).
		Msg("Check-in submitted")
	return id, nil
}

func (s *OccupancyService) orphaned(checkInID string, err error) error {
	metrics.OrphanedCheckIns.Inc()
	logging.Error().Err(err).Str("checkInId", checkInID).Msg("Check-in stored but room update failed")
	return fmt.Errorf("failed to update room for check-in %s: %w", checkInID, err)
}

// CheckOut releases benches from the room and marks the check-in as checked out.
// When benches is empty the record's own benches are released. The benches are
// removed from the room regardless of which check-in claimed them.
func (s *OccupancyService) CheckOut(ctx context.Context, checkInID string, benches []models.Bench) error {
	checkIn, err := s.repo.GetCheckIn(ctx, checkInID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.RecordCheckOut("not_found")
		} else {
			metrics.RecordCheckOut("error")
		}
		return fmt.Errorf("failed to get check-in %s: %w", checkInID, err)
	}
	if checkIn.CheckedOut {
		metrics.RecordCheckOut("already_checked_out")
		return ErrAlreadyCheckedOut
	}

	if len(benches) == 0 {
		benches = checkIn.Benches
	}

	room, err := s.repo.GetRoom(ctx, s.roomID)
	if err != nil {
		metrics.RecordCheckOut("error")
		return fmt.Errorf("failed to read room: %w", err)
	}

	remaining := models.SubtractBenches(room.BenchesInUse, benches)
	occupancy := max(0, room.CurrentOccupancy-len(benches))
	if err := s.repo.UpdateRoom(ctx, s.roomID, models.RoomUpdate{
		CurrentOccupancy: &occupancy,
		BenchesInUse:     &remaining,
	}); err != nil {
		metrics.RecordCheckOut("error")
		return fmt.Errorf("failed to update room: %w", err)
	}

	checkedOut := true
	now := s.now()
	if err := s.repo.UpdateCheckIn(ctx, checkInID, models.CheckInUpdate{
		CheckedOut:   &checkedOut,
		CheckOutTime: &now,
	}); err != nil {
		metrics.RecordCheckOut("error")
		logging.Error().Err(err).Str("checkInId", checkInID).Msg("Benches released but check-in not marked as checked out")
		return fmt.Errorf("failed to mark check-in %s as checked out: %w", checkInID, err)
	}

	metrics.RecordCheckOut("ok")
	logging.Info().
		Str("checkInId", checkInID).
		Str("benches", utils.SanitizeLogList(benches)).
		Int("occupancy", occupancy).
		Msg("Checked out")
	return nil
}

// AvailableBenches returns the configured benches not currently in use, in enumeration order.
// Nothing is reserved; the result can be stale by the time it is used.
func (s *OccupancyService) AvailableBenches(ctx context.Context) ([]models.Bench, error) {
	room, err := s.repo.GetRoom(ctx, s.roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return s.Benches(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read room: %w", err)
	}

	available := make([]models.Bench, 0, len(s.benches))
	for _, bench := range s.benches {
		if !room.IsBenchInUse(bench) {
			available = append(available, bench)
		}
	}
	return available, nil
}

// GetCheckIn returns a single ledger record
func (s *OccupancyService) GetCheckIn(ctx context.Context, id string) (*models.CheckIn, error) {
	return s.repo.GetCheckIn(ctx, id)
}

// ActiveCheckIns returns the check-ins not yet checked out, newest first
func (s *OccupancyService) ActiveCheckIns(ctx context.Context) ([]*models.CheckIn, error) {
	return s.repo.ListCheckIns(ctx, models.CheckInFilter{ActiveOnly: true})
}

// AllCheckIns returns the whole ledger, newest first
func (s *OccupancyService) AllCheckIns(ctx context.Context) ([]*models.CheckIn, error) {
	return s.repo.ListCheckIns(ctx, models.CheckInFilter{})
}

// RoomStatus returns the room with the in-use state of every configured bench
func (s *OccupancyService) RoomStatus(ctx context.Context) (*models.RoomStatus, error) {
	room, err := s.repo.GetRoom(ctx, s.roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to read room: %w", err)
	}

	status := &models.RoomStatus{
		Room:    room,
		Benches: make([]models.BenchStatus, len(s.benches)),
		Drift:   room.Drift(),
	}
	for i, bench := range s.benches {
		status.Benches[i] = models.BenchStatus{Bench: bench, InUse: room.IsBenchInUse(bench)}
	}
	return status, nil
}
