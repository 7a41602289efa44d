package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/navikt/benchroom/internal/models"
	"github.com/navikt/benchroom/internal/repository"
	"github.com/navikt/benchroom/internal/repository/memory"
	"github.com/navikt/benchroom/internal/service"
	"github.com/navikt/benchroom/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 1, 9, 15, 0, 0, time.UTC)

func newTestService(t *testing.T) (*service.OccupancyService, *memory.Repository) {
	t.Helper()

	repo := memory.NewRepository()
	svc := service.NewOccupancyService(repo, models.DefaultRoomID, models.DefaultBenches)
	svc.SetClock(func() time.Time { return fixedNow })

	_, err := svc.EnsureRoom(context.Background())
	require.NoError(t, err)
	return svc, repo
}

func submit(t *testing.T, svc *service.OccupancyService, benches ...models.Bench) string {
	t.Helper()

	id, err := svc.SubmitCheckIn(context.Background(), service.CheckInRequest{
		Benches: benches,
		TimeIn:  "09:00",
		TimeOut: "12:00",
	})
	require.NoError(t, err)
	return id
}

func getRoom(t *testing.T, svc *service.OccupancyService) *models.Room {
	t.Helper()

	room, err := svc.GetRoom(context.Background())
	require.NoError(t, err)
	return room
}

func TestEnsureRoom(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	room := getRoom(t, svc)
	assert.Equal(t, "Sample Room", room.Name)
	assert.True(t, room.Availability)
	assert.Equal(t, 10, room.Capacity)
	assert.Equal(t, 0, room.CurrentOccupancy)
	assert.Empty(t, room.BenchesInUse)

	occupancy := 4
	require.NoError(t, repo.UpdateRoom(ctx, models.DefaultRoomID, models.RoomUpdate{CurrentOccupancy: &occupancy}))

	room, err := svc.EnsureRoom(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, room.CurrentOccupancy, "Existing room must not be reset")
}

func TestSubmitCheckIn_RemovesBenchesFromAvailable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id := submit(t, svc, "General", "RF")
	assert.NotEmpty(t, id)

	available, err := svc.AvailableBenches(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Bench{"Parametric", "Assembly", "Rework"}, available)

	room := getRoom(t, svc)
	assert.Equal(t, 2, room.CurrentOccupancy)
	assert.ElementsMatch(t, []models.Bench{"General", "RF"}, room.BenchesInUse)

	checkIn, err := svc.GetCheckIn(ctx, id)
	require.NoError(t, err)
	assert.False(t, checkIn.CheckedOut)
	assert.Nil(t, checkIn.CheckOutTime)
	assert.True(t, fixedNow.Equal(checkIn.Timestamp))
}

func TestSubmitCheckIn_Validation(t *testing.T) {
	tests := []struct {
		name  string
		req   service.CheckInRequest
		field string
	}{
		{"NoBenches", service.CheckInRequest{TimeOut: "12:00"}, "benches"},
		{"EmptyBenches", service.CheckInRequest{Benches: []models.Bench{}, TimeOut: "12:00"}, "benches"},
		{"UnknownBench", service.CheckInRequest{Benches: []models.Bench{"Forge"}, TimeOut: "12:00"}, "benches[0]"},
		{"MissingTimeOut", service.CheckInRequest{Benches: []models.Bench{"General"}}, "timeOut"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			ctx := context.Background()

			id, err := svc.SubmitCheckIn(ctx, tt.req)
			assert.Empty(t, id)
			require.ErrorIs(t, err, service.ErrInvalidCheckIn)

			var verr *validation.RequestValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Errors()[0].Field())

			all, err := svc.AllCheckIns(ctx)
			require.NoError(t, err)
			assert.Empty(t, all, "Nothing may be written for an invalid request")

			room := getRoom(t, svc)
			assert.Equal(t, 0, room.CurrentOccupancy)
			assert.Empty(t, room.BenchesInUse)
		})
	}
}

func TestSubmitCheckIn_EnumerationIsPerService(t *testing.T) {
	ctx := context.Background()
	shop := service.NewOccupancyService(memory.NewRepository(), "shop", []models.Bench{"Lathe"})
	lab, _ := newTestService(t)

	_, err := shop.SubmitCheckIn(ctx, service.CheckInRequest{Benches: []models.Bench{"Lathe"}, TimeOut: "12:00"})
	require.NoError(t, err)
	_, err = shop.SubmitCheckIn(ctx, service.CheckInRequest{Benches: []models.Bench{"General"}, TimeOut: "12:00"})
	assert.ErrorIs(t, err, service.ErrInvalidCheckIn)

	// Building the second service must not change what the first one accepts
	submit(t, lab, "General")
	_, err = lab.SubmitCheckIn(ctx, service.CheckInRequest{Benches: []models.Bench{"Lathe"}, TimeOut: "12:00"})
	assert.ErrorIs(t, err, service.ErrInvalidCheckIn)
}

func TestSubmitCheckIn_DefaultsTimeIn(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.SubmitCheckIn(ctx, service.CheckInRequest{Benches: []models.Bench{"General"}, TimeOut: "08:00"})
	require.NoError(t, err)

	checkIn, err := svc.GetCheckIn(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "09:15", checkIn.TimeIn)
	assert.Equal(t, "08:00", checkIn.TimeOut, "Time window order is not checked")
}

func TestSubmitCheckIn_DuplicateBenchDriftsOccupancy(t *testing.T) {
	svc, _ := newTestService(t)

	submit(t, svc, "General")
	submit(t, svc, "General")

	room := getRoom(t, svc)
	assert.Equal(t, []models.Bench{"General"}, room.BenchesInUse)
	assert.Equal(t, 2, room.CurrentOccupancy)
	assert.Equal(t, 1, room.Drift())
}

func TestSubmitCheckIn_MissingRoom(t *testing.T) {
	repo := memory.NewRepository()
	svc := service.NewOccupancyService(repo, models.DefaultRoomID, models.DefaultBenches)
	ctx := context.Background()

	id := submit(t, svc, "General")

	_, err := repo.GetRoom(ctx, models.DefaultRoomID)
	assert.ErrorIs(t, err, repository.ErrNotFound, "Submit must not create the room")

	checkIn, err := repo.GetCheckIn(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []models.Bench{"General"}, checkIn.Benches)

	available, err := svc.AvailableBenches(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultBenches, available)
}

// failingRoomUpdates rejects every room write
type failingRoomUpdates struct {
	repository.Repository
}

func (r failingRoomUpdates) UpdateRoom(ctx context.Context, id string, update models.RoomUpdate) error {
	return errors.New("store unavailable")
}

func TestSubmitCheckIn_OrphanOnRoomFailure(t *testing.T) {
	repo := memory.NewRepository()
	ctx := context.Background()
	_, err := repo.CreateRoomIfAbsent(ctx, models.NewSampleRoom(models.DefaultRoomID))
	require.NoError(t, err)

	svc := service.NewOccupancyService(failingRoomUpdates{repo}, models.DefaultRoomID, models.DefaultBenches)

	id, err := svc.SubmitCheckIn(ctx, service.CheckInRequest{Benches: []models.Bench{"General"}, TimeOut: "12:00"})
	require.Error(t, err)
	assert.NotEmpty(t, id)
	assert.Contains(t, err.Error(), id)

	checkIn, err := repo.GetCheckIn(ctx, id)
	require.NoError(t, err)
	assert.True(t, checkIn.IsActive(), "The ledger entry is left in place")

	room, err := repo.GetRoom(ctx, models.DefaultRoomID)
	require.NoError(t, err)
	assert.Empty(t, room.BenchesInUse)
}

func TestCheckOut_RoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id := submit(t, svc, "RF")

	available, err := svc.AvailableBenches(ctx)
	require.NoError(t, err)
	assert.NotContains(t, available, models.Bench("RF"))

	require.NoError(t, svc.CheckOut(ctx, id, []models.Bench{"RF"}))

	available, err = svc.AvailableBenches(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultBenches, available)

	room := getRoom(t, svc)
	assert.Equal(t, 0, room.CurrentOccupancy)
	assert.Empty(t, room.BenchesInUse)

	checkIn, err := svc.GetCheckIn(ctx, id)
	require.NoError(t, err)
	assert.True(t, checkIn.CheckedOut)
	require.NotNil(t, checkIn.CheckOutTime)
	assert.True(t, fixedNow.Equal(*checkIn.CheckOutTime))
}

func TestCheckOut_DefaultsToRecordBenches(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id := submit(t, svc, "General", "Rework")
	require.NoError(t, svc.CheckOut(ctx, id, nil))

	room := getRoom(t, svc)
	assert.Equal(t, 0, room.CurrentOccupancy)
	assert.Empty(t, room.BenchesInUse)
}

func TestCheckOut_Twice(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first := submit(t, svc, "General")
	submit(t, svc, "RF")

	require.NoError(t, svc.CheckOut(ctx, first, []models.Bench{"General"}))
	before := getRoom(t, svc)
	assert.Equal(t, 1, before.CurrentOccupancy)

	err := svc.CheckOut(ctx, first, []models.Bench{"General"})
	assert.ErrorIs(t, err, service.ErrAlreadyCheckedOut)

	after := getRoom(t, svc)
	assert.Equal(t, before, after, "Room must be untouched by a repeated checkout")
}

func TestCheckOut_FloorsOccupancyAtZero(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id := submit(t, svc, "General", "RF")

	zero := 0
	_, err := svc.UpdateRoomInfo(ctx, service.RoomInfoUpdate{CurrentOccupancy: &zero})
	require.NoError(t, err)

	require.NoError(t, svc.CheckOut(ctx, id, nil))

	room := getRoom(t, svc)
	assert.Equal(t, 0, room.CurrentOccupancy)
	assert.Empty(t, room.BenchesInUse)
}

func TestCheckOut_FreesBenchOfAnotherCheckIn(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mine := submit(t, svc, "General")
	theirs := submit(t, svc, "RF")

	require.NoError(t, svc.CheckOut(ctx, mine, []models.Bench{"RF"}))

	room := getRoom(t, svc)
	assert.Equal(t, []models.Bench{"General"}, room.BenchesInUse)
	assert.Equal(t, 1, room.CurrentOccupancy)

	available, err := svc.AvailableBenches(ctx)
	require.NoError(t, err)
	assert.Contains(t, available, models.Bench("RF"))

	other, err := svc.GetCheckIn(ctx, theirs)
	require.NoError(t, err)
	assert.True(t, other.IsActive(), "The other check-in keeps its record")
}

func TestCheckOut_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.CheckOut(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

// interleavingRepo makes two callers both finish reading the room before either writes
type interleavingRepo struct {
	repository.Repository
	barrier *sync.WaitGroup
}

func (r *interleavingRepo) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	room, err := r.Repository.GetRoom(ctx, id)
	r.barrier.Done()
	r.barrier.Wait()
	return room, err
}

func TestSubmitCheckIn_ConcurrentLostUpdate(t *testing.T) {
	repo := memory.NewRepository()
	ctx := context.Background()
	_, err := repo.CreateRoomIfAbsent(ctx, models.NewSampleRoom(models.DefaultRoomID))
	require.NoError(t, err)

	barrier := &sync.WaitGroup{}
	barrier.Add(2)
	svc := service.NewOccupancyService(&interleavingRepo{Repository: repo, barrier: barrier}, models.DefaultRoomID, models.DefaultBenches)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.SubmitCheckIn(ctx, service.CheckInRequest{Benches: []models.Bench{"General"}, TimeOut: "12:00"})
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	room, err := repo.GetRoom(ctx, models.DefaultRoomID)
	require.NoError(t, err)
	assert.Equal(t, []models.Bench{"General"}, room.BenchesInUse)
	// Both writers computed from the same snapshot, so one increment is lost
	assert.Equal(t, 1, room.CurrentOccupancy)

	active, err := repo.ListCheckIns(ctx, models.CheckInFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 2, "Both check-ins claim the same bench")
}

func TestUpdateRoomInfo(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	submit(t, svc, "General")

	name := "Hardware Lab"
	available := false
	capacity := 6
	room, err := svc.UpdateRoomInfo(ctx, service.RoomInfoUpdate{Name: &name, Availability: &available, Capacity: &capacity})
	require.NoError(t, err)
	assert.Equal(t, "Hardware Lab", room.Name)
	assert.False(t, room.Availability)
	assert.Equal(t, 6, room.Capacity)
	assert.Equal(t, 1, room.CurrentOccupancy)
	assert.Equal(t, []models.Bench{"General"}, room.BenchesInUse)

	t.Run("Invalid", func(t *testing.T) {
		blank := "  "
		_, err := svc.UpdateRoomInfo(ctx, service.RoomInfoUpdate{Name: &blank})
		assert.ErrorIs(t, err, service.ErrInvalidRoomUpdate)

		negative := -1
		_, err = svc.UpdateRoomInfo(ctx, service.RoomInfoUpdate{Capacity: &negative})
		assert.ErrorIs(t, err, service.ErrInvalidRoomUpdate)

		assert.Equal(t, "Hardware Lab", getRoom(t, svc).Name)
	})
}

func TestRoomStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	submit(t, svc, "RF")
	submit(t, svc, "RF")

	status, err := svc.RoomStatus(ctx)
	require.NoError(t, err)
	require.Len(t, status.Benches, len(models.DefaultBenches))
	for _, b := range status.Benches {
		assert.Equal(t, b.Bench == "RF", b.InUse, string(b.Bench))
	}
	assert.Equal(t, 1, status.Drift)
}

func TestActiveAndAllCheckIns(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first := submit(t, svc, "General")
	second := submit(t, svc, "RF")
	require.NoError(t, svc.CheckOut(ctx, first, nil))

	active, err := svc.ActiveCheckIns(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second, active[0].ID)

	all, err := svc.AllCheckIns(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRunForwardsStoreChanges(t *testing.T) {
	svc, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())

	received := make(chan models.Change, 16)
	svc.RegisterUpdateCallback(func(change models.Change) {
		select {
		case received <- change:
		default:
		}
	})

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	// Run subscribes asynchronously, so keep writing until a change comes through
	require.Eventually(t, func() bool {
		name := "Lab"
		_, err := svc.UpdateRoomInfo(context.Background(), service.RoomInfoUpdate{Name: &name})
		assert.NoError(t, err)
		select {
		case change := <-received:
			return change.Kind == models.ChangeKindRoom && change.ID == models.DefaultRoomID
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 30*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
