package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/navikt/benchroom/internal/models"
	"github.com/navikt/benchroom/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomOperations(t *testing.T) {
	repo := memory.NewRepository()
	ctx := context.Background()

	t.Run("GetMissingRoom", func(t *testing.T) {
		_, err := repo.GetRoom(ctx, "room")
		assert.ErrorIs(t, err, memory.ErrNotFound)
	})

	t.Run("UpdateMissingRoom", func(t *testing.T) {
		occupancy := 1
		err := repo.UpdateRoom(ctx, "room", models.RoomUpdate{CurrentOccupancy: &occupancy})
		assert.ErrorIs(t, err, memory.ErrNotFound)
	})

	t.Run("CreateRoomIfAbsent", func(t *testing.T) {
		created, err := repo.CreateRoomIfAbsent(ctx, models.NewSampleRoom("room"))
		require.NoError(t, err)
		assert.True(t, created)

		other := models.NewSampleRoom("room")
		other.Name = "Other"
		created, err = repo.CreateRoomIfAbsent(ctx, other)
		require.NoError(t, err)
		assert.False(t, created)

		room, err := repo.GetRoom(ctx, "room")
		require.NoError(t, err)
		assert.Equal(t, "Sample Room", room.Name)
	})

	t.Run("PartialUpdate", func(t *testing.T) {
		occupancy := 2
		benches := []models.Bench{"General", "Rework"}
		err := repo.UpdateRoom(ctx, "room", models.RoomUpdate{CurrentOccupancy: &occupancy, BenchesInUse: &benches})
		require.NoError(t, err)

		room, err := repo.GetRoom(ctx, "room")
		require.NoError(t, err)
		assert.Equal(t, 2, room.CurrentOccupancy)
		assert.Equal(t, benches, room.BenchesInUse)
		assert.Equal(t, "Sample Room", room.Name, "Unset fields must be preserved")
		assert.Equal(t, 10, room.Capacity)
	})

	t.Run("ReturnedRoomIsACopy", func(t *testing.T) {
		room, err := repo.GetRoom(ctx, "room")
		require.NoError(t, err)
		room.BenchesInUse[0] = "Mutated"

		again, err := repo.GetRoom(ctx, "room")
		require.NoError(t, err)
		assert.Equal(t, models.Bench("General"), again.BenchesInUse[0])
	})
}

func TestCheckInOperations(t *testing.T) {
	repo := memory.NewRepository()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	first := &models.CheckIn{Benches: []models.Bench{"General"}, TimeIn: "10:00", TimeOut: "11:00", Timestamp: base}
	second := &models.CheckIn{Benches: []models.Bench{"RF"}, TimeIn: "10:05", TimeOut: "12:00", Timestamp: base.Add(time.Minute)}

	firstID, err := repo.AddCheckIn(ctx, first)
	require.NoError(t, err)
	assert.NotEmpty(t, firstID)
	assert.Equal(t, firstID, first.ID)

	secondID, err := repo.AddCheckIn(ctx, second)
	require.NoError(t, err)
	assert.NotEqual(t, firstID, secondID)

	t.Run("ListNewestFirst", func(t *testing.T) {
		all, err := repo.ListCheckIns(ctx, models.CheckInFilter{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, secondID, all[0].ID)
		assert.Equal(t, firstID, all[1].ID)
	})

	t.Run("UpdateAndFilter", func(t *testing.T) {
		checkedOut := true
		now := base.Add(time.Hour)
		err := repo.UpdateCheckIn(ctx, firstID, models.CheckInUpdate{CheckedOut: &checkedOut, CheckOutTime: &now})
		require.NoError(t, err)

		got, err := repo.GetCheckIn(ctx, firstID)
		require.NoError(t, err)
		assert.True(t, got.CheckedOut)
		require.NotNil(t, got.CheckOutTime)
		assert.True(t, now.Equal(*got.CheckOutTime))

		active, err := repo.ListCheckIns(ctx, models.CheckInFilter{ActiveOnly: true})
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, secondID, active[0].ID)
	})

	t.Run("MissingCheckIn", func(t *testing.T) {
		_, err := repo.GetCheckIn(ctx, "missing")
		assert.ErrorIs(t, err, memory.ErrNotFound)

		checkedOut := true
		err = repo.UpdateCheckIn(ctx, "missing", models.CheckInUpdate{CheckedOut: &checkedOut})
		assert.ErrorIs(t, err, memory.ErrNotFound)
	})
}

func TestWatch(t *testing.T) {
	repo := memory.NewRepository()
	ctx, cancel := context.WithCancel(context.Background())

	changes, err := repo.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.SaveRoom(context.Background(), models.NewSampleRoom("room")))
	id, err := repo.AddCheckIn(context.Background(), &models.CheckIn{Benches: []models.Bench{"General"}, Timestamp: time.Now()})
	require.NoError(t, err)

	assert.Equal(t, models.Change{Kind: models.ChangeKindRoom, ID: "room"}, <-changes)
	assert.Equal(t, models.Change{Kind: models.ChangeKindCheckIn, ID: id}, <-changes)

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-changes:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond, "Channel should be closed after cancel")
}
