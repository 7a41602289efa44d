package models_test

import (
	"testing"
	"time"

	"github.com/navikt/benchroom/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBenchSetOperations(t *testing.T) {
	t.Run("UnionDeduplicates", func(t *testing.T) {
		got := models.UnionBenches([]models.Bench{"General", "RF"}, []models.Bench{"RF", "Rework", "Rework"})
		assert.Equal(t, []models.Bench{"General", "RF", "Rework"}, got)
	})

	t.Run("SubtractKeepsOrder", func(t *testing.T) {
		got := models.SubtractBenches([]models.Bench{"General", "RF", "Rework"}, []models.Bench{"RF", "Assembly"})
		assert.Equal(t, []models.Bench{"General", "Rework"}, got)
	})

	t.Run("ParseBenches", func(t *testing.T) {
		got := models.ParseBenches(" General, RF ,,Rework ")
		assert.Equal(t, []models.Bench{"General", "RF", "Rework"}, got)
	})
}

func TestRoom(t *testing.T) {
	r := models.NewSampleRoom(models.DefaultRoomID)

	assert.Equal(t, "room", r.ID)
	assert.Equal(t, "Sample Room", r.Name)
	assert.True(t, r.Availability)
	assert.Equal(t, 10, r.Capacity)
	assert.Equal(t, 0, r.CurrentOccupancy)
	assert.Empty(t, r.BenchesInUse)

	r.BenchesInUse = []models.Bench{"RF"}
	r.CurrentOccupancy = 3
	assert.True(t, r.IsBenchInUse("RF"))
	assert.False(t, r.IsBenchInUse("General"))
	assert.Equal(t, 2, r.Drift())

	// Clone must not share the bench slice
	c := r.Clone()
	c.BenchesInUse[0] = "General"
	assert.Equal(t, models.Bench("RF"), r.BenchesInUse[0])
}

func TestRoomUpdateApply(t *testing.T) {
	r := models.NewSampleRoom("room")
	name := "Lab 2"
	capacity := 4
	benches := []models.Bench{"Assembly"}

	models.RoomUpdate{Name: &name, Capacity: &capacity, BenchesInUse: &benches}.Apply(r)

	assert.Equal(t, "Lab 2", r.Name)
	assert.Equal(t, 4, r.Capacity)
	assert.True(t, r.Availability, "unset fields are left untouched")
	assert.Equal(t, []models.Bench{"Assembly"}, r.BenchesInUse)
}

func TestCheckInUpdateApply(t *testing.T) {
	c := &models.CheckIn{ID: "c1", Benches: []models.Bench{"RF"}}
	assert.True(t, c.IsActive())

	done := true
	now := time.Now()
	models.CheckInUpdate{CheckedOut: &done, CheckOutTime: &now}.Apply(c)

	assert.False(t, c.IsActive())
	require.NotNil(t, c.CheckOutTime)
	assert.True(t, now.Equal(*c.CheckOutTime))

	assert.True(t, models.CheckInFilter{}.Matches(c))
	assert.False(t, models.CheckInFilter{ActiveOnly: true}.Matches(c))
}

func TestSupportSession(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	s := models.NewSupportSession("  Jane   Doe ", now)

	assert.Equal(t, "session_1700000000123", s.ID)
	assert.Equal(t, "support_channel_1700000000123", s.Channel)
	assert.Equal(t, "Jane   Doe", s.UserName)
	assert.Equal(t, "jane_doe", s.UserID)
	assert.Equal(t, "call-jane_doe-admin", s.CallID)
	assert.Equal(t, models.CallStateIdle, s.CallState)
	assert.True(t, s.Active)
	assert.NotEmpty(t, s.JoinToken)
	assert.NotEqual(t, s.JoinToken, models.NewSupportSession("Jane Doe", now).JoinToken)
	assert.Nil(t, s.EndedAt)
}

func TestCallState(t *testing.T) {
	states := []models.CallState{
		models.CallStateIdle,
		models.CallStateRinging,
		models.CallStateJoined,
		models.CallStateReconnecting,
		models.CallStateLeft,
	}

	for _, state := range states {
		parsed, err := models.ParseCallState(state.String())
		require.NoError(t, err)
		assert.Equal(t, state, parsed)
	}

	_, err := models.ParseCallState("dialing")
	assert.Error(t, err)
}
