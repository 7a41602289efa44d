package validation_test

import (
	"context"
	"testing"

	"github.com/navikt/benchroom/internal/models"
	"github.com/navikt/benchroom/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkInRequest struct {
	Benches []models.Bench `json:"benches" validate:"required,min=1,dive,bench"`
	TimeOut string         `json:"timeOut" validate:"required"`
}

type sessionRequest struct {
	UserName string `json:"userName" validate:"required,notblank"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		err := validation.ValidateStruct(&checkInRequest{Benches: []models.Bench{"General", "RF"}, TimeOut: "12:00"})
		assert.Nil(t, err)
	})

	t.Run("MissingBenches", func(t *testing.T) {
		err := validation.ValidateStruct(&checkInRequest{TimeOut: "12:00"})
		require.NotNil(t, err)
		require.Len(t, err.Errors(), 1)
		assert.Equal(t, "benches", err.Errors()[0].Field())
		assert.Equal(t, "required", err.Errors()[0].Tag())
	})

	t.Run("EmptyBenches", func(t *testing.T) {
		err := validation.ValidateStruct(&checkInRequest{Benches: []models.Bench{}, TimeOut: "12:00"})
		require.NotNil(t, err)
		assert.Equal(t, "min", err.Errors()[0].Tag())
		assert.Equal(t, "benches must contain at least 1 item(s)", err.Error())
	})

	t.Run("UnknownBench", func(t *testing.T) {
		err := validation.ValidateStruct(&checkInRequest{Benches: []models.Bench{"General", "Forge"}, TimeOut: "12:00"})
		require.NotNil(t, err)
		require.Len(t, err.Errors(), 1)
		assert.Equal(t, "bench", err.Errors()[0].Tag())
		assert.Equal(t, "benches[1]", err.Errors()[0].Field())
		assert.Contains(t, err.Error(), "Forge")
	})

	t.Run("MissingTimeOut", func(t *testing.T) {
		err := validation.ValidateStruct(&checkInRequest{Benches: []models.Bench{"General"}})
		require.NotNil(t, err)
		assert.Equal(t, "timeOut is required", err.Error())
	})

	t.Run("BlankName", func(t *testing.T) {
		err := validation.ValidateStruct(&sessionRequest{UserName: "   "})
		require.NotNil(t, err)
		assert.Equal(t, "notblank", err.Errors()[0].Tag())
	})
}

func TestValidateStructWithBenches(t *testing.T) {
	lathe := validation.WithBenches(context.Background(), validation.NewBenchSet([]models.Bench{"Lathe"}))

	assert.Nil(t, validation.ValidateStructCtx(lathe, &checkInRequest{Benches: []models.Bench{"Lathe"}, TimeOut: "12:00"}))
	assert.NotNil(t, validation.ValidateStructCtx(lathe, &checkInRequest{Benches: []models.Bench{"General"}, TimeOut: "12:00"}))

	// Other callers keep their own enumeration
	assert.Nil(t, validation.ValidateStruct(&checkInRequest{Benches: []models.Bench{"General"}, TimeOut: "12:00"}))
	assert.NotNil(t, validation.ValidateStruct(&checkInRequest{Benches: []models.Bench{"Lathe"}, TimeOut: "12:00"}))
}

func TestBenchSet(t *testing.T) {
	set := validation.NewBenchSet([]models.Bench{"Lathe", "Drill"})

	assert.True(t, set.Contains("Lathe"))
	assert.False(t, set.Contains("General"))
}

func TestToAPIError(t *testing.T) {
	t.Run("Single", func(t *testing.T) {
		apiErr := validation.ValidateStruct(&checkInRequest{Benches: []models.Bench{"General"}}).ToAPIError()
		assert.Equal(t, validation.ErrorCode, apiErr.Code)
		assert.Equal(t, "timeOut is required", apiErr.Message)
		assert.Equal(t, "timeOut", apiErr.Details["field"])
	})

	t.Run("Multiple", func(t *testing.T) {
		apiErr := validation.ValidateStruct(&checkInRequest{}).ToAPIError()
		assert.Equal(t, validation.ErrorCode, apiErr.Code)
		fields, ok := apiErr.Details["fields"].([]map[string]interface{})
		require.True(t, ok)
		assert.Len(t, fields, 2)
	})

	t.Run("Manual", func(t *testing.T) {
		apiErr := validation.NewRequestValidationError("id", "required", "id is required").ToAPIError()
		assert.Equal(t, "id is required", apiErr.Message)
	})
}
