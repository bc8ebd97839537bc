package schedule

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuebook/internal/db"
	"venuebook/internal/model"
)

func setup(t *testing.T) (*Service, *db.DB) {
	t.Helper()
	database, err := db.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	logger := zerolog.New(io.Discard)
	return NewService(database, time.UTC, &logger), database
}

func addBlock(t *testing.T, database *db.DB, id, name, start, end string) {
	t.Helper()
	now := time.Now().UTC()
	b := &model.TimeBlock{ID: id, Name: name, StartTime: start, EndTime: end, IsActive: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, b.Normalize())
	require.NoError(t, database.CreateTimeBlock(context.Background(), b))
}

// 2026-10-20 is a Tuesday.
var tuesday = time.Date(2026, 10, 20, 15, 30, 0, 0, time.UTC)

func TestGetSchedule_Unconfigured(t *testing.T) {
	svc, _ := setup(t)

	s, err := svc.GetSchedule(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, s.DayOfWeek)
	assert.Empty(t, s.BlockIDs)
	assert.False(t, s.IsRestDay)
	assert.Zero(t, s.RestDayFee)

	for _, day := range []int{-1, 7} {
		_, err := svc.GetSchedule(context.Background(), day)
		assert.ErrorIs(t, err, model.ErrValidation)
	}
}

func TestSetSchedule(t *testing.T) {
	ctx := context.Background()
	svc, database := setup(t)
	addBlock(t, database, "evening", "Evening", "16:00", "20:00")
	addBlock(t, database, "morning", "Morning", "10:00", "14:00")

	s, err := svc.SetSchedule(ctx, 2, []string{"evening", "morning"}, false, 300)
	require.NoError(t, err)
	assert.Zero(t, s.RestDayFee, "fee is cleared on a regular day")
	require.Len(t, s.Blocks, 2)
	assert.Equal(t, "Morning", s.Blocks[0].Name)
	assert.Equal(t, "Evening", s.Blocks[1].Name)

	sun, err := svc.SetSchedule(ctx, 0, []string{"morning"}, true, 500)
	require.NoError(t, err)
	assert.True(t, sun.IsRestDay)
	assert.Equal(t, int64(500), sun.RestDayFee)

	_, err = svc.SetSchedule(ctx, 2, []string{"missing"}, false, 0)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.SetSchedule(ctx, 0, nil, true, -1)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.SetSchedule(ctx, 9, nil, false, 0)
	assert.ErrorIs(t, err, model.ErrValidation)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 0, all[0].DayOfWeek)
	assert.Equal(t, 2, all[1].DayOfWeek)
}

func TestSetSchedule_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, database := setup(t)
	addBlock(t, database, "morning", "Morning", "10:00", "14:00")

	_, err := svc.SetSchedule(ctx, 0, []string{"morning"}, true, 500)
	require.NoError(t, err)
	first, err := svc.GetSchedule(ctx, 0)
	require.NoError(t, err)

	_, err = svc.SetSchedule(ctx, 0, []string{"morning"}, true, 500)
	require.NoError(t, err)
	second, err := svc.GetSchedule(ctx, 0)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSetSpecialDate(t *testing.T) {
	ctx := context.Background()
	svc, database := setup(t)
	addBlock(t, database, "morning", "Morning", "10:00", "14:00")
	addBlock(t, database, "evening", "Evening", "16:00", "20:00")

	_, err := svc.SetSpecialDate(ctx, tuesday, nil, true, "holiday")
	assert.ErrorIs(t, err, model.ErrNotFound, "no template for Tuesday yet")

	_, err = svc.SetSchedule(ctx, 2, []string{"morning", "evening"}, false, 0)
	require.NoError(t, err)

	s, err := svc.SetSpecialDate(ctx, tuesday, []string{"evening"}, false, "")
	require.NoError(t, err)
	require.Len(t, s.SpecialDates, 1)
	assert.Equal(t, "2026-10-20", s.SpecialDates[0].Date)
	require.Len(t, s.SpecialDates[0].Blocks, 1)
	assert.Equal(t, "Evening", s.SpecialDates[0].Blocks[0].Name)

	// Same calendar day at a different time replaces the override.
	s, err = svc.SetSpecialDate(ctx, tuesday.Add(-10*time.Hour), nil, true, "maintenance")
	require.NoError(t, err)
	require.Len(t, s.SpecialDates, 1)
	assert.True(t, s.SpecialDates[0].IsBlocked)
	assert.Equal(t, "maintenance", s.SpecialDates[0].BlockReason)

	s, err = svc.SetSpecialDate(ctx, tuesday.AddDate(0, 0, 7), []string{"morning"}, false, "")
	require.NoError(t, err)
	assert.Len(t, s.SpecialDates, 2)

	s, err = svc.RemoveSpecialDate(ctx, tuesday)
	require.NoError(t, err)
	require.Len(t, s.SpecialDates, 1)
	assert.Equal(t, "2026-10-27", s.SpecialDates[0].Date)

	_, err = svc.RemoveSpecialDate(ctx, tuesday)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.SetSpecialDate(ctx, tuesday, []string{"missing"}, false, "")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSetSpecialDate_UsesVenueLocation(t *testing.T) {
	ctx := context.Background()
	database, err := db.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	logger := zerolog.New(io.Discard)
	loc := time.FixedZone("UTC+3", 3*60*60)
	svc := NewService(database, loc, &logger)

	_, err = svc.SetSchedule(ctx, 3, nil, false, 0)
	require.NoError(t, err)

	// 22:30 UTC on Tuesday is already Wednesday at the venue.
	s, err := svc.SetSpecialDate(ctx, time.Date(2026, 10, 20, 22, 30, 0, 0, time.UTC), nil, true, "")
	require.NoError(t, err)
	assert.Equal(t, 3, s.DayOfWeek)
	assert.Equal(t, "2026-10-21", s.SpecialDates[0].Date)
}
