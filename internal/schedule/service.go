// Package schedule keeps the weekly template of bookable blocks and the
// per-date overrides attached to it.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"venuebook/internal/model"
)

type Store interface {
	GetDaySchedule(ctx context.Context, dayOfWeek int) (*model.DaySchedule, error)
	ListDaySchedules(ctx context.Context) ([]model.DaySchedule, error)
	UpsertDaySchedule(ctx context.Context, s *model.DaySchedule) error
	UpdateSpecialDates(ctx context.Context, dayOfWeek int, fn func([]model.SpecialDateOverride) ([]model.SpecialDateOverride, error)) (*model.DaySchedule, error)
	GetTimeBlocksByIDs(ctx context.Context, ids []string) ([]model.TimeBlock, error)
}

type Service struct {
	store  Store
	loc    *time.Location
	logger zerolog.Logger
}

// NewService builds the store. Calendar dates are interpreted in loc.
func NewService(store Store, loc *time.Location, logger *zerolog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		store:  store,
		loc:    loc,
		logger: logger.With().Str("component", "schedule").Logger(),
	}
}

func (s *Service) Location() *time.Location { return s.loc }

// GetSchedule returns the template for dayOfWeek with its block references
// resolved. A weekday that was never configured yields an empty schedule.
func (s *Service) GetSchedule(ctx context.Context, dayOfWeek int) (*model.DaySchedule, error) {
	if !model.ValidDayOfWeek(dayOfWeek) {
		return nil, model.Invalid("day_of_week", "must be between 0 and 6, got %d", dayOfWeek)
	}
	sched, err := s.store.GetDaySchedule(ctx, dayOfWeek)
	if errors.Is(err, model.ErrNotFound) {
		return model.EmptySchedule(dayOfWeek), nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.resolveBlocks(ctx, sched); err != nil {
		return nil, err
	}
	return sched, nil
}

// SetSchedule replaces the block set and rest-day flags of a weekday.
// The fee is cleared when the day is not a rest day.
func (s *Service) SetSchedule(ctx context.Context, dayOfWeek int, blockIDs []string, isRestDay bool, restDayFee int64) (*model.DaySchedule, error) {
	if !model.ValidDayOfWeek(dayOfWeek) {
		return nil, model.Invalid("day_of_week", "must be between 0 and 6, got %d", dayOfWeek)
	}
	if restDayFee < 0 {
		return nil, model.Invalid("rest_day_fee", "must not be negative")
	}
	if !isRestDay {
		restDayFee = 0
	}
	ids := model.UniqueIDs(blockIDs)
	if err := s.checkBlocksExist(ctx, ids); err != nil {
		return nil, err
	}

	if err := s.store.UpsertDaySchedule(ctx, &model.DaySchedule{
		DayOfWeek:  dayOfWeek,
		BlockIDs:   ids,
		IsRestDay:  isRestDay,
		RestDayFee: restDayFee,
	}); err != nil {
		return nil, err
	}
	s.logger.Info().
		Int("day_of_week", dayOfWeek).
		Int("blocks", len(ids)).
		Bool("rest_day", isRestDay).
		Int64("rest_day_fee", restDayFee).
		Msg("weekly schedule set")
	return s.GetSchedule(ctx, dayOfWeek)
}

// SetSpecialDate attaches an override for the calendar day of date to its
// weekday's template, replacing an earlier override for the same day.
func (s *Service) SetSpecialDate(ctx context.Context, date time.Time, blockIDs []string, isBlocked bool, blockReason string) (*model.DaySchedule, error) {
	local := date.In(s.loc)
	ids := model.UniqueIDs(blockIDs)
	if err := s.checkBlocksExist(ctx, ids); err != nil {
		return nil, err
	}
	override := model.SpecialDateOverride{
		Date:        model.DateKey(local),
		BlockIDs:    ids,
		IsBlocked:   isBlocked,
		BlockReason: blockReason,
	}

	sched, err := s.store.UpdateSpecialDates(ctx, int(local.Weekday()), func(dates []model.SpecialDateOverride) ([]model.SpecialDateOverride, error) {
		return model.PutSpecialDate(dates, override), nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("date", override.Date).
		Bool("blocked", isBlocked).
		Str("reason", blockReason).
		Int("blocks", len(ids)).
		Msg("special date set")
	if err := s.resolveBlocks(ctx, sched); err != nil {
		return nil, err
	}
	return sched, nil
}

// RemoveSpecialDate deletes the override for the calendar day of date.
func (s *Service) RemoveSpecialDate(ctx context.Context, date time.Time) (*model.DaySchedule, error) {
	local := date.In(s.loc)
	key := model.DateKey(local)
	sched, err := s.store.UpdateSpecialDates(ctx, int(local.Weekday()), func(dates []model.SpecialDateOverride) ([]model.SpecialDateOverride, error) {
		rest, ok := model.DropSpecialDate(dates, key)
		if !ok {
			return nil, fmt.Errorf("special date %s: %w", key, model.ErrNotFound)
		}
		return rest, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("date", key).Msg("special date removed")
	if err := s.resolveBlocks(ctx, sched); err != nil {
		return nil, err
	}
	return sched, nil
}

// ListAll returns every configured weekday ordered by day of week.
func (s *Service) ListAll(ctx context.Context) ([]model.DaySchedule, error) {
	schedules, err := s.store.ListDaySchedules(ctx)
	if err != nil {
		return nil, err
	}
	for i := range schedules {
		if err := s.resolveBlocks(ctx, &schedules[i]); err != nil {
			return nil, err
		}
	}
	return schedules, nil
}

func (s *Service) checkBlocksExist(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	blocks, err := s.store.GetTimeBlocksByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(blocks) == len(ids) {
		return nil
	}
	known := make(map[string]struct{}, len(blocks))
	for _, b := range blocks {
		known[b.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("time block %s: %w", id, model.ErrNotFound)
		}
	}
	return nil
}

// resolveBlocks fills Blocks on the schedule and its overrides from one lookup.
// Blocks come back ordered by start time; deactivated ones are included.
func (s *Service) resolveBlocks(ctx context.Context, sched *model.DaySchedule) error {
	all := append([]string{}, sched.BlockIDs...)
	for _, o := range sched.SpecialDates {
		all = append(all, o.BlockIDs...)
	}
	blocks, err := s.store.GetTimeBlocksByIDs(ctx, model.UniqueIDs(all))
	if err != nil {
		return err
	}
	sched.Blocks = pick(blocks, sched.BlockIDs)
	for i := range sched.SpecialDates {
		sched.SpecialDates[i].Blocks = pick(blocks, sched.SpecialDates[i].BlockIDs)
	}
	return nil
}

// pick keeps the blocks whose id is in ids, preserving the order of blocks.
func pick(blocks []model.TimeBlock, ids []string) []model.TimeBlock {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]model.TimeBlock, 0, len(ids))
	for _, b := range blocks {
		if _, ok := want[b.ID]; ok {
			out = append(out, b)
		}
	}
	return out
}
