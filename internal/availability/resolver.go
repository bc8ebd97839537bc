// Package availability folds the weekly template, special-date overrides and
// live reservations into the set of blocks that can still be booked on a date.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"venuebook/internal/metrics"
	"venuebook/internal/model"
)

// ScheduleSource returns the template for a weekday with blocks resolved.
// Unconfigured weekdays come back as an empty schedule, not an error.
type ScheduleSource interface {
	GetSchedule(ctx context.Context, dayOfWeek int) (*model.DaySchedule, error)
}

// BookingSource lists the non-cancelled reservations of a venue-local day.
type BookingSource interface {
	ListActiveReservationsOnDay(ctx context.Context, day string) ([]model.Reservation, error)
}

// Result is the bookable state of one calendar day.
type Result struct {
	Date        string            `json:"date"`
	Blocks      []model.TimeBlock `json:"blocks"`
	IsRestDay   bool              `json:"is_rest_day"`
	RestDayFee  int64             `json:"rest_day_fee"`
	IsBlocked   bool              `json:"is_blocked,omitempty"`
	BlockReason string            `json:"block_reason,omitempty"`
}

// Check answers whether a date, or one block on it, can be booked.
type Check struct {
	Available      bool              `json:"available"`
	MatchingBlocks []model.TimeBlock `json:"matching_blocks"`
	IsRestDay      bool              `json:"is_rest_day"`
	RestDayFee     int64             `json:"rest_day_fee"`
}

// CalendarDay is one entry of a calendar range.
type CalendarDay struct {
	Date      string            `json:"date"`
	Available bool              `json:"available"`
	Slots     []model.TimeBlock `json:"slots"`
	IsRestDay bool              `json:"is_rest_day"`
}

type Resolver struct {
	schedules ScheduleSource
	bookings  BookingSource
	loc       *time.Location
	logger    zerolog.Logger
}

// NewResolver builds a resolver; dates are mapped to calendar days in loc.
func NewResolver(schedules ScheduleSource, bookings BookingSource, loc *time.Location, logger *zerolog.Logger) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{
		schedules: schedules,
		bookings:  bookings,
		loc:       loc,
		logger:    logger.With().Str("component", "availability").Logger(),
	}
}

// Resolve returns the blocks still bookable on the calendar day of date.
func (r *Resolver) Resolve(ctx context.Context, date time.Time) (*Result, error) {
	metrics.IncAvailabilityLookup("resolve")
	return r.resolve(ctx, date)
}

func (r *Resolver) resolve(ctx context.Context, date time.Time) (*Result, error) {
	local := date.In(r.loc)
	day := model.DateKey(local)

	sched, err := r.schedules.GetSchedule(ctx, int(local.Weekday()))
	if err != nil {
		return nil, fmt.Errorf("load schedule for %s: %w", day, err)
	}
	res := &Result{
		Date:       day,
		Blocks:     []model.TimeBlock{},
		IsRestDay:  sched.IsRestDay,
		RestDayFee: sched.EffectiveRestDayFee(),
	}

	pool := sched.Blocks
	if o, ok := sched.FindSpecialDate(day); ok {
		if o.IsBlocked {
			res.IsBlocked = true
			res.BlockReason = o.BlockReason
			return res, nil
		}
		pool = o.Blocks
	}

	candidates := make([]model.TimeBlock, 0, len(pool))
	for _, b := range pool {
		if b.IsActive {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return res, nil
	}

	booked, err := r.bookings.ListActiveReservationsOnDay(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("load reservations for %s: %w", day, err)
	}
	occupied := make(map[string]struct{}, len(booked))
	for _, b := range booked {
		occupied[b.Block.ID] = struct{}{}
	}
	for _, b := range candidates {
		if _, taken := occupied[b.ID]; !taken {
			res.Blocks = append(res.Blocks, b)
		}
	}
	return res, nil
}

// IsAvailable reports whether blockID is free on date, or whether any block
// is free when blockID is empty.
func (r *Resolver) IsAvailable(ctx context.Context, date time.Time, blockID string) (*Check, error) {
	metrics.IncAvailabilityLookup("check")
	res, err := r.resolve(ctx, date)
	if err != nil {
		return nil, err
	}
	check := &Check{
		MatchingBlocks: res.Blocks,
		IsRestDay:      res.IsRestDay,
		RestDayFee:     res.RestDayFee,
	}
	if blockID == "" {
		check.Available = len(res.Blocks) > 0
		return check, nil
	}
	check.MatchingBlocks = []model.TimeBlock{}
	for _, b := range res.Blocks {
		if b.ID == blockID {
			check.MatchingBlocks = append(check.MatchingBlocks, b)
			check.Available = true
			break
		}
	}
	return check, nil
}

// Calendar resolves every calendar day in [start, end], in order. Nothing is
// cached, so each call reflects the reservations present at that moment.
func (r *Resolver) Calendar(ctx context.Context, start, end time.Time) ([]CalendarDay, error) {
	metrics.IncAvailabilityLookup("calendar")
	first := model.StartOfDay(start.In(r.loc))
	last := model.StartOfDay(end.In(r.loc))
	if first.After(last) {
		return nil, model.Invalid("start", "must not be after end")
	}

	days := []CalendarDay{}
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		res, err := r.resolve(ctx, d)
		if err != nil {
			return nil, err
		}
		days = append(days, CalendarDay{
			Date:      res.Date,
			Available: len(res.Blocks) > 0,
			Slots:     res.Blocks,
			IsRestDay: res.IsRestDay,
		})
	}
	r.logger.Debug().Str("start", model.DateKey(first)).Str("end", model.DateKey(last)).Int("days", len(days)).Msg("calendar resolved")
	return days, nil
}
