// Package seed applies configs/venue.yaml to the catalog and weekly schedule.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"venuebook/internal/catalog"
	"venuebook/internal/config"
	"venuebook/internal/model"
	"venuebook/internal/schedule"
)

// Summary counts what one Apply changed.
type Summary struct {
	BlocksCreated  int
	DaysConfigured int
	HolidaysAdded  int
}

type Seeder struct {
	catalog   *catalog.Service
	schedules *schedule.Service
	logger    zerolog.Logger
}

func NewSeeder(cat *catalog.Service, schedules *schedule.Service, logger *zerolog.Logger) *Seeder {
	return &Seeder{
		catalog:   cat,
		schedules: schedules,
		logger:    logger.With().Str("component", "seed").Logger(),
	}
}

// Apply only adds: blocks missing by name are created, weekdays without a
// stored template get the configured one, and holidays become blocked special
// dates unless that date already has an override. Operator edits are kept.
func (s *Seeder) Apply(ctx context.Context, cfg *config.VenueConfig) (Summary, error) {
	var sum Summary
	if cfg == nil {
		return sum, fmt.Errorf("venue config is nil")
	}

	existing, err := s.catalog.List(ctx, true)
	if err != nil {
		return sum, err
	}
	byName := make(map[string]string, len(existing))
	for _, b := range existing {
		byName[strings.ToLower(b.Name)] = b.ID
	}
	for _, bc := range cfg.Blocks {
		key := strings.ToLower(strings.TrimSpace(bc.Name))
		if _, ok := byName[key]; ok {
			continue
		}
		b, err := s.catalog.Create(ctx, bc.Name, bc.StartTime, bc.EndTime, true)
		if err != nil {
			return sum, fmt.Errorf("seed block %q: %w", bc.Name, err)
		}
		byName[key] = b.ID
		sum.BlocksCreated++
	}

	stored, err := s.schedules.ListAll(ctx)
	if err != nil {
		return sum, err
	}
	configured := make(map[int]*model.DaySchedule, len(stored))
	for i := range stored {
		configured[stored[i].DayOfWeek] = &stored[i]
	}
	for _, dc := range cfg.Week {
		if _, ok := configured[dc.DayOfWeek]; ok {
			continue
		}
		ids := make([]string, 0, len(dc.Blocks))
		for _, name := range dc.Blocks {
			ids = append(ids, byName[strings.ToLower(strings.TrimSpace(name))])
		}
		sched, err := s.schedules.SetSchedule(ctx, dc.DayOfWeek, ids, dc.IsRestDay, dc.RestDayFee)
		if err != nil {
			return sum, fmt.Errorf("seed day %d: %w", dc.DayOfWeek, err)
		}
		configured[dc.DayOfWeek] = sched
		sum.DaysConfigured++
	}

	loc := s.schedules.Location()
	for _, h := range cfg.Holidays {
		date, err := time.ParseInLocation(model.DateLayout, h.Date, loc)
		if err != nil {
			return sum, fmt.Errorf("seed holiday %q: %w", h.Name, err)
		}
		sched, ok := configured[int(date.Weekday())]
		if !ok {
			s.logger.Warn().Str("date", h.Date).Str("holiday", h.Name).Msg("holiday falls on an unconfigured weekday, skipped")
			continue
		}
		if _, exists := sched.FindSpecialDate(h.Date); exists {
			continue
		}
		updated, err := s.schedules.SetSpecialDate(ctx, date, nil, true, h.Name)
		if err != nil {
			return sum, fmt.Errorf("seed holiday %q: %w", h.Name, err)
		}
		configured[updated.DayOfWeek] = updated
		sum.HolidaysAdded++
	}

	s.logger.Info().
		Int("blocks_created", sum.BlocksCreated).
		Int("days_configured", sum.DaysConfigured).
		Int("holidays_added", sum.HolidaysAdded).
		Msg("venue seed applied")
	return sum, nil
}
