// Package catalog manages the reusable time blocks that days are built from.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"venuebook/internal/model"
)

// Store is the persistence the catalog needs.
type Store interface {
	CreateTimeBlock(ctx context.Context, b *model.TimeBlock) error
	GetTimeBlock(ctx context.Context, id string) (*model.TimeBlock, error)
	ListTimeBlocks(ctx context.Context, includeInactive bool) ([]model.TimeBlock, error)
	UpdateTimeBlock(ctx context.Context, b *model.TimeBlock) error
	HasOverlappingTimeBlock(ctx context.Context, start, end, excludeID string) (bool, error)
}

// Patch holds the fields an update may change; nil fields are left alone.
type Patch struct {
	Name      *string
	StartTime *string
	EndTime   *string
	IsActive  *bool
}

type Service struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(store Store, logger *zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "catalog").Logger(),
		now:    time.Now,
	}
}

// Create validates and stores a new block.
func (s *Service) Create(ctx context.Context, name, startTime, endTime string, isActive bool) (*model.TimeBlock, error) {
	now := s.now().UTC()
	b := &model.TimeBlock{
		ID:        uuid.NewString(),
		Name:      name,
		StartTime: startTime,
		EndTime:   endTime,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := b.Normalize(); err != nil {
		return nil, err
	}
	if err := s.store.CreateTimeBlock(ctx, b); err != nil {
		return nil, fmt.Errorf("create time block: %w", err)
	}
	s.logger.Info().
		Str("block_id", b.ID).
		Str("name", b.Name).
		Str("start", b.StartTime).
		Str("end", b.EndTime).
		Msg("time block created")
	return b, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.TimeBlock, error) {
	return s.store.GetTimeBlock(ctx, id)
}

// List returns blocks ordered by start time; inactive ones only when asked.
func (s *Service) List(ctx context.Context, includeInactive bool) ([]model.TimeBlock, error) {
	return s.store.ListTimeBlocks(ctx, includeInactive)
}

// Update applies patch, re-validating the times and recomputing the duration.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*model.TimeBlock, error) {
	b, err := s.store.GetTimeBlock(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		b.Name = *patch.Name
	}
	if patch.StartTime != nil {
		b.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		b.EndTime = *patch.EndTime
	}
	if patch.IsActive != nil {
		b.IsActive = *patch.IsActive
	}
	if err := b.Normalize(); err != nil {
		return nil, err
	}
	b.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateTimeBlock(ctx, b); err != nil {
		return nil, fmt.Errorf("update time block: %w", err)
	}
	s.logger.Info().Str("block_id", b.ID).Str("name", b.Name).Bool("active", b.IsActive).Msg("time block updated")
	return b, nil
}

// SoftDelete deactivates a block. Schedules and reservations keep referring
// to it. The result reports whether the block was active before the call.
func (s *Service) SoftDelete(ctx context.Context, id string) (bool, error) {
	b, err := s.store.GetTimeBlock(ctx, id)
	if err != nil {
		return false, err
	}
	if !b.IsActive {
		return false, nil
	}
	b.IsActive = false
	b.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateTimeBlock(ctx, b); err != nil {
		return false, fmt.Errorf("deactivate time block: %w", err)
	}
	s.logger.Info().Str("block_id", b.ID).Msg("time block deactivated")
	return true, nil
}

// Overlaps reports whether an active block other than excludeID intersects
// [startTime, endTime). It is advisory; Create and Update do not call it.
func (s *Service) Overlaps(ctx context.Context, startTime, endTime, excludeID string) (bool, error) {
	startMin, err := model.ParseClock(startTime)
	if err != nil {
		return false, model.Invalid("start", "%v", err)
	}
	endMin, err := model.ParseClock(endTime)
	if err != nil {
		return false, model.Invalid("end", "%v", err)
	}
	if endMin <= startMin {
		return false, model.Invalid("end", "must be after start")
	}
	return s.store.HasOverlappingTimeBlock(ctx, model.FormatClock(startMin), model.FormatClock(endMin), excludeID)
}
