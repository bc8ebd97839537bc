package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"venuebook/internal/model"
)

const dayScheduleColumns = `day_of_week, block_ids, is_rest_day, rest_day_fee, special_dates, created_at, updated_at`

func scanDaySchedule(row rowScanner) (*model.DaySchedule, error) {
	var (
		s            model.DaySchedule
		blockIDs     string
		specialDates string
	)
	if err := row.Scan(&s.DayOfWeek, &blockIDs, &s.IsRestDay, &s.RestDayFee, &specialDates, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(blockIDs), &s.BlockIDs); err != nil {
		return nil, fmt.Errorf("decode block ids for day %d: %w", s.DayOfWeek, err)
	}
	if err := json.Unmarshal([]byte(specialDates), &s.SpecialDates); err != nil {
		return nil, fmt.Errorf("decode special dates for day %d: %w", s.DayOfWeek, err)
	}
	if s.BlockIDs == nil {
		s.BlockIDs = []string{}
	}
	if s.SpecialDates == nil {
		s.SpecialDates = []model.SpecialDateOverride{}
	}
	return &s, nil
}

// GetDaySchedule returns the stored template for a weekday or model.ErrNotFound.
func (db *DB) GetDaySchedule(ctx context.Context, dayOfWeek int) (*model.DaySchedule, error) {
	return getDaySchedule(ctx, db.DB, dayOfWeek)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getDaySchedule(ctx context.Context, q queryRower, dayOfWeek int) (*model.DaySchedule, error) {
	row := q.QueryRowContext(ctx, `SELECT `+dayScheduleColumns+` FROM day_schedules WHERE day_of_week = ?`, dayOfWeek)
	s, err := scanDaySchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("schedule for day %d: %w", dayOfWeek, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return s, nil
}

// ListDaySchedules returns all configured weekdays ordered by day of week.
func (db *DB) ListDaySchedules(ctx context.Context) ([]model.DaySchedule, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+dayScheduleColumns+` FROM day_schedules ORDER BY day_of_week`)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	schedules := []model.DaySchedule{}
	for rows.Next() {
		s, err := scanDaySchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *s)
	}
	return schedules, rows.Err()
}

// UpsertDaySchedule writes the block set and rest-day flags for a weekday.
// Existing special dates are kept; rewriting identical values leaves updated_at alone.
func (db *DB) UpsertDaySchedule(ctx context.Context, s *model.DaySchedule) error {
	if s == nil {
		return fmt.Errorf("schedule is nil")
	}
	blockIDs, err := json.Marshal(model.UniqueIDs(s.BlockIDs))
	if err != nil {
		return fmt.Errorf("encode block ids: %w", err)
	}

	now := time.Now().UTC()
	_, err = db.ExecContext(ctx, `
		INSERT INTO day_schedules (day_of_week, block_ids, is_rest_day, rest_day_fee, special_dates, created_at, updated_at)
		VALUES (?, ?, ?, ?, '[]', ?, ?)
		ON CONFLICT(day_of_week) DO UPDATE SET
			block_ids = excluded.block_ids,
			is_rest_day = excluded.is_rest_day,
			rest_day_fee = excluded.rest_day_fee,
			updated_at = CASE
				WHEN day_schedules.block_ids = excluded.block_ids
					AND day_schedules.is_rest_day = excluded.is_rest_day
					AND day_schedules.rest_day_fee = excluded.rest_day_fee
				THEN day_schedules.updated_at
				ELSE excluded.updated_at
			END`,
		s.DayOfWeek, string(blockIDs), s.IsRestDay, s.RestDayFee, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert schedule for day %d: %w", s.DayOfWeek, err)
	}
	return nil
}

// UpdateSpecialDates applies fn to the special dates of a weekday inside one
// transaction. A weekday without a stored template yields model.ErrNotFound.
func (db *DB) UpdateSpecialDates(ctx context.Context, dayOfWeek int, fn func([]model.SpecialDateOverride) ([]model.SpecialDateOverride, error)) (*model.DaySchedule, error) {
	var updated *model.DaySchedule
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		s, err := getDaySchedule(ctx, tx, dayOfWeek)
		if err != nil {
			return err
		}
		dates, err := fn(s.SpecialDates)
		if err != nil {
			return err
		}
		if dates == nil {
			dates = []model.SpecialDateOverride{}
		}
		for i := range dates {
			dates[i].Blocks = nil
		}
		encoded, err := json.Marshal(dates)
		if err != nil {
			return fmt.Errorf("encode special dates: %w", err)
		}
		s.SpecialDates = dates
		s.UpdatedAt = time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE day_schedules SET special_dates = ?, updated_at = ? WHERE day_of_week = ?`,
			string(encoded), s.UpdatedAt, dayOfWeek,
		); err != nil {
			return fmt.Errorf("update special dates: %w", err)
		}
		updated = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
