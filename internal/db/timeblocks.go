package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"venuebook/internal/model"
)

const timeBlockColumns = `id, name, start_time, end_time, duration, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTimeBlock(row rowScanner) (*model.TimeBlock, error) {
	var b model.TimeBlock
	if err := row.Scan(&b.ID, &b.Name, &b.StartTime, &b.EndTime, &b.Duration, &b.IsActive, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateTimeBlock inserts a new block. ID and timestamps must already be set.
func (db *DB) CreateTimeBlock(ctx context.Context, b *model.TimeBlock) error {
	if b == nil {
		return fmt.Errorf("time block is nil")
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO time_blocks (`+timeBlockColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.StartTime, b.EndTime, b.Duration, b.IsActive, b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert time block: %w", err)
	}
	return nil
}

// GetTimeBlock returns a block by id regardless of its active flag.
func (db *DB) GetTimeBlock(ctx context.Context, id string) (*model.TimeBlock, error) {
	row := db.QueryRowContext(ctx, `SELECT `+timeBlockColumns+` FROM time_blocks WHERE id = ?`, id)
	b, err := scanTimeBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("time block %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get time block: %w", err)
	}
	return b, nil
}

// ListTimeBlocks returns blocks ordered by start time.
func (db *DB) ListTimeBlocks(ctx context.Context, includeInactive bool) ([]model.TimeBlock, error) {
	q := `SELECT ` + timeBlockColumns + ` FROM time_blocks`
	if !includeInactive {
		q += ` WHERE is_active = 1`
	}
	q += ` ORDER BY start_time, name`
	return db.queryTimeBlocks(ctx, q)
}

// GetTimeBlocksByIDs resolves references; unknown ids are skipped.
func (db *DB) GetTimeBlocksByIDs(ctx context.Context, ids []string) ([]model.TimeBlock, error) {
	if len(ids) == 0 {
		return []model.TimeBlock{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := `SELECT ` + timeBlockColumns + ` FROM time_blocks WHERE id IN (` + placeholders + `) ORDER BY start_time, name`
	return db.queryTimeBlocks(ctx, q, args...)
}

func (db *DB) queryTimeBlocks(ctx context.Context, q string, args ...any) ([]model.TimeBlock, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query time blocks: %w", err)
	}
	defer rows.Close()

	blocks := []model.TimeBlock{}
	for rows.Next() {
		b, err := scanTimeBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, *b)
	}
	return blocks, rows.Err()
}

// UpdateTimeBlock overwrites the mutable fields of an existing block.
func (db *DB) UpdateTimeBlock(ctx context.Context, b *model.TimeBlock) error {
	b.UpdatedAt = time.Now().UTC()
	res, err := db.ExecContext(ctx, `
		UPDATE time_blocks
		SET name = ?, start_time = ?, end_time = ?, duration = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		b.Name, b.StartTime, b.EndTime, b.Duration, b.IsActive, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return fmt.Errorf("update time block: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("time block %s: %w", b.ID, model.ErrNotFound)
	}
	return nil
}

// HasOverlappingTimeBlock reports whether an active block other than excludeID
// intersects [start, end). Times must be zero-padded "HH:MM".
func (db *DB) HasOverlappingTimeBlock(ctx context.Context, start, end, excludeID string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM time_blocks
		WHERE is_active = 1 AND start_time < ? AND end_time > ? AND id != ?`,
		end, start, excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check overlap: %w", err)
	}
	return count > 0, nil
}
