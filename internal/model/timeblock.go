package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	MaxBlockNameLength = 50
	MinBlockDuration   = 0.5
	MaxBlockDuration   = 12.0
)

var clockPattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):([0-5][0-9])$`)

// TimeBlock is a named wall-clock interval that can be attached to days and booked.
type TimeBlock struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime string    `json:"start_time"` // "10:00"
	EndTime   string    `json:"end_time"`   // "14:00"
	Duration  float64   `json:"duration"`   // hours
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ParseClock returns minutes since midnight for an "HH:MM" (or "H:MM") string.
func ParseClock(s string) (int, error) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid time format %q, expected HH:MM", s)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	return hour*60 + minute, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// BlockDuration validates a start/end pair and returns the duration in hours.
func BlockDuration(start, end string) (float64, error) {
	startMin, err := ParseClock(start)
	if err != nil {
		return 0, Invalid("start_time", "%v", err)
	}
	endMin, err := ParseClock(end)
	if err != nil {
		return 0, Invalid("end_time", "%v", err)
	}
	if endMin <= startMin {
		return 0, Invalid("end_time", "must be after start_time")
	}
	hours := float64(endMin-startMin) / 60
	if hours < MinBlockDuration || hours > MaxBlockDuration {
		return 0, Invalid("duration", "must be between %.1f and %.0f hours, got %.2f", MinBlockDuration, MaxBlockDuration, hours)
	}
	return hours, nil
}

// Normalize validates the block and rewrites its derived fields:
// trimmed name, zero-padded times and the computed duration.
func (b *TimeBlock) Normalize() error {
	b.Name = strings.TrimSpace(b.Name)
	if b.Name == "" {
		return Invalid("name", "is required")
	}
	if len([]rune(b.Name)) > MaxBlockNameLength {
		return Invalid("name", "must not exceed %d characters", MaxBlockNameLength)
	}
	duration, err := BlockDuration(b.StartTime, b.EndTime)
	if err != nil {
		return err
	}
	startMin, _ := ParseClock(b.StartTime)
	endMin, _ := ParseClock(b.EndTime)
	b.StartTime = FormatClock(startMin)
	b.EndTime = FormatClock(endMin)
	b.Duration = duration
	return nil
}

