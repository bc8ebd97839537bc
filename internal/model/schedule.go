package model

import (
	"time"
)

// DateLayout is the calendar-day key used for special dates and reservation days.
const DateLayout = "2006-01-02"

// DateKey returns the calendar day of t in its own location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// StartOfDay truncates t to midnight in its location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ValidDayOfWeek reports whether d is in 0 (Sunday) .. 6 (Saturday).
func ValidDayOfWeek(d int) bool {
	return d >= 0 && d <= 6
}

// DaySchedule is the weekly template for one day of the week.
type DaySchedule struct {
	DayOfWeek    int                   `json:"day_of_week"` // 0-6 (Sunday-Saturday)
	BlockIDs     []string              `json:"block_ids"`
	Blocks       []TimeBlock           `json:"blocks,omitempty"`
	IsRestDay    bool                  `json:"is_rest_day"`
	RestDayFee   int64                 `json:"rest_day_fee"`
	SpecialDates []SpecialDateOverride `json:"special_dates"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// SpecialDateOverride replaces or blocks the weekly template for one calendar date.
type SpecialDateOverride struct {
	Date        string      `json:"date"` // YYYY-MM-DD
	BlockIDs    []string    `json:"block_ids"`
	Blocks      []TimeBlock `json:"blocks,omitempty"`
	IsBlocked   bool        `json:"is_blocked"`
	BlockReason string      `json:"block_reason,omitempty"`
}

// EmptySchedule is what an unconfigured weekday looks like.
func EmptySchedule(dayOfWeek int) *DaySchedule {
	return &DaySchedule{
		DayOfWeek:    dayOfWeek,
		BlockIDs:     []string{},
		SpecialDates: []SpecialDateOverride{},
	}
}

// EffectiveRestDayFee is the surcharge applied on this day; zero unless it is a rest day.
func (s *DaySchedule) EffectiveRestDayFee() int64 {
	if !s.IsRestDay {
		return 0
	}
	return s.RestDayFee
}

// FindSpecialDate returns the override for the given calendar day.
func (s *DaySchedule) FindSpecialDate(date string) (*SpecialDateOverride, bool) {
	for i := range s.SpecialDates {
		if s.SpecialDates[i].Date == date {
			return &s.SpecialDates[i], true
		}
	}
	return nil, false
}

// PutSpecialDate replaces the override with the same date in place, or appends it.
func PutSpecialDate(dates []SpecialDateOverride, o SpecialDateOverride) []SpecialDateOverride {
	for i := range dates {
		if dates[i].Date == o.Date {
			dates[i] = o
			return dates
		}
	}
	return append(dates, o)
}

// DropSpecialDate removes the override for date, reporting whether one existed.
func DropSpecialDate(dates []SpecialDateOverride, date string) ([]SpecialDateOverride, bool) {
	for i := range dates {
		if dates[i].Date == date {
			return append(dates[:i], dates[i+1:]...), true
		}
	}
	return dates, false
}

// UniqueIDs drops empty and repeated ids while keeping order.
func UniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
