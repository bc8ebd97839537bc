package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"venuebook/internal/model"
)

// BlockConfig is a time block declared in venue.yaml.
type BlockConfig struct {
	Name      string `yaml:"name"`
	StartTime string `yaml:"start_time"` // "10:00"
	EndTime   string `yaml:"end_time"`   // "14:00"
}

// DayConfig assigns blocks (by name) to a weekday, 0=Sun .. 6=Sat.
type DayConfig struct {
	DayOfWeek  int      `yaml:"day_of_week"`
	Blocks     []string `yaml:"blocks"`
	IsRestDay  bool     `yaml:"is_rest_day"`
	RestDayFee int64    `yaml:"rest_day_fee"`
}

// HolidayConfig closes the venue on one date.
type HolidayConfig struct {
	Date string `yaml:"date"` // "2026-12-25"
	Name string `yaml:"name"`
}

// VenueConfig is the root of venue.yaml.
type VenueConfig struct {
	Blocks   []BlockConfig   `yaml:"blocks"`
	Week     []DayConfig     `yaml:"week"`
	Holidays []HolidayConfig `yaml:"holidays"`
}

// LoadVenueConfig loads and validates the venue seed file.
func LoadVenueConfig(path string) (*VenueConfig, error) {
	if path == "" {
		path = DefaultVenuePath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read venue config: %w", err)
	}

	var cfg VenueConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse venue config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate venue config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the seed for errors.
func (c *VenueConfig) Validate() error {
	names := make(map[string]bool, len(c.Blocks))
	for i, b := range c.Blocks {
		tb := model.TimeBlock{Name: b.Name, StartTime: b.StartTime, EndTime: b.EndTime}
		if err := tb.Normalize(); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		if names[tb.Name] {
			return fmt.Errorf("block %d: duplicate name %q", i, tb.Name)
		}
		names[tb.Name] = true
	}

	days := make(map[int]bool, len(c.Week))
	for _, d := range c.Week {
		if !model.ValidDayOfWeek(d.DayOfWeek) {
			return fmt.Errorf("week: day_of_week %d out of range", d.DayOfWeek)
		}
		if days[d.DayOfWeek] {
			return fmt.Errorf("week: day %d listed twice", d.DayOfWeek)
		}
		days[d.DayOfWeek] = true
		if d.RestDayFee < 0 {
			return fmt.Errorf("week: day %d has a negative rest_day_fee", d.DayOfWeek)
		}
		for _, name := range d.Blocks {
			if !names[name] {
				return fmt.Errorf("week: day %d refers to unknown block %q", d.DayOfWeek, name)
			}
		}
	}

	for _, h := range c.Holidays {
		if _, err := parseDate(h.Date); err != nil {
			return fmt.Errorf("holiday %q: %w", h.Name, err)
		}
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(model.DateLayout, s)
}
