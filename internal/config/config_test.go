package config

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("VENUEBOOK_TEST_SECRET", "s3cret")
	path := writeFile(t, dir, "config.yaml", `
http:
  port: 9090
  jwt_secret: ${VENUEBOOK_TEST_SECRET}
database:
  path: `+filepath.Join(dir, "data", "venue.db")+`
venue:
  timezone: Europe/Madrid
booking:
  cancellation_window_hours: 48
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "s3cret", cfg.HTTP.JWTSecret)
	assert.Equal(t, 48*time.Hour, cfg.CancellationWindow())
	assert.Equal(t, 90, cfg.Booking.MaxCalendarDays)
	assert.Equal(t, "venuebook.reservations", cfg.AMQP.Queue)
	assert.DirExists(t, filepath.Join(dir, "data"))

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Madrid", loc.String())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := writeFile(t, dir, "tz.yaml", "venue:\n  timezone: Mars/Olympus\ndatabase:\n  path: \":memory:\"\n")
	_, err = Load(bad)
	assert.ErrorContains(t, err, "Mars/Olympus")
}

const venueYAML = `
blocks:
  - name: Morning
    start_time: "10:00"
    end_time: "14:00"
  - name: Evening
    start_time: "16:00"
    end_time: "20:00"
week:
  - day_of_week: 2
    blocks: [Morning, Evening]
  - day_of_week: 0
    blocks: [Morning]
    is_rest_day: true
    rest_day_fee: 500
holidays:
  - date: "2026-12-25"
    name: Christmas
`

func TestLoadVenueConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "venue.yaml", venueYAML)

	cfg, err := LoadVenueConfig(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Blocks, 2)
	assert.Len(t, cfg.Week, 2)
	assert.Equal(t, int64(500), cfg.Week[1].RestDayFee)
	assert.Equal(t, "Christmas", cfg.Holidays[0].Name)
}

func TestVenueConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  VenueConfig
	}{
		{"bad block time", VenueConfig{Blocks: []BlockConfig{{Name: "A", StartTime: "9", EndTime: "10:00"}}}},
		{"duplicate block", VenueConfig{Blocks: []BlockConfig{
			{Name: "A", StartTime: "09:00", EndTime: "10:00"},
			{Name: "A", StartTime: "11:00", EndTime: "12:00"},
		}}},
		{"day out of range", VenueConfig{Week: []DayConfig{{DayOfWeek: 7}}}},
		{"duplicate day", VenueConfig{Week: []DayConfig{{DayOfWeek: 1}, {DayOfWeek: 1}}}},
		{"unknown block", VenueConfig{Week: []DayConfig{{DayOfWeek: 1, Blocks: []string{"Ghost"}}}}},
		{"negative fee", VenueConfig{Week: []DayConfig{{DayOfWeek: 0, IsRestDay: true, RestDayFee: -5}}}},
		{"bad holiday", VenueConfig{Holidays: []HolidayConfig{{Date: "25/12/2026", Name: "Christmas"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}

func TestWatchVenue(t *testing.T) {
	path := writeFile(t, t.TempDir(), "venue.yaml", venueYAML)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		updates []*VenueConfig
	)
	logger := zerolog.New(io.Discard)
	err := WatchVenue(ctx, path, 10*time.Millisecond, &logger, func(cfg *VenueConfig) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, cfg)
	})
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, updates, 1)
	mu.Unlock()

	require.NoError(t, os.WriteFile(path, []byte(venueYAML+"  - date: \"2027-01-01\"\n    name: New Year\n"), 0o600))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(updates) == 2 && len(updates[1].Holidays) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestVenueWatcher_BrokenFileIsReportedAndSkipped(t *testing.T) {
	path := writeFile(t, t.TempDir(), "venue.yaml", venueYAML)
	var logs bytes.Buffer
	var applied []*VenueConfig
	w := &venueWatcher{
		path:     path,
		onUpdate: func(cfg *VenueConfig) { applied = append(applied, cfg) },
		logger:   zerolog.New(&logs),
	}

	touch := func(content string, at time.Time) {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		require.NoError(t, os.Chtimes(path, at, at))
	}

	touch("blocks: [not: valid", time.Now().Add(time.Minute))
	w.poll()
	assert.Empty(t, applied)
	assert.Contains(t, logs.String(), "venue file rejected")

	// Same mtime: the broken file is not retried.
	logs.Reset()
	w.poll()
	assert.Empty(t, logs.String())

	touch(venueYAML, time.Now().Add(2*time.Minute))
	w.poll()
	require.Len(t, applied, 1)
	assert.Len(t, applied[0].Blocks, 2)

	require.NoError(t, os.Remove(path))
	w.poll()
	assert.Contains(t, logs.String(), "venue file not readable")
	assert.Len(t, applied, 1)
}
