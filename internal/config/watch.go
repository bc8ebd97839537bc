package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const DefaultVenuePath = "configs/venue.yaml"

// venueWatcher tracks the last applied modification time of the seed file.
type venueWatcher struct {
	path     string
	lastMod  time.Time
	onUpdate func(*VenueConfig)
	logger   zerolog.Logger
}

// WatchVenue loads the venue seed file, hands it to onUpdate and then polls it,
// re-applying it whenever its modification time moves forward. A file that
// fails to load is reported and skipped until it changes again.
func WatchVenue(ctx context.Context, path string, interval time.Duration, logger *zerolog.Logger, onUpdate func(*VenueConfig)) error {
	if path == "" {
		path = DefaultVenuePath
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	w := &venueWatcher{
		path:     path,
		onUpdate: onUpdate,
		logger:   logger.With().Str("component", "venue_watch").Str("path", path).Logger(),
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	cfg, err := LoadVenueConfig(path)
	if err != nil {
		return err
	}
	w.lastMod = info.ModTime()
	w.apply(cfg)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.poll()
			}
		}
	}()
	return nil
}

// poll reloads the file if it changed since the last attempt.
func (w *venueWatcher) poll() {
	info, err := os.Stat(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Msg("venue file not readable")
		return
	}
	if !info.ModTime().After(w.lastMod) {
		return
	}
	w.lastMod = info.ModTime()

	cfg, err := LoadVenueConfig(w.path)
	if err != nil {
		w.logger.Error().Err(err).Time("modified_at", w.lastMod).Msg("venue file rejected, keeping previous seed")
		return
	}
	w.logger.Info().Time("modified_at", w.lastMod).Msg("venue file changed")
	w.apply(cfg)
}

func (w *venueWatcher) apply(cfg *VenueConfig) {
	if w.onUpdate != nil {
		w.onUpdate(cfg)
	}
}
