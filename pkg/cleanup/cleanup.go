package cleanup

import (
	"context"
	"time"

	"safewatch-backend/pkg/media"
	"safewatch-backend/pkg/metrics"

	"github.com/rs/zerolog"
)

// ReferencedMedia reports which media references are still in use.
type ReferencedMedia interface {
	MediaRefs(ctx context.Context) (map[string]struct{}, error)
}

// MediaSweeper periodically removes stored media that no alert references.
// Objects younger than the grace period are kept so uploads whose alert has
// not been written yet survive.
type MediaSweeper struct {
	store    media.Store
	refs     ReferencedMedia
	interval time.Duration
	grace    time.Duration
	logger   zerolog.Logger
	now      func() time.Time
	stopChan chan struct{}
	done     chan struct{}
}

func NewMediaSweeper(store media.Store, refs ReferencedMedia, interval, grace time.Duration, logger zerolog.Logger) *MediaSweeper {
	return &MediaSweeper{
		store:    store,
		refs:     refs,
		interval: interval,
		grace:    grace,
		logger:   logger.With().Str("component", "media_sweeper").Logger(),
		now:      time.Now,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called. It sweeps once immediately.
func (s *MediaSweeper) Start() {
	defer close(s.done)
	s.logger.Info().Dur("interval", s.interval).Dur("grace", s.grace).Msg("starting media sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce()

	for {
		select {
		case <-ticker.C:
			s.runOnce()
		case <-s.stopChan:
			s.logger.Info().Msg("stopping media sweeper")
			return
		}
	}
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (s *MediaSweeper) Stop() {
	close(s.stopChan)
	<-s.done
}

func (s *MediaSweeper) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	removed, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("media sweep failed")
		return
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("removed unreferenced media")
	}
}

// Sweep performs a single pass and returns how many objects were removed.
func (s *MediaSweeper) Sweep(ctx context.Context) (int, error) {
	objects, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}

	// listed before loading refs: an alert written in between still has a
	// young file, which the grace period protects
	refs, err := s.refs.MediaRefs(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.grace)
	removed := 0
	for _, obj := range objects {
		if _, inUse := refs[obj.Ref]; inUse {
			continue
		}
		if obj.ModTime.After(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, obj.Ref); err != nil {
			s.logger.Warn().Err(err).Str("media_ref", obj.Ref).Msg("failed to remove unreferenced media")
			continue
		}
		removed++
	}

	metrics.RecordMediaSwept(removed)
	return removed, nil
}
