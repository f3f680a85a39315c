/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/friendsincode/infoscreen/internal/config"
	"github.com/friendsincode/infoscreen/internal/models"
	"github.com/friendsincode/infoscreen/internal/slots"
	"github.com/friendsincode/infoscreen/internal/telemetry"
)

var (
	// ErrEmptyPlaylist is returned when a build yields no slides. Such a
	// playlist is never published.
	ErrEmptyPlaylist = errors.New("playlist has no slides")

	// ErrRefused wraps an expansion error under the refuse policy.
	ErrRefused = errors.New("expansion refused")
)

const (
	streamRegular = "regular"
	streamEvents  = "events"
)

// Result is a built playlist in playback order.
type Result struct {
	Slides          []models.Slide
	TotalSlots      int
	EventCount      int
	RegularExpanded bool
	EventsExpanded  bool
}

// Builder turns a screen's slide streams into a playback order.
type Builder struct {
	policy config.ExpansionPolicy
	logger zerolog.Logger
}

// NewBuilder creates a builder. An empty policy means skip.
func NewBuilder(policy config.ExpansionPolicy, logger zerolog.Logger) *Builder {
	if policy == "" {
		policy = config.ExpansionSkip
	}
	return &Builder{
		policy: policy,
		logger: logger.With().Str("component", "playlist_builder").Logger(),
	}
}

// Build expands each stream to the screen's configured minimum and
// interleaves events into the regular rotation.
func (b *Builder) Build(screen models.Infoscreen, regular, events []models.Slide) (*Result, error) {
	regular, regularExpanded, err := b.expand(screen, streamRegular, regular, screen.MinRegularSlots)
	if err != nil {
		telemetry.PlaylistBuildsTotal.WithLabelValues("refused").Inc()
		return nil, err
	}
	events, eventsExpanded, err := b.expand(screen, streamEvents, events, screen.MinEventSlots)
	if err != nil {
		telemetry.PlaylistBuildsTotal.WithLabelValues("refused").Inc()
		return nil, err
	}

	merged := slots.Merge(regular, events)
	if len(merged) == 0 {
		telemetry.PlaylistBuildsTotal.WithLabelValues("empty").Inc()
		return nil, fmt.Errorf("%s: %w", screen.Name, ErrEmptyPlaylist)
	}

	result := &Result{
		Slides:          merged,
		TotalSlots:      slots.Total(merged),
		RegularExpanded: regularExpanded,
		EventsExpanded:  eventsExpanded,
	}
	for _, s := range merged {
		if s.IsEvent {
			result.EventCount++
		}
	}

	telemetry.PlaylistBuildsTotal.WithLabelValues("ok").Inc()
	return result, nil
}

// expand grows one stream to minSlots. A non-positive minimum leaves the
// stream untouched.
func (b *Builder) expand(screen models.Infoscreen, stream string, slides []models.Slide, minSlots int) ([]models.Slide, bool, error) {
	if minSlots <= 0 {
		return slides, false, nil
	}

	expanded, err := slots.Expand(slides, minSlots)
	if err == nil {
		telemetry.PlaylistExpansionsTotal.WithLabelValues(stream, "expanded").Inc()
		return expanded, true, nil
	}

	if b.policy == config.ExpansionRefuse {
		telemetry.PlaylistExpansionsTotal.WithLabelValues(stream, "refused").Inc()
		return nil, false, fmt.Errorf("%w: %s %s stream: %w", ErrRefused, screen.Name, stream, err)
	}

	telemetry.PlaylistExpansionsTotal.WithLabelValues(stream, "skipped").Inc()
	b.logger.Info().
		Err(err).
		Str("infoscreen", screen.Name).
		Str("stream", stream).
		Int("target_slots", minSlots).
		Int("total_slots", slots.Total(slides)).
		Msg("stream not expanded")
	return slides, false, nil
}
