/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/friendsincode/infoscreen/internal/cache"
	"github.com/friendsincode/infoscreen/internal/events"
	"github.com/friendsincode/infoscreen/internal/models"
	"github.com/friendsincode/infoscreen/internal/storage"
	"github.com/friendsincode/infoscreen/internal/telemetry"
)

var (
	// ErrNotPublished is returned by Latest for screens without a publication.
	ErrNotPublished = errors.New("playlist not published")
	// ErrStorageKeyTaken is returned when another screen already publishes
	// under the same storage key.
	ErrStorageKeyTaken = errors.New("storage key belongs to another infoscreen")
)

const tracerName = "infoscreen/playlist"

// Publisher builds playlists and hands them to storage.
type Publisher struct {
	db       *gorm.DB
	loader   *Loader
	builder  *Builder
	store    storage.ObjectStore
	cache    *cache.Cache
	bus      events.Publisher
	logger   zerolog.Logger
	interval time.Duration
	now      func() time.Time

	mu sync.Mutex // serialises publications of this process
}

// NewPublisher constructs the publishing service. A non-positive interval
// disables the periodic loop in Run.
func NewPublisher(db *gorm.DB, builder *Builder, store storage.ObjectStore, interval time.Duration, logger zerolog.Logger) *Publisher {
	return &Publisher{
		db:       db,
		loader:   NewLoader(db),
		builder:  builder,
		store:    store,
		logger:   logger.With().Str("component", "publisher").Logger(),
		interval: interval,
		now:      time.Now,
	}
}

// SetCache sets the manifest cache.
func (p *Publisher) SetCache(c *cache.Cache) {
	p.cache = c
}

// SetBus sets the bus publication events are sent to.
func (p *Publisher) SetBus(bus events.Publisher) {
	p.bus = bus
}

// Preview builds the playlist a publication would produce without storing it.
func (p *Publisher) Preview(ctx context.Context, infoscreenID string) (*Manifest, error) {
	streams, err := p.loader.Load(ctx, infoscreenID, p.now())
	if err != nil {
		return nil, err
	}
	result, err := p.builder.Build(streams.Screen, streams.Regular, streams.Events)
	if err != nil {
		return nil, err
	}
	version, err := p.nextVersion(p.db.WithContext(ctx), infoscreenID)
	if err != nil {
		return nil, err
	}
	return NewManifest(streams.Screen, result, version, p.now()), nil
}

// Publish builds the playlist of a screen, stores the manifest and records the publication.
func (p *Publisher) Publish(ctx context.Context, infoscreenID string) (*Manifest, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "playlist.publish", attribute.String("infoscreen.id", infoscreenID))
	defer span.End()

	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	defer func() { telemetry.PublishDuration.Observe(time.Since(start).Seconds()) }()

	now := p.now()
	streams, err := p.loader.Load(ctx, infoscreenID, now)
	if err != nil {
		return nil, p.fail(span, infoscreenID, "load", err)
	}
	screen := streams.Screen

	result, err := p.builder.Build(screen, streams.Regular, streams.Events)
	if err != nil {
		return nil, p.fail(span, infoscreenID, "build", err)
	}

	var (
		manifest *Manifest
		data     []byte
		version  int
		stage    string
	)
	key := StorageKey(screen.Name)

	// A failed upload rolls the record back. Concurrent publications from
	// other instances collide on the (infoscreen_id, version) index.
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stage = "key"
		var owners int64
		if err := tx.Model(&models.PublishedPlaylist{}).
			Where("storage_key = ? AND infoscreen_id <> ?", key, screen.ID).
			Count(&owners).Error; err != nil {
			return fmt.Errorf("check storage key: %w", err)
		}
		if owners > 0 {
			return fmt.Errorf("%w: %s", ErrStorageKeyTaken, key)
		}

		stage = "version"
		var err error
		version, err = p.nextVersion(tx, infoscreenID)
		if err != nil {
			return err
		}

		stage = "encode"
		manifest = NewManifest(screen, result, version, now)
		data, err = manifest.Encode()
		if err != nil {
			return err
		}

		stage = "record"
		record := models.PublishedPlaylist{
			ID:              uuid.NewString(),
			InfoscreenID:    screen.ID,
			Version:         version,
			StorageKey:      key,
			SlideCount:      len(result.Slides),
			EventCount:      result.EventCount,
			TotalSlots:      result.TotalSlots,
			RegularExpanded: result.RegularExpanded,
			EventsExpanded:  result.EventsExpanded,
			PublishedAt:     now.UTC(),
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("record publication: %w", err)
		}

		stage = "store"
		if err := p.store.Put(ctx, key, data, ManifestContentType); err != nil {
			return fmt.Errorf("store %s: %w", key, err)
		}
		return nil
	})
	if err != nil {
		return nil, p.fail(span, infoscreenID, stage, err)
	}

	if err := p.cache.SetManifest(ctx, screen.ID, data); err != nil {
		p.logger.Debug().Err(err).Str("infoscreen", screen.Name).Msg("manifest not cached")
	}

	telemetry.PlaylistSlides.WithLabelValues(screen.Name).Set(float64(len(result.Slides)))
	span.SetAttributes(
		attribute.Int("playlist.version", version),
		attribute.Int("playlist.slides", len(result.Slides)),
	)

	if p.bus != nil {
		p.bus.Publish(events.EventPlaylistPublished, events.Payload{
			"infoscreen_id": screen.ID,
			"infoscreen":    screen.Name,
			"version":       version,
			"storage_key":   key,
			"slides":        len(result.Slides),
			"total_slots":   result.TotalSlots,
		})
	}

	p.logger.Info().
		Str("infoscreen", screen.Name).
		Int("version", version).
		Int("slides", len(result.Slides)).
		Int("events", result.EventCount).
		Int("total_slots", result.TotalSlots).
		Str("key", key).
		Msg("playlist published")

	return manifest, nil
}

// PublishAll republishes every active screen. Failures of individual screens
// are collected; the remaining screens are still published.
func (p *Publisher) PublishAll(ctx context.Context) (int, error) {
	ids, err := p.loader.ActiveScreenIDs(ctx)
	if err != nil {
		return 0, err
	}

	var (
		published int
		errs      []error
	)
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := p.Publish(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", id, err))
			continue
		}
		published++
	}
	return published, errors.Join(errs...)
}

// Run republishes all active screens on every interval until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	if p.interval <= 0 {
		p.logger.Info().Msg("periodic publishing disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info().Dur("interval", p.interval).Msg("publisher loop started")
	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("publisher loop stopped")
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Publisher) tick(ctx context.Context) {
	published, err := p.PublishAll(ctx)
	if err != nil && ctx.Err() == nil {
		p.logger.Warn().Err(err).Int("published", published).Msg("some playlists failed to publish")
		return
	}
	p.logger.Debug().Int("published", published).Msg("publish cycle complete")
}

// Latest returns the encoded manifest of the last publication, from cache
// when possible.
func (p *Publisher) Latest(ctx context.Context, infoscreenID string) ([]byte, error) {
	if data, ok := p.cache.GetManifest(ctx, infoscreenID); ok {
		return data, nil
	}

	var record models.PublishedPlaylist
	err := p.db.WithContext(ctx).
		Where("infoscreen_id = ?", infoscreenID).
		Order("version DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotPublished
	}
	if err != nil {
		return nil, fmt.Errorf("load last publication: %w", err)
	}

	data, err := p.store.Get(ctx, record.StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotPublished
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", record.StorageKey, err)
	}

	if err := p.cache.SetManifest(ctx, infoscreenID, data); err != nil {
		p.logger.Debug().Err(err).Str("infoscreen_id", infoscreenID).Msg("manifest not cached")
	}
	return data, nil
}

// History lists the publications of a screen, newest first.
func (p *Publisher) History(ctx context.Context, infoscreenID string, limit int) ([]models.PublishedPlaylist, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []models.PublishedPlaylist
	err := p.db.WithContext(ctx).
		Where("infoscreen_id = ?", infoscreenID).
		Order("version DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list publications: %w", err)
	}
	return records, nil
}

func (p *Publisher) nextVersion(tx *gorm.DB, infoscreenID string) (int, error) {
	var current int
	err := tx.
		Model(&models.PublishedPlaylist{}).
		Where("infoscreen_id = ?", infoscreenID).
		Select("COALESCE(MAX(version), 0)").
		Scan(&current).Error
	if err != nil {
		return 0, fmt.Errorf("next version: %w", err)
	}
	return current + 1, nil
}

func (p *Publisher) fail(span trace.Span, infoscreenID, stage string, err error) error {
	telemetry.RecordError(span, err)
	telemetry.PublishErrorsTotal.WithLabelValues(stage).Inc()

	p.logger.Warn().Err(err).Str("infoscreen_id", infoscreenID).Str("stage", stage).Msg("publish failed")
	if p.bus != nil {
		p.bus.Publish(events.EventPlaylistFailed, events.Payload{
			"infoscreen_id": infoscreenID,
			"stage":         stage,
			"error":         err.Error(),
		})
	}
	return err
}
