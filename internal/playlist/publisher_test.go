/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/friendsincode/infoscreen/internal/cache"
	"github.com/friendsincode/infoscreen/internal/config"
	"github.com/friendsincode/infoscreen/internal/db"
	"github.com/friendsincode/infoscreen/internal/events"
	"github.com/friendsincode/infoscreen/internal/models"
	"github.com/friendsincode/infoscreen/internal/storage"
)

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(database))
	return database
}

type fixture struct {
	db        *gorm.DB
	root      string
	publisher *Publisher
	bus       *events.Bus
}

func newFixture(t *testing.T, policy config.ExpansionPolicy) *fixture {
	t.Helper()
	database := setupTestDB(t)
	root := t.TempDir()
	store, err := storage.NewLocalStore(root)
	require.NoError(t, err)

	bus := events.NewBus()
	p := NewPublisher(database, NewBuilder(policy, zerolog.Nop()), store, time.Minute, zerolog.Nop())
	p.SetBus(bus)
	p.now = func() time.Time { return testNow }

	return &fixture{db: database, root: root, publisher: p, bus: bus}
}

func (f *fixture) screen(t *testing.T, id, name string, minRegular, minEvents int) {
	t.Helper()
	require.NoError(t, f.db.Create(&models.Infoscreen{
		ID: id, Name: name, MinRegularSlots: minRegular, MinEventSlots: minEvents, SlotSeconds: 10, Active: true,
	}).Error)
}

func (f *fixture) slide(t *testing.T, screenID string, s models.Slide) {
	t.Helper()
	if s.Status == "" {
		s.Status = models.SlideApproved
	}
	if s.Title == "" {
		s.Title = s.ID
	}
	require.NoError(t, f.db.Create(&s).Error)
	if screenID != "" {
		require.NoError(t, f.db.Create(&models.InfoscreenSlide{InfoscreenID: screenID, SlideID: s.ID}).Error)
	}
}

func entryIDs(m *Manifest) []string {
	ids := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		ids[i] = e.SlideID
	}
	return ids
}

func TestPublishWritesManifestAndRecord(t *testing.T) {
	f := newFixture(t, config.ExpansionSkip)
	f.screen(t, "screen-1", "Mensa Süd", 0, 0)
	f.slide(t, "screen-1", models.Slide{ID: "a", NumberSlots: 1, Position: 1})
	f.slide(t, "screen-1", models.Slide{ID: "b", NumberSlots: 1, Position: 2})
	f.slide(t, "screen-1", models.Slide{ID: "c", NumberSlots: 1, Position: 3})
	f.slide(t, "screen-1", models.Slide{ID: "x", NumberSlots: 1, Position: 1, IsEvent: true})

	sub := f.bus.Subscribe(events.EventPlaylistPublished)

	m, err := f.publisher.Publish(context.Background(), "screen-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "x", "b", "c"}, entryIDs(m))
	assert.Equal(t, 1, m.Version)

	data, err := os.ReadFile(filepath.Join(f.root, "mensa-sud", "playlist.json"))
	require.NoError(t, err)
	stored, err := DecodeManifest(data)
	require.NoError(t, err)
	assert.Equal(t, entryIDs(m), entryIDs(stored))

	var record models.PublishedPlaylist
	require.NoError(t, f.db.First(&record, "infoscreen_id = ?", "screen-1").Error)
	assert.Equal(t, "mensa-sud/playlist.json", record.StorageKey)
	assert.Equal(t, 4, record.SlideCount)
	assert.Equal(t, 1, record.EventCount)

	select {
	case payload := <-sub:
		assert.Equal(t, "screen-1", payload["infoscreen_id"])
		assert.Equal(t, 1, payload["version"])
	default:
		t.Fatal("expected playlist.published event")
	}

	m, err = f.publisher.Publish(context.Background(), "screen-1")
	require.NoError(t, err)
	assert.Equal(t, 2, m.Version)
}

func TestPublishFiltersIneligibleSlides(t *testing.T) {
	f := newFixture(t, config.ExpansionSkip)
	f.screen(t, "screen-1", "Lobby", 0, 0)
	f.screen(t, "screen-2", "Library", 0, 0)

	past := testNow.Add(-time.Hour)
	future := testNow.Add(time.Hour)

	f.slide(t, "screen-1", models.Slide{ID: "ok", NumberSlots: 1, Position: 1})
	f.slide(t, "screen-1", models.Slide{ID: "pending", NumberSlots: 1, Position: 2, Status: models.SlidePending})
	f.slide(t, "screen-1", models.Slide{ID: "rejected", NumberSlots: 1, Position: 3, Status: models.SlideRejected})
	f.slide(t, "screen-1", models.Slide{ID: "expired", NumberSlots: 1, Position: 4, VisibleUntil: &past})
	f.slide(t, "screen-1", models.Slide{ID: "upcoming", NumberSlots: 1, Position: 5, VisibleFrom: &future})
	f.slide(t, "screen-1", models.Slide{ID: "current", NumberSlots: 1, Position: 6, VisibleFrom: &past, VisibleUntil: &future})
	f.slide(t, "screen-2", models.Slide{ID: "elsewhere", NumberSlots: 1, Position: 0})
	f.slide(t, "", models.Slide{ID: "unlinked", NumberSlots: 1, Position: 0})

	m, err := f.publisher.Publish(context.Background(), "screen-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"ok", "current"}, entryIDs(m))
}

func TestPublishExpandsToMinimum(t *testing.T) {
	f := newFixture(t, config.ExpansionSkip)
	f.screen(t, "screen-1", "Lobby", 7, 0)
	f.slide(t, "screen-1", models.Slide{ID: "a", NumberSlots: 2, Position: 1})
	f.slide(t, "screen-1", models.Slide{ID: "b", NumberSlots: 1, Position: 2})

	m, err := f.publisher.Publish(context.Background(), "screen-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "a", "b"}, entryIDs(m))
	assert.True(t, m.RegularExpanded)
	assert.Equal(t, 6, m.TotalSlots)
	assert.Equal(t, 60, m.TotalSeconds)
}

func TestPublishRefusedAndEmpty(t *testing.T) {
	f := newFixture(t, config.ExpansionRefuse)
	f.screen(t, "refuse", "Refuse", 1, 0)
	f.slide(t, "refuse", models.Slide{ID: "a", NumberSlots: 1})
	f.screen(t, "empty", "Empty", 0, 0)
	f.slide(t, "empty", models.Slide{ID: "x", NumberSlots: 1, IsEvent: true})

	failed := f.bus.Subscribe(events.EventPlaylistFailed)

	_, err := f.publisher.Publish(context.Background(), "refuse")
	assert.ErrorIs(t, err, ErrRefused)

	_, err = f.publisher.Publish(context.Background(), "empty")
	assert.ErrorIs(t, err, ErrEmptyPlaylist)

	var count int64
	require.NoError(t, f.db.Model(&models.PublishedPlaylist{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.NoDirExists(t, filepath.Join(f.root, "empty"))
	assert.Len(t, failed, 2)

	_, err = f.publisher.Publish(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrInfoscreenNotFound)
}

func TestPublishRejectsInvalidWeights(t *testing.T) {
	f := newFixture(t, config.ExpansionSkip)
	f.screen(t, "screen-1", "Lobby", 0, 0)
	f.slide(t, "screen-1", models.Slide{ID: "a", NumberSlots: 1})
	f.slide(t, "screen-1", models.Slide{ID: "zero", NumberSlots: 0, IsEvent: true})

	_, err := f.publisher.Publish(context.Background(), "screen-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event slides of Lobby")
}

func TestPublishAllContinuesAfterFailure(t *testing.T) {
	f := newFixture(t, config.ExpansionSkip)
	f.screen(t, "good", "Good", 0, 0)
	f.slide(t, "good", models.Slide{ID: "a", NumberSlots: 1})
	f.screen(t, "bad", "Bad", 0, 0)
	require.NoError(t, f.db.Create(&models.Infoscreen{ID: "off", Name: "Off"}).Error)

	published, err := f.publisher.PublishAll(context.Background())
	assert.Equal(t, 1, published)
	assert.ErrorIs(t, err, ErrEmptyPlaylist)
	assert.FileExists(t, filepath.Join(f.root, "good", "playlist.json"))
	assert.NoFileExists(t, filepath.Join(f.root, "off", "playlist.json"))
}

func TestPreviewDoesNotPublish(t *testing.T) {
	f := newFixture(t, config.ExpansionSkip)
	f.screen(t, "screen-1", "Lobby", 0, 0)
	f.slide(t, "screen-1", models.Slide{ID: "a", NumberSlots: 1})

	m, err := f.publisher.Preview(context.Background(), "screen-1")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Version)
	assert.NoFileExists(t, filepath.Join(f.root, "lobby", "playlist.json"))

	_, err = f.publisher.Latest(context.Background(), "screen-1")
	assert.ErrorIs(t, err, ErrNotPublished)
}

func TestLatestUsesCache(t *testing.T) {
	f := newFixture(t, config.ExpansionSkip)
	mr := miniredis.RunT(t)
	cfg := cache.DefaultConfig()
	cfg.RedisAddr = mr.Addr()
	c, err := cache.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	f.screen(t, "screen-1", "Lobby", 0, 0)
	f.slide(t, "screen-1", models.Slide{ID: "a", NumberSlots: 1})

	// Without cache the manifest comes from storage.
	_, err = f.publisher.Publish(context.Background(), "screen-1")
	require.NoError(t, err)
	data, err := f.publisher.Latest(context.Background(), "screen-1")
	require.NoError(t, err)
	m, err := DecodeManifest(data)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Version)

	f.publisher.SetCache(c)
	_, err = f.publisher.Publish(context.Background(), "screen-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists(cache.KeyManifest+"screen-1"))

	require.NoError(t, os.Remove(filepath.Join(f.root, "lobby", "playlist.json")))
	data, err = f.publisher.Latest(context.Background(), "screen-1")
	require.NoError(t, err)
	m, err = DecodeManifest(data)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Version)
}

func TestHistoryNewestFirst(t *testing.T) {
	f := newFixture(t, config.ExpansionSkip)
	f.screen(t, "screen-1", "Lobby", 0, 0)
	f.slide(t, "screen-1", models.Slide{ID: "a", NumberSlots: 1})

	for i := 0; i < 3; i++ {
		_, err := f.publisher.Publish(context.Background(), "screen-1")
		require.NoError(t, err)
	}

	records, err := f.publisher.History(context.Background(), "screen-1", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 3, records[0].Version)
	assert.Equal(t, 2, records[1].Version)
}

type failingStore struct {
	storage.ObjectStore
	err error
}

func (s *failingStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if s.err != nil {
		return s.err
	}
	return s.ObjectStore.Put(ctx, key, data, contentType)
}

func TestPublishRollsBackRecordWhenStoreFails(t *testing.T) {
	f := newFixture(t, config.ExpansionSkip)
	f.screen(t, "screen-1", "Lobby", 0, 0)
	f.slide(t, "screen-1", models.Slide{ID: "a", NumberSlots: 1})

	_, err := f.publisher.Publish(context.Background(), "screen-1")
	require.NoError(t, err)

	store := &failingStore{ObjectStore: f.publisher.store, err: errors.New("bucket offline")}
	f.publisher.store = store
	failed := f.bus.Subscribe(events.EventPlaylistFailed)

	_, err = f.publisher.Publish(context.Background(), "screen-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket offline")

	var count int64
	require.NoError(t, f.db.Model(&models.PublishedPlaylist{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	select {
	case payload := <-failed:
		assert.Equal(t, "store", payload["stage"])
	default:
		t.Fatal("expected playlist.failed event")
	}

	data, err := f.publisher.Latest(context.Background(), "screen-1")
	require.NoError(t, err)
	m, err := DecodeManifest(data)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Version)

	store.err = nil
	m, err = f.publisher.Publish(context.Background(), "screen-1")
	require.NoError(t, err)
	assert.Equal(t, 2, m.Version)
}

func TestPublishRejectsSharedStorageKey(t *testing.T) {
	f := newFixture(t, config.ExpansionSkip)
	f.screen(t, "s1", "Foyer", 0, 0)
	f.slide(t, "s1", models.Slide{ID: "a", NumberSlots: 1})
	f.screen(t, "s2", "foyer", 0, 0)
	f.slide(t, "s2", models.Slide{ID: "b", NumberSlots: 1})

	_, err := f.publisher.Publish(context.Background(), "s1")
	require.NoError(t, err)

	_, err = f.publisher.Publish(context.Background(), "s2")
	assert.ErrorIs(t, err, ErrStorageKeyTaken)

	data, err := f.publisher.Latest(context.Background(), "s1")
	require.NoError(t, err)
	m, err := DecodeManifest(data)
	require.NoError(t, err)
	assert.Equal(t, "Foyer", m.Infoscreen)
	assert.Equal(t, []string{"a"}, entryIDs(m))

	_, err = f.publisher.Latest(context.Background(), "s2")
	assert.ErrorIs(t, err, ErrNotPublished)
}

func TestRunPublishesWithoutCache(t *testing.T) {
	f := newFixture(t, config.ExpansionSkip)
	require.Nil(t, f.publisher.cache)
	f.screen(t, "screen-1", "Lobby", 0, 0)
	f.slide(t, "screen-1", models.Slide{ID: "a", NumberSlots: 1})

	published := f.bus.Subscribe(events.EventPlaylistPublished)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.publisher.Run(ctx) }()

	select {
	case payload := <-published:
		assert.Equal(t, "screen-1", payload["infoscreen_id"])
	case <-time.After(3 * time.Second):
		t.Fatal("publisher loop did not publish")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	data, err := f.publisher.Latest(context.Background(), "screen-1")
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
