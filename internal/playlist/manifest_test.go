/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	"testing"
	"time"

	"github.com/friendsincode/infoscreen/internal/models"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Lobby", "lobby"},
		{"Mensa Süd", "mensa-sud"},
		{"  Hörsaal 1 / Foyer  ", "horsaal-1-foyer"},
		{"Straße", "strasse"},
		{"café--bar", "cafe-bar"},
		{"***", "infoscreen"},
		{"", "infoscreen"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStorageKey(t *testing.T) {
	if got := StorageKey("Mensa Süd"); got != "mensa-sud/playlist.json" {
		t.Fatalf("StorageKey = %q", got)
	}
}

func TestNewManifest(t *testing.T) {
	screen := models.Infoscreen{ID: "s1", Name: "Lobby", SlotSeconds: 8}
	result := &Result{
		Slides: []models.Slide{
			{ID: "a", Title: "Welcome", MediaURL: "https://example.org/a.png", MediaType: models.MediaImage, NumberSlots: 1},
			{ID: "x", Title: "Party", MediaURL: "https://example.org/x.mp4", MediaType: models.MediaVideo, NumberSlots: 2, DurationSeconds: 16, IsEvent: true},
		},
		TotalSlots: 3,
		EventCount: 1,
	}
	generated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	m := NewManifest(screen, result, 4, generated)
	if m.Version != 4 || m.Infoscreen != "Lobby" || m.InfoscreenID != "s1" {
		t.Fatalf("unexpected header: %+v", m)
	}
	if m.SlotSeconds != 8 || m.TotalSeconds != 24 {
		t.Fatalf("timing = %d/%d, want 8/24", m.SlotSeconds, m.TotalSeconds)
	}
	if !m.GeneratedAt.Equal(generated) || m.GeneratedAt.Location() != time.UTC {
		t.Fatalf("generated_at = %v", m.GeneratedAt)
	}
	if len(m.Entries) != 2 || m.Entries[1].Position != 2 || !m.Entries[1].Event || m.Entries[1].MediaType != "video" {
		t.Fatalf("unexpected entries: %+v", m.Entries)
	}

	data, err := m.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeManifest(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Entries[0].SlideID != "a" || decoded.TotalSlots != 3 {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestNewManifestDefaultSlotSeconds(t *testing.T) {
	m := NewManifest(models.Infoscreen{Name: "Lobby"}, &Result{Slides: []models.Slide{{ID: "a", NumberSlots: 2}}, TotalSlots: 2}, 1, time.Now())
	if m.SlotSeconds != models.DefaultSlotSeconds || m.TotalSeconds != 2*models.DefaultSlotSeconds {
		t.Fatalf("timing = %d/%d", m.SlotSeconds, m.TotalSeconds)
	}
}
