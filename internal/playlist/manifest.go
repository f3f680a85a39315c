/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/friendsincode/infoscreen/internal/models"
)

// ManifestFile is the object name of a published playlist inside a screen's folder.
const ManifestFile = "playlist.json"

// ManifestContentType is stored alongside published manifests.
const ManifestContentType = "application/json"

// Manifest is the published playlist a screen plays.
type Manifest struct {
	InfoscreenID    string    `json:"infoscreen_id"`
	Infoscreen      string    `json:"infoscreen"`
	Version         int       `json:"version"`
	GeneratedAt     time.Time `json:"generated_at"`
	SlotSeconds     int       `json:"slot_seconds"`
	TotalSlots      int       `json:"total_slots"`
	TotalSeconds    int       `json:"total_seconds"`
	RegularExpanded bool      `json:"regular_expanded"`
	EventsExpanded  bool      `json:"events_expanded"`
	Entries         []Entry   `json:"entries"`
}

// Entry is one playback position.
type Entry struct {
	Position        int    `json:"position"`
	SlideID         string `json:"slide_id"`
	Title           string `json:"title"`
	MediaURL        string `json:"media_url"`
	MediaType       string `json:"media_type"`
	Slots           int    `json:"slots"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Event           bool   `json:"event"`
}

// NewManifest describes a built playlist for screen.
func NewManifest(screen models.Infoscreen, result *Result, version int, generatedAt time.Time) *Manifest {
	slotSeconds := int(screen.SlotDuration() / time.Second)

	m := &Manifest{
		InfoscreenID:    screen.ID,
		Infoscreen:      screen.Name,
		Version:         version,
		GeneratedAt:     generatedAt.UTC(),
		SlotSeconds:     slotSeconds,
		TotalSlots:      result.TotalSlots,
		TotalSeconds:    result.TotalSlots * slotSeconds,
		RegularExpanded: result.RegularExpanded,
		EventsExpanded:  result.EventsExpanded,
		Entries:         make([]Entry, 0, len(result.Slides)),
	}
	for i, s := range result.Slides {
		m.Entries = append(m.Entries, Entry{
			Position:        i + 1,
			SlideID:         s.ID,
			Title:           s.Title,
			MediaURL:        s.MediaURL,
			MediaType:       string(s.MediaType),
			Slots:           s.NumberSlots,
			DurationSeconds: s.DurationSeconds,
			Event:           s.IsEvent,
		})
	}
	return m
}

// Encode renders the manifest as indented JSON.
func (m *Manifest) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return data, nil
}

// DecodeManifest parses a published manifest.
func DecodeManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// StorageKey returns the object key a screen's manifest is published under.
func StorageKey(infoscreenName string) string {
	return Slugify(infoscreenName) + "/" + ManifestFile
}

// Slugify lowercases s, folds accents and joins the remaining letters and
// digits with single dashes. An empty result becomes "infoscreen".
func Slugify(s string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	folded = strings.NewReplacer("ß", "ss", "ẞ", "ss").Replace(folded)

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "infoscreen"
	}
	return slug
}
