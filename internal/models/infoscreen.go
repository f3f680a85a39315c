/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// DefaultSlotSeconds is the display time of one slot when a screen does not set its own.
const DefaultSlotSeconds = 10

// Infoscreen is a physical display that plays a published playlist.
type Infoscreen struct {
	ID          string `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string `gorm:"uniqueIndex" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Location    string `json:"location"`

	// Minimum slot counts per stream. Zero disables expansion for that stream.
	MinRegularSlots int `json:"min_regular_slots"`
	MinEventSlots   int `json:"min_event_slots"`

	SlotSeconds int  `json:"slot_seconds"`
	Active      bool `gorm:"index" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SlotDuration returns how long a single slot is shown on this screen.
func (i Infoscreen) SlotDuration() time.Duration {
	if i.SlotSeconds <= 0 {
		return DefaultSlotSeconds * time.Second
	}
	return time.Duration(i.SlotSeconds) * time.Second
}

// SlideStatus tracks a slide through the approval workflow.
type SlideStatus string

const (
	SlidePending  SlideStatus = "pending"
	SlideApproved SlideStatus = "approved"
	SlideRejected SlideStatus = "rejected"
)

// MediaType distinguishes still images from videos.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Slide is one piece of content shown on infoscreens.
type Slide struct {
	ID              string    `gorm:"type:uuid;primaryKey" json:"id"`
	Title           string    `gorm:"index" json:"title"`
	Group           string    `gorm:"column:group_name;index" json:"group"`
	MediaURL        string    `json:"media_url"`
	MediaType       MediaType `gorm:"type:varchar(16)" json:"media_type"`
	DurationSeconds int       `json:"duration_seconds"`

	// NumberSlots is the scheduling weight of the slide.
	NumberSlots int  `json:"number_slots"`
	IsEvent     bool `gorm:"index" json:"is_event"`
	Position    int  `json:"position"`

	Status       SlideStatus `gorm:"type:varchar(16);index" json:"status"`
	ReviewedBy   string      `json:"reviewed_by,omitempty"`
	ReviewNote   string      `gorm:"type:text" json:"review_note,omitempty"`
	ReviewedAt   *time.Time  `json:"reviewed_at,omitempty"`
	VisibleFrom  *time.Time  `gorm:"index" json:"visible_from,omitempty"`
	VisibleUntil *time.Time  `gorm:"index" json:"visible_until,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Slots reports the scheduling weight of the slide.
func (s Slide) Slots() int {
	return s.NumberSlots
}

// VisibleAt reports whether the slide's display window contains t.
func (s Slide) VisibleAt(t time.Time) bool {
	if s.VisibleFrom != nil && t.Before(*s.VisibleFrom) {
		return false
	}
	if s.VisibleUntil != nil && !t.Before(*s.VisibleUntil) {
		return false
	}
	return true
}

// InfoscreenSlide links slides to the screens they are shown on.
type InfoscreenSlide struct {
	InfoscreenID string `gorm:"type:uuid;primaryKey"`
	SlideID      string `gorm:"type:uuid;primaryKey"`
}

// TableName pins the join table name.
func (InfoscreenSlide) TableName() string {
	return "infoscreen_slides"
}

// PublishedPlaylist records one publication of a screen's playlist.
type PublishedPlaylist struct {
	ID              string    `gorm:"type:uuid;primaryKey" json:"id"`
	InfoscreenID    string    `gorm:"type:uuid;uniqueIndex:idx_published_screen_version" json:"infoscreen_id"`
	Version         int       `gorm:"uniqueIndex:idx_published_screen_version" json:"version"`
	StorageKey      string    `gorm:"index" json:"storage_key"`
	SlideCount      int       `json:"slide_count"`
	EventCount      int       `json:"event_count"`
	TotalSlots      int       `json:"total_slots"`
	RegularExpanded bool      `json:"regular_expanded"`
	EventsExpanded  bool      `json:"events_expanded"`
	PublishedAt     time.Time `gorm:"index" json:"published_at"`
}
