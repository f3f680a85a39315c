/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/friendsincode/infoscreen/internal/models"
	"github.com/friendsincode/infoscreen/internal/slots"
)

// ErrInfoscreenNotFound is returned when the requested screen does not exist.
var ErrInfoscreenNotFound = errors.New("infoscreen not found")

// Streams holds the two ordered slide sequences shown on a screen.
type Streams struct {
	Screen  models.Infoscreen
	Regular []models.Slide
	Events  []models.Slide
}

// Loader reads the slides eligible for a screen.
type Loader struct {
	db *gorm.DB
}

// NewLoader creates a loader.
func NewLoader(db *gorm.DB) *Loader {
	return &Loader{db: db}
}

// Load returns the approved slides linked to the screen that are visible at
// now, split into regular and event streams and ordered by position.
func (l *Loader) Load(ctx context.Context, infoscreenID string, now time.Time) (*Streams, error) {
	var screen models.Infoscreen
	if err := l.db.WithContext(ctx).First(&screen, "id = ?", infoscreenID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInfoscreenNotFound
		}
		return nil, fmt.Errorf("load infoscreen %s: %w", infoscreenID, err)
	}

	var linked []models.Slide
	err := l.db.WithContext(ctx).
		Joins("JOIN infoscreen_slides ON infoscreen_slides.slide_id = slides.id").
		Where("infoscreen_slides.infoscreen_id = ? AND slides.status = ?", infoscreenID, models.SlideApproved).
		Order("slides.position ASC, slides.created_at ASC, slides.id ASC").
		Find(&linked).Error
	if err != nil {
		return nil, fmt.Errorf("load slides for %s: %w", infoscreenID, err)
	}

	streams := &Streams{Screen: screen}
	for _, slide := range linked {
		if !slide.VisibleAt(now) {
			continue
		}
		if slide.IsEvent {
			streams.Events = append(streams.Events, slide)
		} else {
			streams.Regular = append(streams.Regular, slide)
		}
	}

	if err := slots.Validate(streams.Regular); err != nil {
		return nil, fmt.Errorf("regular slides of %s: %w", screen.Name, err)
	}
	if err := slots.Validate(streams.Events); err != nil {
		return nil, fmt.Errorf("event slides of %s: %w", screen.Name, err)
	}
	return streams, nil
}

// ActiveScreenIDs lists the screens that are republished periodically.
func (l *Loader) ActiveScreenIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := l.db.WithContext(ctx).
		Model(&models.Infoscreen{}).
		Where("active = ?", true).
		Order("name ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list active infoscreens: %w", err)
	}
	return ids, nil
}
