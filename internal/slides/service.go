/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package slides manages slide submissions and their review.
package slides

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/infoscreen/internal/events"
	"github.com/friendsincode/infoscreen/internal/models"
)

var (
	// ErrNotFound indicates the slide does not exist.
	ErrNotFound = errors.New("slide not found")

	// ErrInvalid wraps validation failures of slide input.
	ErrInvalid = errors.New("invalid slide")

	// ErrUnknownInfoscreen indicates an assignment names a screen that does not exist.
	ErrUnknownInfoscreen = errors.New("unknown infoscreen")
)

// CreateInput describes a new slide submission.
type CreateInput struct {
	Title           string           `json:"title"`
	Group           string           `json:"group"`
	MediaURL        string           `json:"media_url"`
	MediaType       models.MediaType `json:"media_type"`
	DurationSeconds int              `json:"duration_seconds"`
	NumberSlots     int              `json:"number_slots"`
	IsEvent         bool             `json:"is_event"`
	Position        int              `json:"position"`
	VisibleFrom     *time.Time       `json:"visible_from"`
	VisibleUntil    *time.Time       `json:"visible_until"`
	InfoscreenIDs   []string         `json:"infoscreen_ids"`
}

func (in *CreateInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.MediaURL = strings.TrimSpace(in.MediaURL)

	switch {
	case in.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalid)
	case in.MediaURL == "":
		return fmt.Errorf("%w: media_url is required", ErrInvalid)
	case in.NumberSlots < 1:
		return fmt.Errorf("%w: number_slots must be at least 1", ErrInvalid)
	case in.DurationSeconds < 0:
		return fmt.Errorf("%w: duration_seconds must not be negative", ErrInvalid)
	case in.VisibleFrom != nil && in.VisibleUntil != nil && !in.VisibleUntil.After(*in.VisibleFrom):
		return fmt.Errorf("%w: visible_until must be after visible_from", ErrInvalid)
	}

	switch in.MediaType {
	case "":
		in.MediaType = models.MediaImage
	case models.MediaImage, models.MediaVideo:
	default:
		return fmt.Errorf("%w: unsupported media_type %q", ErrInvalid, in.MediaType)
	}
	return nil
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Status  models.SlideStatus
	IsEvent *bool
	Group   string
}

// Service implements the slide workflow.
type Service struct {
	db     *gorm.DB
	bus    events.Publisher
	logger zerolog.Logger
}

// NewService creates a slide service. bus may be nil.
func NewService(db *gorm.DB, bus events.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "slides").Logger(),
	}
}

// Create stores a new slide pending review and links it to the given screens.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Slide, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	slide := models.Slide{
		ID:              uuid.NewString(),
		Title:           in.Title,
		Group:           strings.TrimSpace(in.Group),
		MediaURL:        in.MediaURL,
		MediaType:       in.MediaType,
		DurationSeconds: in.DurationSeconds,
		NumberSlots:     in.NumberSlots,
		IsEvent:         in.IsEvent,
		Position:        in.Position,
		Status:          models.SlidePending,
		VisibleFrom:     in.VisibleFrom,
		VisibleUntil:    in.VisibleUntil,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&slide).Error; err != nil {
			return fmt.Errorf("create slide: %w", err)
		}
		return replaceAssignments(tx, slide.ID, in.InfoscreenIDs)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("slide_id", slide.ID).Str("title", slide.Title).Bool("event", slide.IsEvent).Msg("slide submitted")
	s.publish(events.EventSlideCreated, events.Payload{
		"slide_id": slide.ID,
		"title":    slide.Title,
		"group":    slide.Group,
		"event":    slide.IsEvent,
	})
	return &slide, nil
}

// Get loads a slide.
func (s *Service) Get(ctx context.Context, id string) (*models.Slide, error) {
	var slide models.Slide
	if err := s.db.WithContext(ctx).First(&slide, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load slide %s: %w", id, err)
	}
	return &slide, nil
}

// List returns slides matching filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]models.Slide, error) {
	q := s.db.WithContext(ctx).Model(&models.Slide{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.IsEvent != nil {
		q = q.Where("is_event = ?", *filter.IsEvent)
	}
	if filter.Group != "" {
		q = q.Where("group_name = ?", filter.Group)
	}

	var out []models.Slide
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list slides: %w", err)
	}
	return out, nil
}

// Approve marks a slide as approved so it becomes eligible for playlists.
func (s *Service) Approve(ctx context.Context, id, reviewer, note string) (*models.Slide, error) {
	return s.review(ctx, id, models.SlideApproved, reviewer, note)
}

// Reject marks a slide as rejected.
func (s *Service) Reject(ctx context.Context, id, reviewer, note string) (*models.Slide, error) {
	return s.review(ctx, id, models.SlideRejected, reviewer, note)
}

func (s *Service) review(ctx context.Context, id string, status models.SlideStatus, reviewer, note string) (*models.Slide, error) {
	slide, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":      status,
		"reviewed_by": strings.TrimSpace(reviewer),
		"review_note": strings.TrimSpace(note),
		"reviewed_at": now,
	}
	if err := s.db.WithContext(ctx).Model(slide).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("review slide %s: %w", id, err)
	}

	slide.Status = status
	slide.ReviewedBy = updates["reviewed_by"].(string)
	slide.ReviewNote = updates["review_note"].(string)
	slide.ReviewedAt = &now

	s.logger.Info().Str("slide_id", id).Str("status", string(status)).Str("reviewer", slide.ReviewedBy).Msg("slide reviewed")
	s.publish(events.EventSlideReviewed, events.Payload{
		"slide_id": id,
		"status":   string(status),
		"reviewer": slide.ReviewedBy,
	})
	return slide, nil
}

// Assign replaces the set of screens a slide is shown on.
func (s *Service) Assign(ctx context.Context, slideID string, infoscreenIDs []string) error {
	if _, err := s.Get(ctx, slideID); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceAssignments(tx, slideID, infoscreenIDs)
	})
	if err != nil {
		return err
	}

	s.publish(events.EventSlideAssigned, events.Payload{
		"slide_id":       slideID,
		"infoscreen_ids": infoscreenIDs,
	})
	return nil
}

// AssignedScreens lists the IDs of the screens a slide is linked to.
func (s *Service) AssignedScreens(ctx context.Context, slideID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.InfoscreenSlide{}).
		Where("slide_id = ?", slideID).
		Order("infoscreen_id").
		Pluck("infoscreen_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return ids, nil
}

// ListForScreen returns every slide linked to a screen regardless of status,
// in playlist order.
func (s *Service) ListForScreen(ctx context.Context, infoscreenID string) ([]models.Slide, error) {
	var out []models.Slide
	err := s.db.WithContext(ctx).
		Joins("JOIN infoscreen_slides ON infoscreen_slides.slide_id = slides.id").
		Where("infoscreen_slides.infoscreen_id = ?", infoscreenID).
		Order("slides.is_event ASC, slides.position ASC, slides.created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list slides for %s: %w", infoscreenID, err)
	}
	return out, nil
}

func replaceAssignments(tx *gorm.DB, slideID string, infoscreenIDs []string) error {
	ids := dedupe(infoscreenIDs)
	if len(ids) > 0 {
		var found int64
		if err := tx.Model(&models.Infoscreen{}).Where("id IN ?", ids).Count(&found).Error; err != nil {
			return fmt.Errorf("check infoscreens: %w", err)
		}
		if int(found) != len(ids) {
			return ErrUnknownInfoscreen
		}
	}

	if err := tx.Where("slide_id = ?", slideID).Delete(&models.InfoscreenSlide{}).Error; err != nil {
		return fmt.Errorf("clear assignments: %w", err)
	}
	for _, id := range ids {
		if err := tx.Create(&models.InfoscreenSlide{InfoscreenID: id, SlideID: slideID}).Error; err != nil {
			return fmt.Errorf("assign to %s: %w", id, err)
		}
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *Service) publish(eventType events.EventType, payload events.Payload) {
	if s.bus != nil {
		s.bus.Publish(eventType, payload)
	}
}
