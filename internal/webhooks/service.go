/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/infoscreen/internal/events"
	"github.com/friendsincode/infoscreen/internal/models"
)

var (
	ErrNotFound = errors.New("webhook not found")
	ErrInvalid  = errors.New("invalid webhook")
)

// EventTest is sent by Test.
const EventTest = "test"

// Delivered event types.
var deliveredEvents = []events.EventType{
	events.EventPlaylistPublished,
	events.EventPlaylistFailed,
}

// Payload is the body POSTed to webhook endpoints.
type Payload struct {
	Event        string         `json:"event"`
	Timestamp    time.Time      `json:"timestamp"`
	InfoscreenID string         `json:"infoscreen_id,omitempty"`
	Data         events.Payload `json:"data,omitempty"`
}

// CreateInput describes a new webhook target.
type CreateInput struct {
	InfoscreenID string   `json:"infoscreen_id"`
	URL          string   `json:"url"`
	Events       []string `json:"events"`
}

// Service handles webhook registration and delivery.
type Service struct {
	db     *gorm.DB
	bus    events.Broker
	logger zerolog.Logger
	client *http.Client
	wg     sync.WaitGroup
}

// NewService creates a new webhook service.
func NewService(db *gorm.DB, bus events.Broker, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "webhooks").Logger(),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Run delivers playlist events until ctx is cancelled. In-flight deliveries
// finish before Run returns.
func (s *Service) Run(ctx context.Context) error {
	published := s.bus.Subscribe(events.EventPlaylistPublished)
	failed := s.bus.Subscribe(events.EventPlaylistFailed)
	defer func() {
		s.bus.Unsubscribe(events.EventPlaylistPublished, published)
		s.bus.Unsubscribe(events.EventPlaylistFailed, failed)
		s.wg.Wait()
	}()

	s.logger.Info().Msg("webhook service started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("webhook service stopping")
			return ctx.Err()
		case payload, ok := <-published:
			if ok {
				s.handle(ctx, events.EventPlaylistPublished, payload)
			}
		case payload, ok := <-failed:
			if ok {
				s.handle(ctx, events.EventPlaylistFailed, payload)
			}
		}
	}
}

// handle fans one event out to matching targets. Events relayed from other
// instances are delivered by the instance that produced them.
func (s *Service) handle(ctx context.Context, eventType events.EventType, data events.Payload) {
	if events.IsRemote(data) {
		return
	}
	screenID, _ := data["infoscreen_id"].(string)

	var targets []models.WebhookTarget
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Where("infoscreen_id = ? OR infoscreen_id = '' OR infoscreen_id IS NULL", screenID).
		Find(&targets).Error
	if err != nil {
		s.logger.Error().Err(err).Str("infoscreen_id", screenID).Msg("failed to fetch webhooks")
		return
	}

	body, err := json.Marshal(Payload{
		Event:        string(eventType),
		Timestamp:    time.Now().UTC(),
		InfoscreenID: screenID,
		Data:         data,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to marshal webhook payload")
		return
	}

	for _, target := range targets {
		if !target.Handles(string(eventType)) {
			continue
		}
		s.wg.Add(1)
		go func(target models.WebhookTarget) {
			defer s.wg.Done()
			_, _ = s.send(ctx, target, string(eventType), body)
		}(target)
	}
}

// send performs a single delivery and records it.
func (s *Service) send(ctx context.Context, target models.WebhookTarget, eventType string, body []byte) (int, error) {
	start := time.Now()
	status, err := s.post(ctx, target, eventType, body)
	s.logDelivery(target, eventType, body, status, time.Since(start), err)

	switch {
	case err != nil:
		s.logger.Error().Err(err).Str("webhook", target.ID).Str("url", target.URL).Msg("webhook delivery failed")
	case status < 200 || status >= 300:
		err = fmt.Errorf("webhook returned status %d", status)
		s.logger.Warn().Str("webhook", target.ID).Str("event", eventType).Int("status", status).Msg("webhook returned error status")
	default:
		s.logger.Debug().Str("webhook", target.ID).Str("event", eventType).Int("status", status).Msg("webhook delivered")
	}
	return status, err
}

func (s *Service) post(ctx context.Context, target models.WebhookTarget, eventType string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Infoscreen-Webhook/1.0")
	req.Header.Set("X-Infoscreen-Event", eventType)
	req.Header.Set("X-Infoscreen-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	if target.Secret != "" {
		req.Header.Set("X-Infoscreen-Signature", Sign(body, target.Secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return resp.StatusCode, nil
}

// Sign creates the HMAC-SHA256 signature sent in X-Infoscreen-Signature.
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

func (s *Service) logDelivery(target models.WebhookTarget, eventType string, body []byte, status int, took time.Duration, deliveryErr error) {
	entry := &models.WebhookLog{
		ID:         uuid.NewString(),
		TargetID:   target.ID,
		Event:      eventType,
		Payload:    string(body),
		StatusCode: status,
		Duration:   int(took.Milliseconds()),
	}
	if deliveryErr != nil {
		entry.Error = deliveryErr.Error()
	}

	// Recorded even when the triggering request was cancelled.
	if err := s.db.Create(entry).Error; err != nil {
		s.logger.Error().Err(err).Msg("failed to log webhook delivery")
	}
}

// Create registers a target. The returned target carries its signing
// secret; it is not exposed again afterwards.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.WebhookTarget, error) {
	parsed, err := url.Parse(strings.TrimSpace(in.URL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: url must be an absolute http(s) URL", ErrInvalid)
	}

	names := make([]string, 0, len(in.Events))
	for _, e := range in.Events {
		e = strings.TrimSpace(e)
		if !supported(e) {
			return nil, fmt.Errorf("%w: unsupported event %q", ErrInvalid, e)
		}
		names = append(names, e)
	}

	if in.InfoscreenID != "" {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Infoscreen{}).Where("id = ?", in.InfoscreenID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, fmt.Errorf("%w: unknown infoscreen %s", ErrInvalid, in.InfoscreenID)
		}
	}

	target := &models.WebhookTarget{
		ID:           uuid.NewString(),
		InfoscreenID: in.InfoscreenID,
		URL:          parsed.String(),
		Events:       strings.Join(names, ","),
		Secret:       uuid.NewString(),
		Active:       true,
	}
	if err := s.db.WithContext(ctx).Create(target).Error; err != nil {
		return nil, err
	}

	s.logger.Info().Str("webhook", target.ID).Str("url", target.URL).Msg("webhook registered")
	return target, nil
}

func supported(eventType string) bool {
	for _, e := range deliveredEvents {
		if string(e) == eventType {
			return true
		}
	}
	return false
}

// List returns all targets, newest first.
func (s *Service) List(ctx context.Context) ([]models.WebhookTarget, error) {
	targets := make([]models.WebhookTarget, 0)
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&targets).Error
	return targets, err
}

// Get loads a target by ID.
func (s *Service) Get(ctx context.Context, id string) (*models.WebhookTarget, error) {
	var target models.WebhookTarget
	if err := s.db.WithContext(ctx).First(&target, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &target, nil
}

// Delete removes a target and its delivery log.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.WebhookTarget{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Delete(&models.WebhookLog{}, "target_id = ?", id).Error
	})
}

// Deliveries returns the most recent delivery attempts of a target.
func (s *Service) Deliveries(ctx context.Context, id string, limit int) ([]models.WebhookLog, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	logs := make([]models.WebhookLog, 0, limit)
	err := s.db.WithContext(ctx).
		Where("target_id = ?", id).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// Test sends a test payload to a target and reports the HTTP status.
func (s *Service) Test(ctx context.Context, id string) (int, error) {
	target, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	body, err := json.Marshal(Payload{
		Event:        EventTest,
		Timestamp:    time.Now().UTC(),
		InfoscreenID: target.InfoscreenID,
		Data:         events.Payload{"message": "This is a test webhook delivery"},
	})
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}
	return s.send(ctx, *target, EventTest, body)
}
