/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	ws "nhooyr.io/websocket"

	"github.com/friendsincode/infoscreen/internal/cache"
	"github.com/friendsincode/infoscreen/internal/events"
	"github.com/friendsincode/infoscreen/internal/logbuffer"
	"github.com/friendsincode/infoscreen/internal/playlist"
	"github.com/friendsincode/infoscreen/internal/slides"
	"github.com/friendsincode/infoscreen/internal/telemetry"
	"github.com/friendsincode/infoscreen/internal/version"
	"github.com/friendsincode/infoscreen/internal/webhooks"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// API exposes HTTP handlers.
type API struct {
	db        *gorm.DB
	slides    *slides.Service
	publisher *playlist.Publisher
	cache     *cache.Cache
	bus       events.Broker
	logBuffer *logbuffer.Buffer
	webhooks  *webhooks.Service
	logger    zerolog.Logger
}

// New creates the API router wrapper.
func New(db *gorm.DB, slideSvc *slides.Service, publisher *playlist.Publisher, bus events.Broker, logger zerolog.Logger) *API {
	return &API{
		db:        db,
		slides:    slideSvc,
		publisher: publisher,
		bus:       bus,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// SetCache sets the cache used for infoscreen listings.
func (a *API) SetCache(c *cache.Cache) {
	a.cache = c
}

// SetLogBuffer exposes captured log lines under /api/v1/logs.
func (a *API) SetLogBuffer(b *logbuffer.Buffer) {
	a.logBuffer = b
}

// SetWebhooks enables the webhook management endpoints.
func (a *API) SetWebhooks(svc *webhooks.Service) {
	a.webhooks = svc
}

// Routes registers the HTTP routes.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Get("/events", a.handleEvents)
		r.Get("/logs", a.handleLogs)

		r.Route("/infoscreens", func(r chi.Router) {
			r.Get("/", a.handleInfoscreensList)
			r.Post("/", a.handleInfoscreensCreate)
			r.Route("/{infoscreenID}", func(r chi.Router) {
				r.Get("/", a.handleInfoscreensGet)
				r.Get("/slides", a.handleInfoscreenSlides)
				r.Get("/playlist", a.handlePlaylistLatest)
				r.Get("/playlist/preview", a.handlePlaylistPreview)
				r.Get("/playlist/history", a.handlePlaylistHistory)
				r.Post("/publish", a.handlePublish)
			})
		})

		r.Route("/slides", func(r chi.Router) {
			r.Get("/", a.handleSlidesList)
			r.Post("/", a.handleSlidesCreate)
			r.Route("/{slideID}", func(r chi.Router) {
				r.Get("/", a.handleSlidesGet)
				r.Post("/approve", a.handleSlidesApprove)
				r.Post("/reject", a.handleSlidesReject)
				r.Put("/infoscreens", a.handleSlidesAssign)
			})
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Get("/", a.handleWebhooksList)
			r.Post("/", a.handleWebhooksCreate)
			r.Route("/{webhookID}", func(r chi.Router) {
				r.Delete("/", a.handleWebhooksDelete)
				r.Post("/test", a.handleWebhooksTest)
				r.Get("/deliveries", a.handleWebhooksDeliveries)
			})
		})

		r.Route("/scheduler", func(r chi.Router) {
			r.Post("/expand", a.handleSchedulerExpand)
			r.Post("/merge", a.handleSchedulerMerge)
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if sqlDB, err := a.db.DB(); err != nil || sqlDB.PingContext(r.Context()) != nil {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": version.Version,
	})
}

// handleEvents streams bus events to websocket clients. Screens use it to
// learn about new playlists without polling.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	eventTypes := parseEventTypes(r.URL.Query().Get("types"))
	if len(eventTypes) == 0 {
		eventTypes = []events.EventType{events.EventPlaylistPublished, events.EventSlideReviewed}
	}

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.APIWebSocketConnections.Inc()
	defer telemetry.APIWebSocketConnections.Dec()

	// Clients only listen; CloseRead cancels ctx once they hang up.
	ctx, cancel := context.WithCancel(conn.CloseRead(r.Context()))
	defer cancel()

	type envelope struct {
		eventType events.EventType
		payload   events.Payload
	}
	out := make(chan envelope)
	for _, eventType := range eventTypes {
		sub := a.bus.Subscribe(eventType)
		defer a.bus.Unsubscribe(eventType, sub)

		go func(eventType events.EventType, sub events.Subscriber) {
			for {
				select {
				case <-ctx.Done():
					return
				case payload, ok := <-sub:
					if !ok {
						return
					}
					select {
					case out <- envelope{eventType, payload}:
					case <-ctx.Done():
						return
					}
				}
			}
		}(eventType, sub)
	}

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "")
			return
		case <-ticker.C:
			if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"ping"}`)); err != nil {
				a.logger.Debug().Err(err).Msg("websocket ping failed")
				return
			}
		case ev := <-out:
			if err := writeEvent(ctx, conn, ev.eventType, ev.payload); err != nil {
				a.logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *ws.Conn, eventType events.EventType, payload events.Payload) error {
	data, err := json.Marshal(map[string]any{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		return err
	}
	return conn.Write(ctx, ws.MessageText, data)
}

func parseEventTypes(raw string) []events.EventType {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]events.EventType, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, events.EventType(part))
	}
	return out
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
