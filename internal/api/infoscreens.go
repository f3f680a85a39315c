/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/infoscreen/internal/cache"
	"github.com/friendsincode/infoscreen/internal/models"
	"github.com/friendsincode/infoscreen/internal/playlist"
)

func (a *API) handleInfoscreensList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if cached, ok := a.cache.GetInfoscreenList(ctx); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	var screens []models.Infoscreen
	if err := a.db.WithContext(ctx).Order("name ASC").Find(&screens).Error; err != nil {
		a.logger.Error().Err(err).Msg("list infoscreens failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	out := make([]cache.CachedInfoscreen, 0, len(screens))
	for _, s := range screens {
		out = append(out, cache.CachedInfoscreen{
			ID:              s.ID,
			Name:            s.Name,
			Location:        s.Location,
			MinRegularSlots: s.MinRegularSlots,
			MinEventSlots:   s.MinEventSlots,
			SlotSeconds:     s.SlotSeconds,
			Active:          s.Active,
		})
	}
	if err := a.cache.SetInfoscreenList(ctx, out); err != nil {
		a.logger.Debug().Err(err).Msg("infoscreen list not cached")
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleInfoscreensCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            string `json:"name"`
		Description     string `json:"description"`
		Location        string `json:"location"`
		MinRegularSlots int    `json:"min_regular_slots"`
		MinEventSlots   int    `json:"min_event_slots"`
		SlotSeconds     int    `json:"slot_seconds"`
		Active          *bool  `json:"active"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}
	if req.MinRegularSlots < 0 || req.MinEventSlots < 0 || req.SlotSeconds < 0 ||
		req.MinRegularSlots > maxSlots || req.MinEventSlots > maxSlots {
		writeError(w, http.StatusBadRequest, "invalid_slots")
		return
	}
	if req.SlotSeconds == 0 {
		req.SlotSeconds = models.DefaultSlotSeconds
	}

	ctx := r.Context()
	var names []string
	if err := a.db.WithContext(ctx).Model(&models.Infoscreen{}).Pluck("name", &names).Error; err != nil {
		a.logger.Error().Err(err).Msg("check infoscreen name failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	// Screens publish under a slug of their name, so names must differ after slugging.
	key := playlist.StorageKey(req.Name)
	for _, name := range names {
		if name == req.Name || playlist.StorageKey(name) == key {
			writeError(w, http.StatusConflict, "name_taken")
			return
		}
	}

	screen := models.Infoscreen{
		ID:              uuid.NewString(),
		Name:            req.Name,
		Description:     req.Description,
		Location:        req.Location,
		MinRegularSlots: req.MinRegularSlots,
		MinEventSlots:   req.MinEventSlots,
		SlotSeconds:     req.SlotSeconds,
		Active:          req.Active == nil || *req.Active,
	}
	if err := a.db.WithContext(ctx).Create(&screen).Error; err != nil {
		a.logger.Error().Err(err).Msg("create infoscreen failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if err := a.cache.InvalidateInfoscreenList(ctx); err != nil {
		a.logger.Debug().Err(err).Msg("infoscreen list not invalidated")
	}

	a.logger.Info().Str("infoscreen_id", screen.ID).Str("name", screen.Name).Msg("infoscreen created")
	writeJSON(w, http.StatusCreated, screen)
}

func (a *API) handleInfoscreensGet(w http.ResponseWriter, r *http.Request) {
	var screen models.Infoscreen
	err := a.db.WithContext(r.Context()).First(&screen, "id = ?", chi.URLParam(r, "infoscreenID")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("get infoscreen failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, screen)
}

func (a *API) handleInfoscreenSlides(w http.ResponseWriter, r *http.Request) {
	list, err := a.slides.ListForScreen(r.Context(), chi.URLParam(r, "infoscreenID"))
	if err != nil {
		a.logger.Error().Err(err).Msg("list infoscreen slides failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}
