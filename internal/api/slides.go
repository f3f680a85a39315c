/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/infoscreen/internal/models"
	"github.com/friendsincode/infoscreen/internal/slides"
)

func (a *API) handleSlidesList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := slides.ListFilter{
		Status: models.SlideStatus(q.Get("status")),
		Group:  q.Get("group"),
	}
	if raw := q.Get("event"); raw != "" {
		isEvent, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_event_filter")
			return
		}
		filter.IsEvent = &isEvent
	}

	list, err := a.slides.List(r.Context(), filter)
	if err != nil {
		a.logger.Error().Err(err).Msg("list slides failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handleSlidesCreate(w http.ResponseWriter, r *http.Request) {
	var in slides.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}

	slide, err := a.slides.Create(r.Context(), in)
	if err != nil {
		a.writeSlideError(w, err, "create slide failed")
		return
	}
	writeJSON(w, http.StatusCreated, slide)
}

func (a *API) handleSlidesGet(w http.ResponseWriter, r *http.Request) {
	slide, err := a.slides.Get(r.Context(), chi.URLParam(r, "slideID"))
	if err != nil {
		a.writeSlideError(w, err, "get slide failed")
		return
	}
	writeJSON(w, http.StatusOK, slide)
}

type reviewRequest struct {
	Reviewer string `json:"reviewer"`
	Note     string `json:"note"`
}

func (a *API) handleSlidesApprove(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	slide, err := a.slides.Approve(r.Context(), chi.URLParam(r, "slideID"), req.Reviewer, req.Note)
	if err != nil {
		a.writeSlideError(w, err, "approve slide failed")
		return
	}
	writeJSON(w, http.StatusOK, slide)
}

func (a *API) handleSlidesReject(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	slide, err := a.slides.Reject(r.Context(), chi.URLParam(r, "slideID"), req.Reviewer, req.Note)
	if err != nil {
		a.writeSlideError(w, err, "reject slide failed")
		return
	}
	writeJSON(w, http.StatusOK, slide)
}

func (a *API) handleSlidesAssign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InfoscreenIDs []string `json:"infoscreen_ids"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	slideID := chi.URLParam(r, "slideID")
	if err := a.slides.Assign(r.Context(), slideID, req.InfoscreenIDs); err != nil {
		a.writeSlideError(w, err, "assign slide failed")
		return
	}

	ids, err := a.slides.AssignedScreens(r.Context(), slideID)
	if err != nil {
		a.writeSlideError(w, err, "list assignments failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"slide_id":       slideID,
		"infoscreen_ids": ids,
	})
}

func (a *API) writeSlideError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, slides.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, slides.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_slide", "detail": err.Error()})
	case errors.Is(err, slides.ErrUnknownInfoscreen):
		writeError(w, http.StatusBadRequest, "unknown_infoscreen")
	default:
		a.logger.Error().Err(err).Msg(msg)
		writeError(w, http.StatusInternalServerError, "db_error")
	}
}
