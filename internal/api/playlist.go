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

	"github.com/friendsincode/infoscreen/internal/playlist"
	"github.com/friendsincode/infoscreen/internal/slots"
)

func (a *API) handlePlaylistPreview(w http.ResponseWriter, r *http.Request) {
	manifest, err := a.publisher.Preview(r.Context(), chi.URLParam(r, "infoscreenID"))
	if err != nil {
		a.writePlaylistError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, manifest)
}

func (a *API) handlePublish(w http.ResponseWriter, r *http.Request) {
	manifest, err := a.publisher.Publish(r.Context(), chi.URLParam(r, "infoscreenID"))
	if err != nil {
		a.writePlaylistError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, manifest)
}

func (a *API) handlePlaylistLatest(w http.ResponseWriter, r *http.Request) {
	data, err := a.publisher.Latest(r.Context(), chi.URLParam(r, "infoscreenID"))
	if err != nil {
		a.writePlaylistError(w, err)
		return
	}
	w.Header().Set("Content-Type", playlist.ManifestContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *API) handlePlaylistHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = parsed
	}

	records, err := a.publisher.History(r.Context(), chi.URLParam(r, "infoscreenID"), limit)
	if err != nil {
		a.writePlaylistError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (a *API) writePlaylistError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, playlist.ErrInfoscreenNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, playlist.ErrNotPublished):
		writeError(w, http.StatusNotFound, "not_published")
	case errors.Is(err, playlist.ErrRefused):
		writeError(w, http.StatusConflict, "expansion_refused")
	case errors.Is(err, playlist.ErrStorageKeyTaken):
		writeError(w, http.StatusConflict, "storage_key_taken")
	case errors.Is(err, playlist.ErrEmptyPlaylist):
		writeError(w, http.StatusUnprocessableEntity, "empty_playlist")
	case errors.Is(err, slots.ErrInvalidWeight):
		writeError(w, http.StatusUnprocessableEntity, "invalid_weight")
	default:
		a.logger.Error().Err(err).Msg("playlist request failed")
		writeError(w, http.StatusInternalServerError, "publish_failed")
	}
}
