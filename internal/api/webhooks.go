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
	"github.com/friendsincode/infoscreen/internal/webhooks"
)

// webhookCreated includes the signing secret, shown only once.
type webhookCreated struct {
	models.WebhookTarget
	Secret string `json:"secret"`
}

func (a *API) webhooksEnabled(w http.ResponseWriter) bool {
	if a.webhooks == nil {
		writeError(w, http.StatusServiceUnavailable, "webhooks_unavailable")
		return false
	}
	return true
}

func (a *API) handleWebhooksList(w http.ResponseWriter, r *http.Request) {
	if !a.webhooksEnabled(w) {
		return
	}
	targets, err := a.webhooks.List(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("list webhooks failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, targets)
}

func (a *API) handleWebhooksCreate(w http.ResponseWriter, r *http.Request) {
	if !a.webhooksEnabled(w) {
		return
	}
	var in webhooks.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}

	target, err := a.webhooks.Create(r.Context(), in)
	if err != nil {
		a.writeWebhookError(w, err, "create webhook failed")
		return
	}
	writeJSON(w, http.StatusCreated, webhookCreated{WebhookTarget: *target, Secret: target.Secret})
}

func (a *API) handleWebhooksDelete(w http.ResponseWriter, r *http.Request) {
	if !a.webhooksEnabled(w) {
		return
	}
	if err := a.webhooks.Delete(r.Context(), chi.URLParam(r, "webhookID")); err != nil {
		a.writeWebhookError(w, err, "delete webhook failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleWebhooksTest(w http.ResponseWriter, r *http.Request) {
	if !a.webhooksEnabled(w) {
		return
	}
	status, err := a.webhooks.Test(r.Context(), chi.URLParam(r, "webhookID"))
	if errors.Is(err, webhooks.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	resp := map[string]any{"delivered": err == nil, "status_code": status}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleWebhooksDeliveries(w http.ResponseWriter, r *http.Request) {
	if !a.webhooksEnabled(w) {
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = parsed
	}

	logs, err := a.webhooks.Deliveries(r.Context(), chi.URLParam(r, "webhookID"), limit)
	if err != nil {
		a.writeWebhookError(w, err, "list webhook deliveries failed")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (a *API) writeWebhookError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, webhooks.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, webhooks.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_webhook", "detail": err.Error()})
	default:
		a.logger.Error().Err(err).Msg(msg)
		writeError(w, http.StatusInternalServerError, "db_error")
	}
}
