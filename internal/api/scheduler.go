/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"

	"github.com/friendsincode/infoscreen/internal/slots"
)

// maxSlots bounds slot targets accepted over HTTP.
const maxSlots = 100_000

// slotItem is an opaque slide reference for the stateless scheduler endpoints.
type slotItem struct {
	ID          string `json:"id"`
	NumberSlots int    `json:"slots"`
}

func (s slotItem) Slots() int { return s.NumberSlots }

type slotResponse struct {
	Slides     []slotItem `json:"slides"`
	TotalSlots int        `json:"total_slots"`
}

func newSlotResponse(items []slotItem) slotResponse {
	if items == nil {
		items = []slotItem{}
	}
	return slotResponse{Slides: items, TotalSlots: slots.Total(items)}
}

func (a *API) handleSchedulerExpand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slides      []slotItem `json:"slides"`
		TargetSlots int        `json:"target_slots"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.TargetSlots > maxSlots {
		writeError(w, http.StatusBadRequest, "target_too_large")
		return
	}

	expanded, err := slots.Expand(req.Slides, req.TargetSlots)
	if err != nil {
		writeSlotsError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSlotResponse(expanded))
}

func (a *API) handleSchedulerMerge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Regular []slotItem `json:"regular"`
		Events  []slotItem `json:"events"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := slots.Validate(req.Regular); err != nil {
		writeSlotsError(w, err)
		return
	}
	if err := slots.Validate(req.Events); err != nil {
		writeSlotsError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSlotResponse(slots.Merge(req.Regular, req.Events)))
}

func writeSlotsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, slots.ErrZeroTotal):
		writeError(w, http.StatusBadRequest, "zero_total")
	case errors.Is(err, slots.ErrTargetNotGrowing):
		writeError(w, http.StatusBadRequest, "target_not_growing")
	case errors.Is(err, slots.ErrInvalidWeight):
		writeError(w, http.StatusBadRequest, "invalid_weight")
	default:
		writeError(w, http.StatusBadRequest, "invalid_argument")
	}
}
