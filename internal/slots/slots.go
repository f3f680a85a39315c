/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package slots decides the playback order of weighted slides.
//
// Expand grows a short rotation to fill a slot budget by cyclic repetition and
// Merge interleaves an event stream into the regular rotation. Both are pure:
// they only rearrange the values they are given and hold no state between calls.
package slots

import (
	"errors"
	"fmt"
)

// Weighted is a slide as seen by the scheduler. Slots reports how many
// playback slots the slide occupies and must be positive.
type Weighted interface {
	Slots() int
}

// ErrInvalidArgument is wrapped by every error returned from this package.
var ErrInvalidArgument = errors.New("invalid argument")

var (
	// ErrZeroTotal means the slides to expand carry no weight at all.
	ErrZeroTotal = fmt.Errorf("%w: total number of slots must be greater than zero", ErrInvalidArgument)

	// ErrTargetNotGrowing means the requested slot count would not grow the playlist.
	ErrTargetNotGrowing = fmt.Errorf("%w: target slots must be greater than the current total", ErrInvalidArgument)

	// ErrInvalidWeight means a slide reported a zero or negative slot count.
	ErrInvalidWeight = fmt.Errorf("%w: slide slots must be positive", ErrInvalidArgument)
)

// Total sums the slot weight of slides.
func Total[S Weighted](slides []S) int {
	total := 0
	for _, s := range slides {
		total += s.Slots()
	}
	return total
}

// MaxWeight returns the largest slot weight in slides, or 0 when empty.
func MaxWeight[S Weighted](slides []S) int {
	largest := 0
	for _, s := range slides {
		if w := s.Slots(); w > largest {
			largest = w
		}
	}
	return largest
}

// Validate rejects sequences containing a slide without a positive weight.
func Validate[S Weighted](slides []S) error {
	for i, s := range slides {
		if w := s.Slots(); w <= 0 {
			return fmt.Errorf("slide %d has %d slots: %w", i, w, ErrInvalidWeight)
		}
	}
	return nil
}

// Expand repeats slides cyclically until adding the next slide would exceed
// targetSlots. The scan is greedy and stops at the first slide that does not
// fit, so the result may fall short of targetSlots by less than the weight of
// that slide.
//
// targetSlots must be greater than the total weight of slides and every slide
// must carry a positive weight.
func Expand[S Weighted](slides []S, targetSlots int) ([]S, error) {
	total := Total(slides)
	if total == 0 {
		return nil, ErrZeroTotal
	}
	if err := Validate(slides); err != nil {
		return nil, err
	}
	if targetSlots <= total {
		return nil, fmt.Errorf("target %d, total %d: %w", targetSlots, total, ErrTargetNotGrowing)
	}

	out := make([]S, 0, len(slides))
	current := 0
	for i := 0; current < targetSlots; i++ {
		slide := slides[i%len(slides)]
		if slide.Slots() > targetSlots-current {
			break
		}
		out = append(out, slide)
		current += slide.Slots()
	}
	return out, nil
}

// Merge appends one event after a regular slide whenever no earlier event is
// still holding the screen. An event of weight n suppresses the next n-1
// insertion opportunities. Events left over once regular is exhausted are
// dropped.
func Merge[S Weighted](regular, events []S) []S {
	out := make([]S, 0, len(regular)+min(len(regular), len(events)))
	next := 0
	suppressFor := 0

	for _, slide := range regular {
		out = append(out, slide)

		if suppressFor > 0 {
			suppressFor--
			continue
		}
		if next < len(events) {
			event := events[next]
			next++
			out = append(out, event)
			suppressFor = event.Slots() - 1
		}
	}
	return out
}
