/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package slots

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"
)

type testSlide struct {
	name  string
	slots int
}

func (s testSlide) Slots() int { return s.slots }

func sl(name string, slots int) testSlide {
	return testSlide{name: name, slots: slots}
}

func names(slides []testSlide) string {
	parts := make([]string, len(slides))
	for i, s := range slides {
		parts[i] = s.name
	}
	return strings.Join(parts, ",")
}

func TestExpandGreedyStop(t *testing.T) {
	a, b := sl("A", 2), sl("B", 1)

	got, err := Expand([]testSlide{a, b}, 7)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if names(got) != "A,B,A,B" {
		t.Fatalf("expand = %s, want A,B,A,B", names(got))
	}
	if total := Total(got); total != 6 {
		t.Fatalf("total = %d, want 6", total)
	}
}

func TestExpand(t *testing.T) {
	tests := []struct {
		name   string
		slides []testSlide
		target int
		want   string
	}{
		{"single slide fills exactly", []testSlide{sl("A", 1)}, 4, "A,A,A,A"},
		{"partial cycle", []testSlide{sl("A", 1), sl("B", 1), sl("C", 1)}, 5, "A,B,C,A,B"},
		{"heavy first slide stops early", []testSlide{sl("A", 3), sl("B", 1)}, 6, "A,B"},
		{"exact multiple of total", []testSlide{sl("A", 2), sl("B", 3)}, 10, "A,B,A,B"},
		{"one more than total", []testSlide{sl("A", 1), sl("B", 1)}, 3, "A,B,A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.slides, tt.target)
			if err != nil {
				t.Fatalf("expand: %v", err)
			}
			if names(got) != tt.want {
				t.Errorf("Expand(%s, %d) = %s, want %s", names(tt.slides), tt.target, names(got), tt.want)
			}
		})
	}
}

func TestExpandNearIntLimit(t *testing.T) {
	tests := []struct {
		name   string
		slides []testSlide
		target int
		want   string
	}{
		{"fit check does not wrap", []testSlide{sl("A", 3), sl("B", math.MaxInt-5)}, math.MaxInt, "A,B"},
		{"halves fill the target", []testSlide{sl("A", math.MaxInt/2)}, math.MaxInt - 1, "A,A"},
		{"large target few cycles", []testSlide{sl("A", math.MaxInt/4+1)}, math.MaxInt, "A,A,A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.slides, tt.target)
			if err != nil {
				t.Fatalf("expand: %v", err)
			}
			if names(got) != tt.want {
				t.Fatalf("Expand = %s, want %s", names(got), tt.want)
			}
		})
	}
}

func TestExpandErrors(t *testing.T) {
	tests := []struct {
		name   string
		slides []testSlide
		target int
		want   error
	}{
		{"target equals total", []testSlide{sl("A", 1)}, 1, ErrTargetNotGrowing},
		{"target below total", []testSlide{sl("A", 2), sl("B", 2)}, 3, ErrTargetNotGrowing},
		{"zero target", []testSlide{sl("A", 2)}, 0, ErrTargetNotGrowing},
		{"all weights zero", []testSlide{sl("A", 0), sl("B", 0)}, 10, ErrZeroTotal},
		{"all weights zero negative target", []testSlide{sl("A", 0)}, -1, ErrZeroTotal},
		{"empty slides", nil, 5, ErrZeroTotal},
		{"zero weight mixed in", []testSlide{sl("A", 2), sl("B", 0)}, 5, ErrInvalidWeight},
		{"negative weight", []testSlide{sl("A", 3), sl("B", -1)}, 5, ErrInvalidWeight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.slides, tt.target)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expand error = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("Expand error %v does not wrap ErrInvalidArgument", err)
			}
			if got != nil {
				t.Fatalf("Expand returned %s alongside an error", names(got))
			}
		})
	}
}

func TestExpandBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 500; run++ {
		n := rng.Intn(6) + 1
		src := make([]testSlide, n)
		for i := range src {
			src[i] = sl(string(rune('A'+i)), rng.Intn(5)+1)
		}
		total := Total(src)
		target := total + rng.Intn(40) + 1

		got, err := Expand(src, target)
		if err != nil {
			t.Fatalf("run %d: expand(%v, %d): %v", run, src, target, err)
		}
		if len(got) < len(src) {
			t.Fatalf("run %d: result shorter than source", run)
		}
		for i := range src {
			if got[i] != src[i] {
				t.Fatalf("run %d: result does not start with the source sequence", run)
			}
		}
		for i := range got {
			if got[i] != src[i%len(src)] {
				t.Fatalf("run %d: position %d breaks cycle order", run, i)
			}
		}
		sum := Total(got)
		if sum > target {
			t.Fatalf("run %d: total %d exceeds target %d", run, sum, target)
		}
		if sum <= target-MaxWeight(src) {
			t.Fatalf("run %d: total %d under-fills target %d by max weight or more", run, sum, target)
		}
	}
}

func TestExpandDoesNotModifyInput(t *testing.T) {
	src := []testSlide{sl("A", 1), sl("B", 2)}
	if _, err := Expand(src, 9); err != nil {
		t.Fatalf("expand: %v", err)
	}
	if names(src) != "A,B" || len(src) != 2 {
		t.Fatalf("input modified: %s", names(src))
	}
}

func TestMerge(t *testing.T) {
	a, b, c, d := sl("A", 1), sl("B", 1), sl("C", 1), sl("D", 1)

	tests := []struct {
		name    string
		regular []testSlide
		events  []testSlide
		want    string
	}{
		{"single light event", []testSlide{a, b, c}, []testSlide{sl("X", 1)}, "A,X,B,C"},
		{"heavy event suppresses", []testSlide{a, b, c, d}, []testSlide{sl("X", 3)}, "A,X,B,C,D"},
		{"light events each turn", []testSlide{a, b, c}, []testSlide{sl("X", 1), sl("Y", 1), sl("Z", 1)}, "A,X,B,Y,C,Z"},
		{"mixed weights", []testSlide{a, b, c, d}, []testSlide{sl("X", 2), sl("Y", 1)}, "A,X,B,C,Y,D"},
		{"trailing events dropped", []testSlide{a}, []testSlide{sl("X", 1), sl("Y", 1)}, "A,X"},
		{"suppression outlasts regular", []testSlide{a, b}, []testSlide{sl("X", 5), sl("Y", 1)}, "A,X,B"},
		{"no events", []testSlide{a, b}, nil, "A,B"},
		{"no regular", nil, []testSlide{sl("X", 1)}, ""},
		{"both empty", nil, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.regular, tt.events)
			if names(got) != tt.want {
				t.Errorf("Merge(%s, %s) = %s, want %s", names(tt.regular), names(tt.events), names(got), tt.want)
			}
		})
	}
}

func TestMergePreservesStreamOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 200; run++ {
		regular := make([]testSlide, rng.Intn(10))
		for i := range regular {
			regular[i] = sl("r"+string(rune('a'+i)), 1)
		}
		events := make([]testSlide, rng.Intn(6))
		for i := range events {
			events[i] = sl("e"+string(rune('a'+i)), rng.Intn(4)+1)
		}

		got := Merge(regular, events)

		var gotRegular, gotEvents []testSlide
		for _, s := range got {
			if strings.HasPrefix(s.name, "r") {
				gotRegular = append(gotRegular, s)
			} else {
				gotEvents = append(gotEvents, s)
			}
		}
		if names(gotRegular) != names(regular) {
			t.Fatalf("run %d: regular stream altered: %s vs %s", run, names(gotRegular), names(regular))
		}
		if len(gotEvents) > len(events) {
			t.Fatalf("run %d: more events than supplied", run)
		}
		for i := range gotEvents {
			if gotEvents[i] != events[i] {
				t.Fatalf("run %d: events are not a prefix of the event stream", run)
			}
		}
		if len(regular) > 0 && len(events) > 0 && got[1] != events[0] {
			t.Fatalf("run %d: first event not placed after first regular slide", run)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate([]testSlide{sl("A", 1), sl("B", 4)}); err != nil {
		t.Fatalf("validate positive weights: %v", err)
	}
	if err := Validate([]testSlide(nil)); err != nil {
		t.Fatalf("validate empty: %v", err)
	}
	err := Validate([]testSlide{sl("A", 1), sl("X", 0)})
	if !errors.Is(err, ErrInvalidWeight) {
		t.Fatalf("validate zero weight = %v, want ErrInvalidWeight", err)
	}
}

func TestMaxWeight(t *testing.T) {
	if got := MaxWeight([]testSlide{sl("A", 2), sl("B", 5), sl("C", 1)}); got != 5 {
		t.Fatalf("MaxWeight = %d, want 5", got)
	}
	if got := MaxWeight([]testSlide(nil)); got != 0 {
		t.Fatalf("MaxWeight(nil) = %d, want 0", got)
	}
}
