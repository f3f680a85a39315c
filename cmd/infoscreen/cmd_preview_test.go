package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const previewYAML = `
min_regular_slots: 7
slides:
  - id: A
    slots: 2
  - id: B
events:
  - id: X
    slots: 1
`

func TestParsePreview(t *testing.T) {
	screen, regular, events, err := parsePreview(strings.NewReader(previewYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if screen.MinRegularSlots != 7 || screen.MinEventSlots != 0 {
		t.Fatalf("unexpected minimums: %+v", screen)
	}
	if len(regular) != 2 || regular[1].NumberSlots != 1 || regular[1].Title != "B" {
		t.Fatalf("unexpected regular stream: %+v", regular)
	}
	if len(events) != 1 || !events[0].IsEvent {
		t.Fatalf("unexpected event stream: %+v", events)
	}
}

func TestParsePreviewRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"zero slots", "slides:\n  - id: A\n    slots: 0\n"},
		{"missing id", "slides:\n  - slots: 2\n"},
		{"unknown key", "slides:\n  - id: A\n    weight: 2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, err := parsePreview(strings.NewReader(tt.doc)); err == nil {
				t.Fatalf("expected %q to be rejected", tt.doc)
			}
		})
	}
}

func TestPreviewCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slides.yaml")
	if err := os.WriteFile(path, []byte(previewYAML), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"preview", "--file", path})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("preview: %v", err)
	}

	// A,B expanded to 7 slots is A,B,A,B; X lands after the first A.
	var order []string
	for _, line := range strings.Split(out.String(), "\n")[1:] {
		fields := strings.Fields(line)
		if len(fields) != 4 {
			break
		}
		order = append(order, fields[1])
	}
	if got := strings.Join(order, ","); got != "A,X,B,A,B" {
		t.Fatalf("order = %s, want A,X,B,A,B\n%s", got, out.String())
	}
	if !strings.Contains(out.String(), "5 slides, 7 slots, 70s") {
		t.Fatalf("missing summary:\n%s", out.String())
	}
}
