/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/friendsincode/infoscreen/internal/config"
	"github.com/friendsincode/infoscreen/internal/models"
	"github.com/friendsincode/infoscreen/internal/playlist"
)

var (
	previewFile       string
	previewMinRegular int
	previewMinEvents  int
	previewPolicy     string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Run the scheduler on a YAML slide list",
	Long: `Expand and interleave slides described in a YAML file and print the
resulting playlist order. No database or configuration is needed.

File format:
  slides:
    - id: welcome
      slots: 2
    - id: menu
  events:
    - id: concert
      slots: 3

Omitted slot counts default to 1. Flags override the min_regular_slots and
min_event_slots keys of the file.
`,
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().StringVarP(&previewFile, "file", "f", "", "YAML file with slides and events")
	previewCmd.Flags().IntVar(&previewMinRegular, "min-regular", -1, "Minimum slots for the regular stream (0 disables expansion)")
	previewCmd.Flags().IntVar(&previewMinEvents, "min-events", -1, "Minimum slots for the event stream (0 disables expansion)")
	previewCmd.Flags().StringVar(&previewPolicy, "policy", string(config.ExpansionSkip), "Expansion policy: skip or refuse")
	_ = previewCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(previewCmd)
}

// Disabled automatically when output is not a terminal or NO_COLOR is set.
var summaryColor = color.New(color.FgGreen)

type previewSlide struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	Slots *int   `yaml:"slots"`
}

type previewDoc struct {
	MinRegularSlots int            `yaml:"min_regular_slots"`
	MinEventSlots   int            `yaml:"min_event_slots"`
	SlotSeconds     int            `yaml:"slot_seconds"`
	Slides          []previewSlide `yaml:"slides"`
	Events          []previewSlide `yaml:"events"`
}

// parsePreview decodes a preview document into a screen and its two streams.
func parsePreview(r io.Reader) (models.Infoscreen, []models.Slide, []models.Slide, error) {
	var doc previewDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return models.Infoscreen{}, nil, nil, fmt.Errorf("decode preview file: %w", err)
	}

	screen := models.Infoscreen{
		Name:            "preview",
		MinRegularSlots: doc.MinRegularSlots,
		MinEventSlots:   doc.MinEventSlots,
		SlotSeconds:     doc.SlotSeconds,
	}

	regular, err := toSlides(doc.Slides, false)
	if err != nil {
		return screen, nil, nil, err
	}
	events, err := toSlides(doc.Events, true)
	if err != nil {
		return screen, nil, nil, err
	}
	return screen, regular, events, nil
}

func toSlides(in []previewSlide, event bool) ([]models.Slide, error) {
	out := make([]models.Slide, 0, len(in))
	for i, s := range in {
		if s.ID == "" {
			return nil, fmt.Errorf("entry %d: id is required", i+1)
		}
		n := 1
		if s.Slots != nil {
			n = *s.Slots
		}
		if n < 1 {
			return nil, fmt.Errorf("slide %s: slots must be at least 1", s.ID)
		}
		title := s.Title
		if title == "" {
			title = s.ID
		}
		out = append(out, models.Slide{ID: s.ID, Title: title, NumberSlots: n, IsEvent: event, Status: models.SlideApproved})
	}
	return out, nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	f, err := os.Open(previewFile)
	if err != nil {
		return err
	}
	defer f.Close()

	screen, regular, events, err := parsePreview(f)
	if err != nil {
		return err
	}
	if previewMinRegular >= 0 {
		screen.MinRegularSlots = previewMinRegular
	}
	if previewMinEvents >= 0 {
		screen.MinEventSlots = previewMinEvents
	}

	policy := config.ExpansionPolicy(previewPolicy)
	if policy != config.ExpansionSkip && policy != config.ExpansionRefuse {
		return fmt.Errorf("unsupported expansion policy %q", previewPolicy)
	}

	out := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).With().Timestamp().Logger()
	result, err := playlist.NewBuilder(policy, out).Build(screen, regular, events)
	if err != nil {
		return err
	}

	return writePreview(cmd.OutOrStdout(), screen, result)
}

func writePreview(w io.Writer, screen models.Infoscreen, result *playlist.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSLIDE\tSLOTS\tEVENT")
	for i, s := range result.Slides {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%v\n", i+1, s.ID, s.NumberSlots, s.IsEvent)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	seconds := result.TotalSlots * int(screen.SlotDuration().Seconds())
	_, err := summaryColor.Fprintf(w, "\n%d slides, %d slots, %ds (regular expanded: %v, events expanded: %v)\n",
		len(result.Slides), result.TotalSlots, seconds, result.RegularExpanded, result.EventsExpanded)
	return err
}
