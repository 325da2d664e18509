package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teemow/calview/internal/clock"
	"github.com/teemow/calview/internal/event"
	"github.com/teemow/calview/internal/view"
)

// Output formats of the layout command
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// layoutOptions holds the layout flags
type layoutOptions struct {
	view     string
	date     string
	query    string
	format   string
	timeZone string
}

// eventsFile is the document read by the layout command. A bare list of
// events is accepted as well.
type eventsFile struct {
	Events []event.Event `json:"events" yaml:"events"`
}

func newLayoutCmd(root *rootOptions) *cobra.Command {
	opts := &layoutOptions{}

	cmd := &cobra.Command{
		Use:   "layout FILE",
		Short: "Lay out events read from a YAML or JSON file",
		Long: `Lay out events offline and print the slot of every event.

FILE holds either a list of events or a document with an "events" list. Files
ending in .json are read as JSON, anything else as YAML. Use "-" for stdin
(read as YAML, which also accepts JSON).

Example event:
  - id: standup
    title: Standup
    start: 2025-03-05T09:00:00+01:00
    end: 2025-03-05T09:15:00+01:00`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if opts.timeZone != "" {
				cfg.Layout.TimeZone = opts.timeZone
			}
			layoutOpts, err := cfg.LayoutOptions()
			if err != nil {
				return err
			}

			kind, err := view.ParseKind(opts.view)
			if err != nil {
				return err
			}
			clk := clock.System{}
			date := clk.Now().In(layoutOpts.Location)
			if opts.date != "" {
				if date, err = event.ParseTime(opts.date, layoutOpts.Location); err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
			}

			events, err := readEvents(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			page := view.Build(kind, date, events, opts.query, layoutOpts, clk)
			switch strings.ToLower(opts.format) {
			case FormatJSON:
				return writePageJSON(cmd.OutOrStdout(), page)
			case FormatTable:
				return writePageTable(cmd.OutOrStdout(), page)
			default:
				return fmt.Errorf("unknown format %q (supported: %s, %s)", opts.format, FormatTable, FormatJSON)
			}
		},
	}

	cmd.Flags().StringVar(&opts.view, "view", string(view.KindWeek), "View to lay out: day, week or month")
	cmd.Flags().StringVar(&opts.date, "date", "", "Any date on the page (e.g. 2025-03-05). Defaults to today.")
	cmd.Flags().StringVar(&opts.query, "query", "", "Only lay out events whose title, description or location contains this text")
	cmd.Flags().StringVarP(&opts.format, "output", "o", FormatTable, "Output format: table or json")
	cmd.Flags().StringVar(&opts.timeZone, "time-zone", "", "IANA time zone of the view. Defaults to the configured zone or the local one.")
	return cmd
}

// readEvents loads the events of path ("-" reads stdin). Events without an
// ID get one from their position in the file; IDs must be unique.
func readEvents(path string, stdin io.Reader) ([]event.Event, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading events: %w", err)
	}

	events, err := parseEvents(data, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return nil, fmt.Errorf("error parsing events: %w", err)
	}
	seen := make(map[string]bool, len(events))
	for i := range events {
		if events[i].ID == "" {
			events[i].ID = fmt.Sprintf("event-%d", i+1)
		}
		if seen[events[i].ID] {
			return nil, fmt.Errorf("duplicate event id %q", events[i].ID)
		}
		seen[events[i].ID] = true
		if events[i].End.Before(events[i].Start) {
			return nil, fmt.Errorf("event %q ends before it starts", events[i].ID)
		}
	}
	return events, nil
}

// parseEvents decodes a list of events, or failing that an events document
func parseEvents(data []byte, isJSON bool) ([]event.Event, error) {
	unmarshal := yaml.Unmarshal
	if isJSON {
		unmarshal = json.Unmarshal
	}

	var events []event.Event
	listErr := unmarshal(data, &events)
	if listErr == nil {
		return events, nil
	}
	var doc eventsFile
	if err := unmarshal(data, &doc); err != nil {
		trimmed := strings.TrimSpace(string(data))
		if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "- ") {
			return nil, listErr
		}
		return nil, err
	}
	return doc.Events, nil
}

func writePageJSON(w io.Writer, page view.Page) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(page)
}

// writePageTable prints one row per laid out event. Month pages carry no
// slots, so their slot columns are left out.
func writePageTable(w io.Writer, page view.Page) error {
	loc := page.Date.Location()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	withSlots := page.Kind != view.KindMonth
	if withSlots {
		fmt.Fprintln(tw, "DAY\tSTART\tEND\tTITLE\tTOP\tHEIGHT\tLEFT\tWIDTH")
	} else {
		fmt.Fprintln(tw, "DAY\tSTART\tEND\tTITLE")
	}

	for _, day := range page.Days {
		label := day.Date.Format("Mon 2006-01-02")
		if day.IsToday {
			label += " *"
		}
		for _, p := range day.Events {
			start := p.Event.Start.In(loc).Format("15:04")
			end := p.Event.End.In(loc).Format("15:04")
			if withSlots {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.1f\t%.1f\t%.3f\t%.3f\n",
					label, start, end, p.Event.Title,
					p.Slot.Top, p.Slot.Height, p.Slot.Left, p.Slot.Width)
			} else {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", label, start, end, p.Event.Title)
			}
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	// The range end is exclusive.
	last := page.Range.End.In(loc).AddDate(0, 0, -1)
	fmt.Fprintf(w, "\n%s %s to %s\n", page.Kind,
		page.Range.Start.In(loc).Format(time.DateOnly),
		last.Format(time.DateOnly))
	return nil
}
