package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"journalcal/internal/ics"
	"journalcal/internal/model"
	"journalcal/internal/recurrence"
	"journalcal/internal/schedule"
)

func newEventsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Manage the events file",
	}
	cmd.AddCommand(newEventsListCommand(opts))
	cmd.AddCommand(newEventsAddCommand(opts))
	cmd.AddCommand(newEventsDeleteCommand(opts))
	return cmd
}

func newEventsListCommand(opts *options) *cobra.Command {
	var (
		days, backfill int
		locale         string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the day list for the coming days",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			st, err := opts.openStore(cfg)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = cfg.HorizonDays
			}
			if !cmd.Flags().Changed("backfill") {
				backfill = cfg.BackfillDays
			}
			if locale == "" {
				locale = cfg.Locale
			}

			loc, err := time.LoadLocation(cfg.Timezone)
			if err != nil {
				loc = time.Local
			}
			ws, we := schedule.Window(time.Now(), backfill, days, loc)
			events := st.Events()
			res, err := schedule.List(events, ws, we, schedule.Options{
				Location:               loc,
				MaxOccurrencesPerEvent: cfg.MaxOccurrencesPerEvent,
			})
			if err != nil {
				return err
			}

			rules := make(map[string]string, len(events))
			for _, ev := range events {
				rules[ev.ID] = ev.RRule
			}
			list := schedule.GroupByDay(res.Occurrences, ws, we, loc)
			schedule.MarkWeekStarts(list, cfg.FirstWeekday())
			printDays(cmd.OutOrStdout(), list, rules, recurrence.LookupLocale(locale))

			if len(res.Failed) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "could not expand: %s\n", strings.Join(res.Failed, ", "))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Days ahead to list")
	cmd.Flags().IntVar(&backfill, "backfill", 1, "Past days to include")
	cmd.Flags().StringVarP(&locale, "locale", "l", "", "Summary language (default from config)")
	return cmd
}

// printDays writes one block per day; a blank line separates weeks.
func printDays(w io.Writer, days []schedule.Day, rules map[string]string, loc *recurrence.Locale) {
	for i, d := range days {
		if d.WeekStart && i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s %s\n", d.Date, d.Weekday[:3])
		for _, o := range d.Occurrences {
			when := "all day"
			if !o.AllDay {
				when = o.Start.Format("15:04")
				if o.End.After(o.Start) {
					when += "-" + o.End.Format("15:04")
				}
			}
			line := fmt.Sprintf("  %-11s %s", when, o.Title)
			if o.Recurring {
				line += " (" + recurrence.SummarizeText(rules[o.EventID], loc) + ")"
			}
			fmt.Fprintln(w, line)
		}
	}
}

func newEventsAddCommand(opts *options) *cobra.Command {
	var (
		id, title, start, end, rule string
		allDay                      bool
	)

	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Add or replace an event",
		Example: `  journalcal events add --title Standup --start 2024-01-01T09:00:00+09:00 --rrule "FREQ=WEEKLY;BYDAY=MO,WE,FR"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			st, err := opts.openStore(cfg)
			if err != nil {
				return err
			}

			ev := model.Event{ID: id, Title: title, IsAllDay: allDay, RRule: rule}
			if ev.StartTime, err = parseCLITime(start, false); err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			if end != "" {
				t, err := parseCLITime(end, false)
				if err != nil {
					return fmt.Errorf("--end: %w", err)
				}
				ev.EndTime = &t
			}

			spec, warns := recurrence.ParseWithWarnings(rule)
			for _, w := range warns {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w.Error())
			}

			saved, err := st.Put(ev)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", saved.ID, saved.Title, recurrence.Summarize(spec, recurrence.LookupLocale(cfg.Locale)))
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Event id (generated if empty; an existing id is replaced)")
	cmd.Flags().StringVar(&title, "title", "", "Title")
	cmd.Flags().StringVar(&start, "start", "", "Start (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "End (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&rule, "rrule", "", "Recurrence rule")
	cmd.Flags().BoolVar(&allDay, "all-day", false, "All-day event")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func newEventsDeleteCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			st, err := opts.openStore(cfg)
			if err != nil {
				return err
			}
			return st.Delete(args[0])
		},
	}
}

func newImportCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE|URL",
		Short: "Import events from an iCalendar file or feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			st, err := opts.openStore(cfg)
			if err != nil {
				return err
			}

			src := args[0]
			var body []byte
			if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
				cacheDir := filepath.Join(filepath.Dir(opts.configPath), "ics-cache")
				feed, err := ics.NewFetcher(cacheDir).Fetch(cmd.Context(), src)
				if err != nil {
					return err
				}
				body = feed.Body
			} else if body, err = os.ReadFile(src); err != nil {
				return err
			}

			events, err := ics.Import(body)
			if err != nil {
				return err
			}
			n, err := st.PutAll(events)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d events into %s\n", n, st.Path())
			return nil
		},
	}
	return cmd
}

func newExportCommand(opts *options) *cobra.Command {
	var (
		output string
		name   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the events file as iCalendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			st, err := opts.openStore(cfg)
			if err != nil {
				return err
			}

			body := ics.Export(st.Events(), name)
			if output == "" || output == "-" {
				_, err = io.WriteString(cmd.OutOrStdout(), body)
				return err
			}
			return os.WriteFile(output, []byte(body), 0o644)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&name, "name", "journalcal", "Calendar name")
	return cmd
}
