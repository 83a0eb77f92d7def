package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/samber/mo"
	"github.com/spf13/cobra"

	"journalcal/internal/recurrence"
)

func newRuleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rrule",
		Short: "Work with recurrence rule text",
		Long:  "Parse, summarize, edit and expand RRULE text without touching the events file",
	}

	cmd.AddCommand(newRuleParseCommand())
	cmd.AddCommand(newRuleSummarizeCommand())
	cmd.AddCommand(newRuleEditCommand())
	cmd.AddCommand(newRuleExpandCommand())
	return cmd
}

func newRuleParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse RULE",
		Short: "Print the canonical form of a rule and what was ignored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, warns := recurrence.ParseWithWarnings(args[0])
			out := cmd.OutOrStdout()

			if spec.Recurring() {
				fmt.Fprintln(out, recurrence.Serialize(spec))
			} else {
				fmt.Fprintln(out, "(not recurring)")
			}
			for _, w := range warns {
				fmt.Fprintf(out, "warning: %s\n", w.Error())
			}
			return nil
		},
	}
}

func newRuleSummarizeCommand() *cobra.Command {
	var locale string

	cmd := &cobra.Command{
		Use:   "summarize RULE",
		Short: "Describe a rule in words",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), recurrence.SummarizeText(args[0], recurrence.LookupLocale(locale)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&locale, "locale", "l", "en", "Summary language (en, ko)")
	return cmd
}

func newRuleEditCommand() *cobra.Command {
	var (
		freq     string
		interval int
		toggles  []string
		count    int
		until    string
		never    bool
	)

	cmd := &cobra.Command{
		Use:   "edit RULE",
		Short: "Apply form edits to a rule and print the result",
		Long: `Apply form edits to a rule. Edits are applied in a fixed order:
frequency, interval, weekday toggles, then the end condition.
Pass "" as RULE to start from a non-recurring rule.`,
		Example: `  journalcal rrule edit "" --freq weekly --toggle MO --toggle WE --count 10`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var reqs []recurrence.DeltaRequest
			if cmd.Flags().Changed("freq") {
				reqs = append(reqs, recurrence.DeltaRequest{Type: "frequency", Frequency: freq})
			}
			if cmd.Flags().Changed("interval") {
				reqs = append(reqs, recurrence.DeltaRequest{Type: "interval", Interval: interval})
			}
			for _, day := range toggles {
				reqs = append(reqs, recurrence.DeltaRequest{Type: "weekday", Weekday: day})
			}

			ends := 0
			for _, set := range []bool{never, cmd.Flags().Changed("count"), until != ""} {
				if set {
					ends++
				}
			}
			if ends > 1 {
				return errors.New("--never, --count and --until are mutually exclusive")
			}
			switch {
			case never:
				reqs = append(reqs, recurrence.DeltaRequest{Type: "end", End: recurrence.EndNever})
			case cmd.Flags().Changed("count"):
				reqs = append(reqs, recurrence.DeltaRequest{Type: "end", End: recurrence.EndCount, Count: count})
			case until != "":
				reqs = append(reqs, recurrence.DeltaRequest{Type: "end", End: recurrence.EndUntil, Until: until})
			}

			deltas := make([]recurrence.Delta, 0, len(reqs))
			for _, r := range reqs {
				d, err := recurrence.DecodeDelta(r)
				if err != nil {
					return err
				}
				deltas = append(deltas, d)
			}

			fmt.Fprintln(cmd.OutOrStdout(), recurrence.Edit(args[0], deltas...))
			return nil
		},
	}

	cmd.Flags().StringVar(&freq, "freq", "", "Frequency: none, daily, weekly, monthly, yearly")
	cmd.Flags().IntVar(&interval, "interval", 1, "Repeat every N periods")
	cmd.Flags().StringSliceVar(&toggles, "toggle", nil, "Toggle a weekday (MO..SU); repeatable")
	cmd.Flags().IntVar(&count, "count", 0, "End after N occurrences")
	cmd.Flags().StringVar(&until, "until", "", "End on a date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&never, "never", false, "Repeat forever")
	return cmd
}

func newRuleExpandCommand() *cobra.Command {
	var (
		start, end, from, to string
		limit                int
	)

	cmd := &cobra.Command{
		Use:   "expand RULE",
		Short: "List the occurrences of a rule inside a window",
		Example: `  journalcal rrule expand "FREQ=WEEKLY;BYDAY=MO,TH" --start 2024-01-01T09:00:00+09:00 \
      --from 2024-01-01 --to 2024-01-31`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			anchor, err := parseCLITime(start, false)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			anchorEnd := mo.None[time.Time]()
			if end != "" {
				t, err := parseCLITime(end, false)
				if err != nil {
					return fmt.Errorf("--end: %w", err)
				}
				anchorEnd = mo.Some(t)
			}
			ws, err := parseCLITime(from, false)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			we, err := parseCLITime(to, true)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			exp := recurrence.NewExpander(limit).Run(recurrence.Parse(args[0]), anchor, anchorEnd, ws, we)
			if exp.Err != nil {
				return exp.Err
			}

			out := cmd.OutOrStdout()
			for _, o := range exp.Occurrences {
				if o.End.Equal(o.Start) {
					fmt.Fprintln(out, o.Start.Format(time.RFC3339))
					continue
				}
				fmt.Fprintf(out, "%s / %s\n", o.Start.Format(time.RFC3339), o.End.Format(time.RFC3339))
			}
			if exp.Truncated {
				fmt.Fprintf(out, "(truncated at %d occurrences)\n", len(exp.Occurrences))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Anchor start (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Anchor end (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&from, "from", "", "Window start (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Window end (RFC 3339, or YYYY-MM-DD for the whole day)")
	cmd.Flags().IntVar(&limit, "max", recurrence.DefaultMaxOccurrences, "Maximum occurrences to list")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// parseCLITime accepts RFC 3339 or a local YYYY-MM-DD; with endOfDay a bare
// date means its last instant.
func parseCLITime(v string, endOfDay bool) (time.Time, error) {
	if t, err := time.ParseInLocation(time.DateOnly, v, time.Local); err == nil {
		if endOfDay {
			return t.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
		}
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}
