package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
	"github.com/kirillkom/pollen-vision/internal/core/trend"
	"github.com/kirillkom/pollen-vision/internal/core/usecase"
	"github.com/kirillkom/pollen-vision/internal/infrastructure/export/xlsx"
)

type windowFlags struct {
	period string
	days   int
	since  string
}

func (f *windowFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.period, "period", "all", "Preset window: week, month, quarter, all")
	cmd.Flags().IntVar(&f.days, "days", 0, "Only records from the last N days (overrides --period)")
	cmd.Flags().StringVar(&f.since, "since", "", "Only records at or after this time (YYYY-MM-DD or YYYY-MM-DD HH:MM:SS)")
}

func (f *windowFlags) window(cmd *cobra.Command) (domain.Window, error) {
	window, err := domain.PresetWindow(f.period)
	if err != nil {
		return domain.Window{}, err
	}
	if cmd.Flags().Changed("days") {
		if f.days < 0 {
			return domain.Window{}, fmt.Errorf("--days must not be negative")
		}
		days := f.days
		window.Days = &days
	}
	if f.since != "" {
		since, err := parseSince(f.since)
		if err != nil {
			return domain.Window{}, err
		}
		window.Since = &since
	}
	return window, nil
}

func parseSince(raw string) (time.Time, error) {
	if t, err := time.ParseInLocation(time.DateOnly, raw, time.Local); err == nil {
		return t, nil
	}
	return domain.ParseTimestamp(raw)
}

// historyQuery wires the query use case over the configured store.
func historyQuery(ctx *Context) (*usecase.HistoryQueryUseCase, func(), error) {
	store, closeFn, err := ctx.openHistory()
	if err != nil {
		return nil, nil, err
	}
	uc := usecase.NewHistoryQueryUseCase(store, trend.NewAnalyzer(ctx.Config.Thresholds), xlsx.New(), nil)
	return uc, closeFn, nil
}

func historyCommand(ctx *Context) *cobra.Command {
	var (
		wf     windowFlags
		limit  int
		format string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded analyses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, closeFn, err := historyQuery(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			var load domain.HistoryLoad
			if cmd.Flags().Changed("limit") {
				load = query.Recent(cmd.Context(), limit)
			} else {
				window, err := wf.window(cmd)
				if err != nil {
					return err
				}
				load = query.Window(cmd.Context(), window)
			}
			if load.Degraded() {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: history unavailable: %v\n", load.Err)
			}
			return printHistory(cmd, format, load)
		},
	}
	wf.register(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", usecase.DefaultRecentHistory, "Show only the newest N records")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json")
	return cmd
}

func printHistory(cmd *cobra.Command, format string, load domain.HistoryLoad) error {
	out := cmd.OutOrStdout()
	summary := domain.SummarizeHistory(load)
	switch format {
	case "json":
		records := load.Records
		if records == nil {
			records = []domain.HistoryRecord{}
		}
		return writeJSON(out, map[string]any{"records": records, "summary": summary})
	case "table", "":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := []string{"TIMESTAMP", "FILE"}
	for _, class := range domain.ClassNames() {
		header = append(header, string(class)+" V/N")
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, rec := range load.Records {
		row := []string{rec.Timestamp, rec.Filename}
		for _, class := range domain.ClassNames() {
			t := rec.Data[class]
			row = append(row, fmt.Sprintf("%d/%d", t.Viable, t.NonViable))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "%d records\n", summary.Count)
	return err
}

func trendCommand(ctx *Context) *cobra.Command {
	var (
		wf     windowFlags
		format string
	)
	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Show per-class viability rates over time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, closeFn, err := historyQuery(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			window, err := wf.window(cmd)
			if err != nil {
				return err
			}
			series, summary := query.Series(cmd.Context(), window)
			if format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"series": series, "summary": summary})
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CLASS\tPOINTS\tMEAN %\tLATEST %")
			for _, class := range domain.ClassNames() {
				points := series[class]
				mean, latest := 0.0, 0.0
				for _, p := range points {
					mean += p.Rate
				}
				if len(points) > 0 {
					mean /= float64(len(points))
					latest = points[len(points)-1].Rate
				}
				fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\n", class, len(points), mean, latest)
			}
			return tw.Flush()
		},
	}
	wf.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json")
	cmd.AddCommand(compareCommand(ctx))
	return cmd
}

func compareCommand(ctx *Context) *cobra.Command {
	var (
		wf      windowFlags
		control string
	)
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare the control class with the mean of the others",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			class, err := domain.ParseClassName(control)
			if err != nil {
				return err
			}
			query, closeFn, err := historyQuery(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			window, err := wf.window(cmd)
			if err != nil {
				return err
			}
			cmp, err := query.Compare(cmd.Context(), window, class)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), cmp)
		},
	}
	wf.register(cmd)
	cmd.Flags().StringVar(&control, "control", string(domain.ClassWT), "Control class")
	return cmd
}

func exportCommand(ctx *Context) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the full history to an Excel workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, closeFn, err := historyQuery(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			data, err := query.ExportWorkbook(cmd.Context())
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("pollen_history_%s.xlsx", time.Now().Format("20060102_150405"))
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write workbook: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output .xlsx path")
	return cmd
}
