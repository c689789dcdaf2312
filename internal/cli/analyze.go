package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kirillkom/pollen-vision/internal/bootstrap"
	"github.com/kirillkom/pollen-vision/internal/core/domain"
	"github.com/kirillkom/pollen-vision/internal/core/usecase"
)

type analyzeOptions struct {
	outDir    string
	threshold float64
	dryRun    bool
	format    string
}

type analyzeSummary struct {
	Filename     string             `json:"filename"`
	Annotated    string             `json:"annotated,omitempty"`
	Threshold    float64            `json:"threshold"`
	Counts       domain.ClassCounts `json:"counts"`
	Filtered     int                `json:"filtered"`
	Rejected     int                `json:"rejected"`
	Defaulted    int                `json:"defaulted"`
	HistorySaved bool               `json:"history_saved"`
	Error        string             `json:"error,omitempty"`
}

func analyzeCommand(ctx *Context) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze [image...]",
		Short: "Screen local images against the detection model",
		Long: `Screen one or more local images. Each annotated result is written next to
the source (or into --out) and, unless --dry-run is set, appended to history.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, ctx, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "Directory for annotated images")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", -1, "Confidence threshold override in [0,1]")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Do not append results to history")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "table", "Output format: table, json")
	return cmd
}

func runAnalyze(cmd *cobra.Command, ctx *Context, opts *analyzeOptions, paths []string) error {
	history, closeFn, err := ctx.openHistory()
	if err != nil {
		return err
	}
	defer closeFn()

	screener, err := bootstrap.NewScreener(ctx.Config, history, ctx.Logger)
	if err != nil {
		return err
	}

	var threshold *float64
	if cmd.Flags().Changed("threshold") {
		threshold = &opts.threshold
	}

	summaries := make([]analyzeSummary, 0, len(paths))
	failed := 0
	for _, path := range paths {
		summary := screenFile(cmd, screener, opts, path, threshold)
		if summary.Error != "" {
			failed++
		}
		summaries = append(summaries, summary)
	}

	if err := printAnalyze(cmd, opts.format, summaries); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(paths))
	}
	return nil
}

func screenFile(cmd *cobra.Command, screener *usecase.ScreenImageUseCase, opts *analyzeOptions, path string, threshold *float64) analyzeSummary {
	filename := filepath.Base(path)
	summary := analyzeSummary{Filename: filename}

	data, err := os.ReadFile(path)
	if err != nil {
		summary.Error = err.Error()
		return summary
	}

	res, err := screener.Screen(cmd.Context(), filename, data, threshold, !opts.dryRun)
	if err != nil {
		summary.Error = err.Error()
		return summary
	}

	dir := opts.outDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		summary.Error = err.Error()
		return summary
	}
	annotated := filepath.Join(dir, strings.TrimSuffix(filename, filepath.Ext(filename))+"_annotated.png")
	if err := os.WriteFile(annotated, res.AnnotatedPNG, 0o644); err != nil {
		summary.Error = err.Error()
		return summary
	}

	summary.Annotated = annotated
	summary.Threshold = res.Threshold
	summary.Counts = res.Counts
	summary.Filtered = res.Filtered
	summary.Rejected = len(res.Rejected)
	summary.Defaulted = res.Defaulted
	summary.HistorySaved = res.HistorySaved
	return summary
}

func printAnalyze(cmd *cobra.Command, format string, summaries []analyzeSummary) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		return writeJSON(out, summaries)
	case "table", "":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := []string{"FILE"}
	for _, class := range domain.ClassNames() {
		header = append(header, string(class)+" V/N")
	}
	header = append(header, "FILTERED", "STATUS")
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, s := range summaries {
		row := []string{s.Filename}
		for _, class := range domain.ClassNames() {
			t := s.Counts[class]
			row = append(row, fmt.Sprintf("%d/%d", t.Viable, t.NonViable))
		}
		status := "ok"
		switch {
		case s.Error != "":
			status = "error: " + s.Error
		case !s.HistorySaved:
			status = "ok (not recorded)"
		}
		row = append(row, fmt.Sprintf("%d", s.Filtered), status)
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
