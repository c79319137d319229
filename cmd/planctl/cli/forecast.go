package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mediaplan/mediaplan/internal/forecast"
	"github.com/mediaplan/mediaplan/internal/money"
)

func newForecastCommand(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast helpers",
	}
	cmd.AddCommand(newForecastPreviewCommand(opts))
	return cmd
}

func newForecastPreviewCommand(opts Options) *cobra.Command {
	var (
		file        string
		granularity string
		jsonOutput  bool
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the forecast periods of a plan file without touching the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := forecast.ParseGranularity(granularity)
			if err != nil {
				return err
			}
			planFile, err := LoadPlanFile(file)
			if err != nil {
				return err
			}
			periods, err := forecast.BuildPeriods(planFile.Plan, planFile.Lines, g)
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(opts.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(periods)
			}
			return renderPeriods(opts.Stdout, periods)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Plan file (.toml, .yaml or .yml)")
	cmd.Flags().StringVarP(&granularity, "granularity", "g", string(forecast.GranularityMonth), "day, week or month")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func renderPeriods(w io.Writer, periods []forecast.Period) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "START\tEND\tDAYS\tPLANNED\tSUBDIVISION")
	amounts := make([]float64, 0, len(periods))
	for _, p := range periods {
		subdivision := "-"
		if p.Dimensions.SubdivisionID != nil {
			subdivision = *p.Dimensions.SubdivisionID
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%s\n",
			p.Start.Format("2006-01-02"), p.End.Format("2006-01-02"), p.Days(), p.PlannedAmount, subdivision)
		amounts = append(amounts, p.PlannedAmount)
	}
	_, _ = fmt.Fprintf(tw, "TOTAL\t\t\t%.2f\t\n", money.Sum(amounts...))
	return tw.Flush()
}
