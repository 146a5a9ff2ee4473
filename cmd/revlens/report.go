package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/revlens/revlens/adapters/clock"
	"github.com/revlens/revlens/adapters/metrics"
	"github.com/revlens/revlens/adapters/pricing"
	"github.com/revlens/revlens/adapters/rediscache"
	"github.com/revlens/revlens/app"
	"github.com/revlens/revlens/config"
	"github.com/revlens/revlens/domain/report"
	"github.com/revlens/revlens/domain/tier"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print an earnings report",
	Long: `Build and print an earnings report from the configured database.

Examples:
  revlens report
  revlens report --start=2024-03-01 --end=2024-03-31
  revlens report --format=csv --output=march.csv
  revlens report --format=json | jq .total_profit`,
	RunE: runReport,
}

var (
	reportStart  string
	reportEnd    string
	reportFormat string
	reportOutput string
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportStart, "start", "", "window start (RFC3339 or YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportEnd, "end", "", "window end (RFC3339 or YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportFormat, "format", "table", "output format: table, json or csv")
	reportCmd.Flags().StringVar(&reportOutput, "output", "", "write to file instead of stdout")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadCLIConfig()
	if err != nil {
		return err
	}

	window, err := parseWindowFlags(reportStart, reportEnd)
	if err != nil {
		return err
	}

	stores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	svc, err := newReportService(cfg, stores)
	if err != nil {
		return err
	}

	ctx := context.Background()

	var out []byte
	switch reportFormat {
	case "json":
		out, err = svc.RenderJSON(ctx, window)
	case "csv":
		out, err = svc.RenderCSV(ctx, window)
	case "table":
		rep, buildErr := svc.Build(ctx, window)
		if buildErr != nil {
			return buildErr
		}
		return writeReportTable(rep)
	default:
		return fmt.Errorf("unknown format %q, expected table, json or csv", reportFormat)
	}
	if err != nil {
		return err
	}

	if reportOutput != "" {
		return os.WriteFile(reportOutput, out, 0o644)
	}
	_, err = os.Stdout.Write(out)
	return err
}

func newReportService(cfg *config.Config, stores *cliStores) (*app.ReportService, error) {
	holder := config.NewStaticHolder(cfg, quietLogger())
	source, err := pricing.FromConfig(holder, quietLogger())
	if err != nil {
		return nil, err
	}

	return app.NewReportService(
		stores.Subscribers, stores.Usage, stores.Costs, source,
		rediscache.Noop{}, clock.Real{},
		metrics.NewWithRegistry(prometheus.NewRegistry()), quietLogger(),
		app.ReportServiceConfig{
			Aliasing: func() tier.Aliasing { return cfg.Tiers.Aliasing() },
		},
	), nil
}

func parseWindowFlags(start, end string) (report.Window, error) {
	var w report.Window

	if start != "" {
		t, _, err := parseTimeFlag(start)
		if err != nil {
			return w, fmt.Errorf("invalid --start: %w", err)
		}
		w.Start = &t
	}
	if end != "" {
		t, dateOnly, err := parseTimeFlag(end)
		if err != nil {
			return w, fmt.Errorf("invalid --end: %w", err)
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		w.End = &t
	}
	if w.Start != nil && w.End != nil && w.End.Before(*w.Start) {
		return w, fmt.Errorf("--end must not be before --start")
	}
	return w, nil
}

func parseTimeFlag(raw string) (t time.Time, dateOnly bool, err error) {
	if t, err = time.Parse(time.RFC3339, raw); err == nil {
		return t, false, nil
	}
	if t, err = time.Parse("2006-01-02", raw); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("expected RFC3339 or YYYY-MM-DD, got %q", raw)
}

func writeReportTable(rep report.Report) error {
	fmt.Printf("Earnings Report (%d days", rep.Window.Days)
	if rep.Window.Start != nil {
		fmt.Printf(", from %s", rep.Window.Start.Format("2006-01-02"))
	}
	if rep.Window.End != nil {
		fmt.Printf(", to %s", rep.Window.End.Format("2006-01-02"))
	}
	fmt.Printf(")\nGenerated: %s\n\n", rep.GeneratedAt.Format(time.RFC3339))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "TIER\tSUBSCRIBERS\tPRICE\tREVENUE")
	for _, t := range rep.Tiers {
		fmt.Fprintf(w, "%s\t%d\t$%s\t$%s\n",
			t.Tier, t.Subscribers, report.FormatMoney(t.MonthlyPrice), report.FormatMoney(t.Revenue))
	}
	w.Flush()

	fmt.Printf("\nActive subscribers: %d\n", rep.ActiveSubscribers)
	fmt.Printf("Total revenue:      $%s\n\n", report.FormatMoney(rep.TotalRevenue))

	if len(rep.APICosts.ByModel) > 0 {
		fmt.Fprintln(w, "MODEL\tCALLS\tTOTAL COST\tAVG/CALL")
		for _, m := range rep.APICosts.ByModel {
			fmt.Fprintf(w, "%s\t%d\t$%s\t$%s\n",
				m.Model, m.UsageCount, report.FormatMoney(m.TotalCost), report.FormatUnitCost(m.AvgCostPerCall))
		}
		w.Flush()
		fmt.Println()
	}

	fmt.Printf("API costs:          $%s ($%s/day)\n",
		report.FormatMoney(rep.APICosts.Total), report.FormatMoney(rep.APICosts.DailyAverage))
	fmt.Printf("External costs:     $%s (%d records)\n",
		report.FormatMoney(rep.ExternalCosts.Total), rep.ExternalCosts.Records)
	fmt.Printf("Total profit:       $%s (margin %s)\n",
		report.FormatMoney(rep.TotalProfit), rep.Margin)

	if len(rep.Warnings) > 0 {
		fmt.Println("\nData quality warnings:")
		for _, warn := range rep.Warnings {
			fmt.Printf("  - [%s] %s\n", warn.Kind, warn.Detail)
		}
	}
	return nil
}
