package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/revlens/revlens/domain/subscriber"
	"github.com/revlens/revlens/domain/tier"
	"github.com/revlens/revlens/ports"
)

var subscribersCmd = &cobra.Command{
	Use:   "subscribers",
	Short: "Inspect subscribers",
	Long: `Inspect subscribers in the configured database.

Examples:
  revlens subscribers list
  revlens subscribers list --tier=pro --active
  revlens subscribers summary`,
}

var subscribersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subscribers",
	RunE:  runSubscribersList,
}

var subscribersSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show active subscriber counts per tier",
	RunE:  runSubscribersSummary,
}

var (
	subscribersTier   string
	subscribersActive bool
	subscribersLimit  int
)

func init() {
	rootCmd.AddCommand(subscribersCmd)

	subscribersCmd.AddCommand(subscribersListCmd)
	subscribersCmd.AddCommand(subscribersSummaryCmd)

	subscribersListCmd.Flags().StringVar(&subscribersTier, "tier", "", "filter by tier name")
	subscribersListCmd.Flags().BoolVar(&subscribersActive, "active", false, "only active subscribers")
	subscribersListCmd.Flags().IntVar(&subscribersLimit, "limit", 0, "maximum rows to print (0 = all)")
}

func runSubscribersList(cmd *cobra.Command, args []string) error {
	cfg, err := loadCLIConfig()
	if err != nil {
		return err
	}
	stores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	subs, err := stores.Subscribers.List(context.Background(), ports.SubscriberFilter{
		Tier:       subscribersTier,
		ActiveOnly: subscribersActive,
		Limit:      subscribersLimit,
	})
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tNAME\tTIER\tACTIVE\tCREATED")
	for _, sub := range subs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
			sub.ID, sub.Email, sub.FullName, sub.Tier, sub.IsActive,
			sub.CreatedAt.Format("2006-01-02"))
	}
	w.Flush()

	fmt.Printf("\n%d subscribers\n", len(subs))
	return nil
}

func runSubscribersSummary(cmd *cobra.Command, args []string) error {
	cfg, err := loadCLIConfig()
	if err != nil {
		return err
	}
	stores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	subs, err := stores.Subscribers.List(context.Background(), ports.SubscriberFilter{})
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}

	aliasing := cfg.Tiers.Aliasing()
	counts, unknown := subscriber.CountActiveByTier(subs, aliasing)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIER\tACTIVE")
	for _, t := range tier.Enumeration(aliasing) {
		fmt.Fprintf(w, "%s\t%d\n", t, counts[t])
	}
	w.Flush()

	fmt.Printf("\nTotal: %d, active: %d\n", len(subs), subscriber.CountActive(subs))
	if len(unknown) > 0 {
		fmt.Printf("Subscribers with unrecognized tier names: %d\n", len(unknown))
	}
	return nil
}
