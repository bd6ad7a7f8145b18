package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ndanilov/claimwatch/internal/model"
	"github.com/ndanilov/claimwatch/internal/store"
	"github.com/spf13/cobra"
)

var (
	alertClaimID  int64
	alertType     string
	alertSeverity string
	alertUnacked  bool
	alertLimit    int
)

// alertsCmd represents the alerts command
var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List and acknowledge alerts",
	Long: `Inspect the alert log produced by scans.

Example:
  claimwatch alerts list
  claimwatch alerts list --claim 42 --unacked
  claimwatch alerts list --severity critical --limit 20
  claimwatch alerts ack 42
  claimwatch alerts ack 42 entropy_spike`,
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts, newest first",
	RunE:  runAlertsList,
}

var alertsAckCmd = &cobra.Command{
	Use:   "ack <claim-id> [type]",
	Short: "Acknowledge a claim's alerts, optionally narrowed to one type",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runAlertsAck,
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsAckCmd)

	alertsListCmd.Flags().Int64Var(&alertClaimID, "claim", 0, "filter by claim ID")
	alertsListCmd.Flags().StringVar(&alertType, "type", "", "filter by alert type")
	alertsListCmd.Flags().StringVar(&alertSeverity, "severity", "", "filter by severity (info, warning, critical)")
	alertsListCmd.Flags().BoolVar(&alertUnacked, "unacked", false, "only unacknowledged alerts")
	alertsListCmd.Flags().IntVar(&alertLimit, "limit", 0, "maximum number of alerts to show")
}

func runAlertsList(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	filter := store.AlertFilter{
		ClaimID:        alertClaimID,
		Type:           model.AlertType(alertType),
		Severity:       model.Severity(alertSeverity),
		Unacknowledged: alertUnacked,
		Limit:          alertLimit,
	}

	alerts, err := a.alerts.Alerts(ctx, filter)
	if err != nil {
		return fmt.Errorf("list alerts: %w", err)
	}

	if len(alerts) == 0 {
		fmt.Println("No alerts.")
		return nil
	}

	for _, al := range alerts {
		acked := " "
		if al.Acknowledged {
			acked = "*"
		}
		fmt.Printf("%s [%s]%s claim %-6d %-22s %s\n",
			al.CreatedAt.Format(time.RFC3339), al.Severity, acked, al.ClaimID, al.Type, al.Message)
		if verbose {
			fmt.Printf("    value %.4f  threshold %.4f  key %s\n", al.Value, al.Threshold, al.Key())
		}
	}

	summary, err := a.alerts.Summarize(ctx)
	if err != nil {
		return fmt.Errorf("summarize alerts: %w", err)
	}
	fmt.Printf("\n%d alerts total, %d unacknowledged\n", summary.TotalAlerts, summary.Unacknowledged)
	return nil
}

func runAlertsAck(cmd *cobra.Command, args []string) error {
	claimID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid claim ID %q: %w", args[0], err)
	}
	var typ model.AlertType
	if len(args) == 2 {
		typ = model.AlertType(args[1])
		if !model.ValidAlertType(typ) {
			return fmt.Errorf("unknown alert type %q", args[1])
		}
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	n, err := a.alerts.Acknowledge(context.Background(), claimID, typ)
	if err != nil {
		return fmt.Errorf("acknowledge: %w", err)
	}
	fmt.Printf("Acknowledged %d alerts for claim %d\n", n, claimID)
	return nil
}
