package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ndanilov/claimwatch/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	scanAll  bool
	scanFile string
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan [claim-id]",
	Short: "Run the full analysis pass and raise alerts",
	Long: `Scan runs the complete per-claim pass: confidence snapshot, entropy
snapshot, stability classification, and alert checks. Batch scans
capture one timestamp at the start and analyze every claim against
that same as-of view.

Example:
  claimwatch scan 42
  claimwatch scan --all
  claimwatch scan --file claims.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "scan every claim in the graph")
	scanCmd.Flags().StringVar(&scanFile, "file", "", "scan the claim IDs listed in a file (one per line)")
}

func runScan(cmd *cobra.Command, args []string) error {
	if !scanAll && scanFile == "" && len(args) == 0 {
		return fmt.Errorf("provide a claim ID, --all, or --file")
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()

	var batch *pipeline.BatchReport
	switch {
	case scanAll:
		batch, err = a.pipeline.ProcessAll(ctx)
	case scanFile != "":
		batch, err = a.pipeline.ProcessFile(ctx, scanFile)
	default:
		claimID, parseErr := strconv.ParseInt(args[0], 10, 64)
		if parseErr != nil {
			return fmt.Errorf("invalid claim ID %q: %w", args[0], parseErr)
		}
		batch, err = a.pipeline.ProcessClaims(ctx, []int64{claimID})
	}
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	for _, report := range batch.Reports {
		if verbose {
			fmt.Printf("claim %-6d %-12s confidence %.4f  entropy %.4f\n",
				report.ClaimID, report.Profile.Classification,
				report.Score.Composite, report.Entropy.ShannonEntropy)
		}
		for _, al := range report.Alerts {
			fmt.Printf("  [%s] claim %d %s: %s\n", al.Severity, al.ClaimID, al.Type, al.Message)
		}
	}
	for _, procErr := range batch.Errors {
		fmt.Fprintf(os.Stderr, "  error: %v\n", procErr)
	}

	fmt.Printf("Scanned %d claims at %s: %d alerts, %d failures\n",
		batch.Processed, batch.At.Format(time.RFC3339), batch.AlertsFired, batch.Failed)
	return nil
}
