package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var snapshotAll bool

// snapshotCmd represents the snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot [claim-id]",
	Short: "Record confidence and entropy snapshots",
	Long: `Snapshot scores a claim and measures its mutation entropy, then
appends both results to the claim's timelines. Every later trend,
kinematic, and stability analysis reads from these timelines.

Example:
  claimwatch snapshot 42
  claimwatch snapshot --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().BoolVar(&snapshotAll, "all", false, "snapshot every claim in the graph")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	if !snapshotAll && len(args) == 0 {
		return fmt.Errorf("provide a claim ID or --all")
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	at := time.Now().UTC()

	if snapshotAll {
		scores, err := a.confidence.SnapshotAll(ctx, at)
		if err != nil {
			return fmt.Errorf("confidence snapshots: %w", err)
		}
		metrics, err := a.entropy.SnapshotAll(ctx, at)
		if err != nil {
			return fmt.Errorf("entropy snapshots: %w", err)
		}
		fmt.Printf("Recorded %d confidence and %d entropy snapshots at %s\n",
			len(scores), len(metrics), at.Format(time.RFC3339))
		return nil
	}

	claimID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid claim ID %q: %w", args[0], err)
	}

	score, err := a.confidence.Snapshot(ctx, claimID, at)
	if err != nil {
		return fmt.Errorf("confidence snapshot: %w", err)
	}
	metrics, err := a.entropy.Snapshot(ctx, claimID, at)
	if err != nil {
		return fmt.Errorf("entropy snapshot: %w", err)
	}

	fmt.Printf("Claim %d at %s\n", claimID, at.Format(time.RFC3339))
	fmt.Printf("  Composite confidence: %.4f\n", score.Composite)
	fmt.Printf("  Shannon entropy:      %.4f\n", metrics.ShannonEntropy)
	fmt.Printf("  Drift velocity:       %.4f\n", metrics.DriftVelocity)
	fmt.Printf("  Mutation chain:       %d\n", metrics.ChainLength)
	if verbose {
		fmt.Printf("  Prior: %.4f  Source: %.4f  Citation: %.4f  Contradiction: %.4f  Verification: %.4f  Decay: %.4f\n",
			score.Prior, score.SourceCredibility, score.CitationSupport,
			score.ContradictionPenalty, score.VerificationBonus, score.MutationDecay)
	}
	return nil
}
