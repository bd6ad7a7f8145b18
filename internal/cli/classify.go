package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var classifyAll bool

// classifyCmd represents the classify command
var classifyCmd = &cobra.Command{
	Use:   "classify [claim-id]",
	Short: "Classify claim stability from recorded timelines",
	Long: `Classify combines a claim's confidence trend, entropy kinetics, and
drift kinematics into a stability state (stable, converging, volatile,
diverging, or critical) and logs the classification.

Example:
  claimwatch classify 42
  claimwatch classify --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().BoolVar(&classifyAll, "all", false, "classify every claim in the graph")
}

func runClassify(cmd *cobra.Command, args []string) error {
	if !classifyAll && len(args) == 0 {
		return fmt.Errorf("provide a claim ID or --all")
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	at := time.Now().UTC()

	if classifyAll {
		profiles, err := a.stability.ClassifyAll(ctx, at)
		if err != nil {
			return fmt.Errorf("classify all: %w", err)
		}
		for _, p := range profiles {
			fmt.Printf("  claim %-6d %-12s flags: %s\n", p.ClaimID, p.Classification, flagList(p.SignalFlags))
		}
		fmt.Printf("Classified %d claims at %s\n", len(profiles), at.Format(time.RFC3339))
		return nil
	}

	claimID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid claim ID %q: %w", args[0], err)
	}

	p, err := a.stability.Classify(ctx, claimID, at)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}

	fmt.Printf("Claim %d: %s\n", claimID, p.Classification)
	fmt.Printf("  Confidence trend: %.4f/h (std %.4f)\n", p.ConfidenceTrend, p.ConfidenceStd)
	fmt.Printf("  Entropy trend:    %.4f/h (std %.4f)\n", p.EntropyTrend, p.EntropyStd)
	fmt.Printf("  Drift accel:      %.6f\n", p.DriftAccel)
	fmt.Printf("  Signal flags:     %s\n", flagList(p.SignalFlags))

	if verbose {
		transitions, err := a.stability.Transitions(ctx, claimID)
		if err != nil {
			return fmt.Errorf("transitions: %w", err)
		}
		for _, tr := range transitions {
			fmt.Printf("  %s: %s -> %s\n", tr.At.Format(time.RFC3339), tr.From, tr.To)
		}
	}
	return nil
}

func flagList(flags []string) string {
	if len(flags) == 0 {
		return "none"
	}
	return strings.Join(flags, ", ")
}
