package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show graph, stability, contradiction, and alert statistics",
	Long: `Stats reports the shape of the claim graph and the aggregate state
of its analysis signals: how claims classify, how contested the graph
is, how fast claims propagate, and what alerts are open.

Example:
  claimwatch stats`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()

	stats, err := a.graph.Statistics(ctx)
	if err != nil {
		return fmt.Errorf("graph statistics: %w", err)
	}
	fmt.Println("Graph")
	fmt.Printf("  Claims: %d  Sources: %d  Entities: %d  Edges: %d  Mutations: %d\n",
		stats.Claims, stats.Sources, stats.Entities, stats.Edges, stats.Mutations)
	for typ, n := range stats.ClaimsByType {
		fmt.Printf("    %-14s %d\n", typ, n)
	}
	for rel, n := range stats.EdgesByRelation {
		fmt.Printf("    %-14s %d\n", rel, n)
	}
	clusters, err := a.graph.Clusters(ctx)
	if err != nil {
		return fmt.Errorf("graph clusters: %w", err)
	}
	fmt.Printf("  Connected clusters: %d\n", len(clusters))

	stab, err := a.stability.Summarize(ctx)
	if err != nil {
		return fmt.Errorf("stability summary: %w", err)
	}
	fmt.Println("Stability")
	fmt.Printf("  Classified: %d\n", stab.TotalClassified)
	for state, n := range stab.ByState {
		fmt.Printf("    %-14s %d\n", state, n)
	}

	uncited, err := a.citation.UncitedClaims(ctx)
	if err != nil {
		return fmt.Errorf("uncited claims: %w", err)
	}
	fmt.Println("Citation")
	fmt.Printf("  Uncited claims: %d\n", len(uncited))

	contra, err := a.contradiction.Summarize(ctx)
	if err != nil {
		return fmt.Errorf("contradiction summary: %w", err)
	}
	fmt.Println("Contradiction")
	fmt.Printf("  Contradictions: %d  Contested claims: %d  Clusters: %d\n",
		contra.TotalContradictions, contra.ContestedClaims, contra.ConflictClusters)
	fmt.Printf("  Tension avg %.4f  max %.4f\n", contra.AvgTension, contra.MaxTension)

	prop, err := a.propagation.Summarize(ctx)
	if err != nil {
		return fmt.Errorf("propagation summary: %w", err)
	}
	fmt.Println("Propagation")
	fmt.Printf("  Events: %d\n", prop.TotalEvents)
	fmt.Printf("  Velocity avg %.4f  max %.4f\n", prop.AvgVelocity, prop.MaxVelocity)
	fmt.Printf("  Amplification avg %.4f  max %.4f\n", prop.AvgAmplification, prop.MaxAmplification)
	fmt.Printf("  Spread avg %.4f  max %d\n", prop.AvgSpread, prop.MaxSpread)

	alerts, err := a.alerts.Summarize(ctx)
	if err != nil {
		return fmt.Errorf("alert summary: %w", err)
	}
	fmt.Println("Alerts")
	fmt.Printf("  Total: %d  Unacknowledged: %d\n", alerts.TotalAlerts, alerts.Unacknowledged)
	for sev, n := range alerts.BySeverity {
		fmt.Printf("    %-14s %d\n", sev, n)
	}

	return nil
}
