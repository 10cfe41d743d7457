package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/denisok6893-rgb/condo-unit-matching/internal/matching"
	"github.com/denisok6893-rgb/condo-unit-matching/internal/storage"
)

var (
	rankUnitsPath   string
	rankLeadPath    string
	rankWeightsPath string
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank units from a file against a lead from a file",
	Long: `Score every unit in a JSON array against one lead and print the
ranked matches as JSON. No store, cache or broker is touched.

Example:
  api rank --units data/units.json --lead data/lead.json`,
	RunE: runRank,
}

func init() {
	rankCmd.Flags().StringVar(&rankUnitsPath, "units", "", "JSON array of units (required)")
	rankCmd.Flags().StringVar(&rankLeadPath, "lead", "", "JSON lead object (required)")
	rankCmd.Flags().StringVar(&rankWeightsPath, "weights", "", "YAML or JSON weights (default weights when empty)")
	_ = rankCmd.MarkFlagRequired("units")
	_ = rankCmd.MarkFlagRequired("lead")
}

func runRank(cmd *cobra.Command, args []string) error {
	units, err := storage.LoadUnitsFromFile(rankUnitsPath)
	if err != nil {
		return err
	}
	lead, err := storage.LoadLeadFromFile(rankLeadPath)
	if err != nil {
		return err
	}

	w := matching.DefaultWeights()
	if rankWeightsPath != "" {
		if w, err = matching.LoadWeightsFromFile(rankWeightsPath); err != nil {
			return err
		}
	}

	ranked := matching.NewEngine(w).RankUnits(units, lead.Preferences())

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(ranked)
}
