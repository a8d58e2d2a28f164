package main

import (
	"fmt"

	"github.com/SacredShifter/Navigator-sub000/internal/collective"
	"github.com/spf13/cobra"
)

var aggregateIntervention string

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Recompute collective learning weights now",
	Args:  cobra.NoArgs,
	RunE:  runAggregate,
}

func init() {
	aggregateCmd.Flags().StringVar(&aggregateIntervention, "intervention", "", "recompute a single intervention")
}

func runAggregate(cmd *cobra.Command, _ []string) error {
	nav, _, _, err := openNavigator(nil)
	if err != nil {
		return err
	}
	defer nav.Close()

	var updates []collective.WeightUpdate
	var runErr error
	if aggregateIntervention != "" {
		upd, err := nav.UpdateCollectiveWeights(cmd.Context(), aggregateIntervention)
		if err != nil {
			return err
		}
		updates = append(updates, upd)
	} else {
		updates, _, runErr = nav.UpdateAllWeights(cmd.Context())
	}

	if jsonOut {
		if err := printJSON(updates); err != nil {
			return err
		}
		return runErr
	}
	fmt.Printf("%-36s  %-7s  %6s  %6s  %8s  %8s  %s\n", "Intervention", "Applied", "Cohort", "N", "Old", "New", "Reason")
	for _, u := range updates {
		fmt.Printf("%-36s  %-7t  %6d  %6d  %8.4f  %8.4f  %s\n",
			truncate(u.InterventionID, 36), u.Applied, u.CohortSize, u.SampleSize, u.OldWeight, u.NewWeight, u.Reason)
	}
	return runErr
}
