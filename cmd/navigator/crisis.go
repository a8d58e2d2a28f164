package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var crisisCmd = &cobra.Command{
	Use:   "crisis <user-id>",
	Short: "Run a crisis check and print the user's safety plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runCrisis,
}

func runCrisis(cmd *cobra.Command, args []string) error {
	nav, _, _, err := openNavigator(nil)
	if err != nil {
		return err
	}
	defer nav.Close()

	plan, err := nav.GenerateSafetyPlan(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("crisis state for %s could not be determined: %w", args[0], err)
	}
	if jsonOut {
		return printJSON(plan)
	}

	fmt.Printf("User:      %s\n", plan.UserID)
	fmt.Printf("Severity:  %s\n", plan.Severity)
	fmt.Printf("Actions:   %s\n", strings.Join(plan.Actions, ", "))
	if len(plan.WarningSigns) > 0 {
		fmt.Println("Warning signs:")
		for _, s := range plan.WarningSigns {
			fmt.Printf("  - %s\n", s)
		}
	}
	fmt.Println("Coping strategies:")
	for _, s := range plan.CopingStrategies {
		fmt.Printf("  - %s\n", s)
	}
	fmt.Println("Resources:")
	for _, r := range plan.Resources {
		fmt.Printf("  - %s (%s): %s\n", r.Name, r.Contact, r.Description)
	}
	return nil
}
