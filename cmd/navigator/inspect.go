package main

import (
	"fmt"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/field"
	"github.com/SacredShifter/Navigator-sub000/internal/logging"
	"github.com/spf13/cobra"
)

var (
	inspectEvents    int
	inspectEventType string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List interventions and recent audit events",
	Args:  cobra.NoArgs,
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().IntVar(&inspectEvents, "events", 20, "show N most recent audit events (0 to skip)")
	inspectCmd.Flags().StringVar(&inspectEventType, "type", "", "filter events by type, e.g. "+logging.EventSelectionMade)
}

type inspectOutput struct {
	Interventions []interventionRow     `json:"interventions"`
	Events        []logging.EventEntry `json:"events,omitempty"`
}

type interventionRow struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	LearningWeight float64 `json:"learning_weight"`
	FatigueScore   float64 `json:"fatigue_score"`
	Dimensions     int     `json:"dimensions"`
	UpdatedAt      string  `json:"updated_at"`
}

func toRow(iv field.Intervention) interventionRow {
	return interventionRow{
		ID:             iv.ID,
		Title:          iv.Title(),
		LearningWeight: iv.LearningWeight,
		FatigueScore:   iv.FatigueScore,
		Dimensions:     len(iv.PatternVector),
		UpdatedAt:      iv.UpdatedAt.Format(time.RFC3339),
	}
}

func runInspect(cmd *cobra.Command, _ []string) error {
	nav, _, _, err := openNavigator(nil)
	if err != nil {
		return err
	}
	defer nav.Close()
	ctx := cmd.Context()

	ivs, err := nav.Store().ListInterventions(ctx)
	if err != nil {
		return err
	}
	out := inspectOutput{Interventions: make([]interventionRow, len(ivs))}
	for i, iv := range ivs {
		out.Interventions[i] = toRow(iv)
	}
	if inspectEvents > 0 {
		out.Events, err = logging.ListEvents(ctx, nav.Store().DB(), inspectEventType, inspectEvents)
		if err != nil {
			return err
		}
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("%-36s  %-24s  %7s  %7s  %4s  %s\n", "Intervention", "Title", "Weight", "Fatigue", "Dims", "Updated")
	fmt.Printf("%-36s+-%-24s+-%7s+-%7s+-%4s+-%s\n", "------------------------------------", "------------------------", "-------", "-------", "----", "--------------------")
	for _, r := range out.Interventions {
		fmt.Printf("%-36s  %-24s  %7.4f  %7.3f  %4d  %s\n", truncate(r.ID, 36), truncate(r.Title, 24), r.LearningWeight, r.FatigueScore, r.Dimensions, r.UpdatedAt)
	}
	if len(out.Events) == 0 {
		return nil
	}
	fmt.Println()
	fmt.Printf("%-20s  %-22s  %-12s  %-24s  %s\n", "Time", "Event", "User", "Subject", "Payload")
	for _, e := range out.Events {
		fmt.Printf("%-20s  %-22s  %-12s  %-24s  %s\n",
			e.CreatedAt.Format("2006-01-02T15:04:05Z"), e.EventType, truncate(e.UserID, 12), truncate(e.SubjectID, 24), truncate(e.PayloadJSON, 60))
	}
	return nil
}
