package main

import (
	"fmt"

	"github.com/SacredShifter/Navigator-sub000/internal/replay"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <fixture.json>",
	Short: "Replay a recorded session in memory and compare against expected picks",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

type replayOutput struct {
	Results    []replay.Result `json:"results"`
	Summary    replay.Summary  `json:"summary"`
	Mismatches []string        `json:"mismatches,omitempty"`
}

func runReplay(_ *cobra.Command, args []string) error {
	f, err := replay.LoadFixture(args[0])
	if err != nil {
		return err
	}
	pool, turns, cfg := f.Inputs()
	results, final, err := replay.Replay(pool, turns, cfg)
	if err != nil {
		return err
	}
	out := replayOutput{Results: results, Summary: replay.Summarize(results, final)}

	for i, exp := range f.ExpectedResults {
		if i >= len(results) {
			out.Mismatches = append(out.Mismatches, fmt.Sprintf("%s: missing result", exp.TurnID))
			continue
		}
		got := results[i]
		if got.Action != exp.Action || got.SelectedID != exp.SelectedID {
			out.Mismatches = append(out.Mismatches, fmt.Sprintf("%s: expected %s/%s, got %s/%s",
				exp.TurnID, exp.Action, exp.SelectedID, got.Action, got.SelectedID))
		}
	}

	if jsonOut {
		if err := printJSON(out); err != nil {
			return err
		}
	} else {
		if f.Description != "" {
			fmt.Println(f.Description)
		}
		fmt.Printf("%-8s  %-9s  %6s  %-9s  %-16s  %s\n", "Turn", "Action", "RI", "Severity", "Selected", "Reason")
		for _, r := range results {
			fmt.Printf("%-8s  %-9s  %6.3f  %-9s  %-16s  %s\n",
				truncate(r.TurnID, 8), r.Action, r.ResonanceIndex, r.Severity, truncate(r.SelectedID, 16), truncate(r.Reason, 70))
		}
		s := out.Summary
		fmt.Printf("\n%d turns: %d selected (%d sampled), %d paused, %d rejected\n", s.TotalTurns, s.Selected, s.Sampled, s.Paused, s.Rejected)
		for _, m := range out.Mismatches {
			fmt.Printf("MISMATCH %s\n", m)
		}
	}
	if len(out.Mismatches) > 0 {
		return fmt.Errorf("%d of %d turns differ from the fixture", len(out.Mismatches), len(f.ExpectedResults))
	}
	return nil
}
