package main

import (
	"fmt"
	"os"

	"github.com/SacredShifter/Navigator-sub000/internal/field"
	"github.com/SacredShifter/Navigator-sub000/internal/store"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Upsert interventions from a YAML or JSON list",
	Long: `Upsert interventions from a YAML or JSON file holding a list of:

  - id: breath           # optional, generated when empty
    title: Box breathing
    pattern_vector: [0.1, 0.3, ...]
    learning_weight: 0.5 # optional prior for new rows, defaults to 0.5
    metadata: {kind: practice}

Existing interventions keep their learned weight and fatigue.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

type importEntry struct {
	ID             string            `yaml:"id"`
	Title          string            `yaml:"title"`
	PatternVector  []float32         `yaml:"pattern_vector"`
	LearningWeight *float64          `yaml:"learning_weight"`
	Metadata       map[string]string `yaml:"metadata"`
}

func (e importEntry) toIntervention() field.Intervention {
	meta := make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		meta[k] = v
	}
	if e.Title != "" {
		meta["title"] = e.Title
	}
	weight := store.DefaultLearningWeight
	if e.LearningWeight != nil {
		weight = *e.LearningWeight
	}
	return field.Intervention{ID: e.ID, PatternVector: e.PatternVector, LearningWeight: weight, Metadata: meta}
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	// JSON is a subset of YAML
	var entries []importEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	nav, _, log, err := openNavigator(nil)
	if err != nil {
		return err
	}
	defer nav.Close()

	ivs := make([]field.Intervention, len(entries))
	for i, e := range entries {
		ivs[i] = e.toIntervention()
	}
	ids, err := nav.ImportInterventions(cmd.Context(), ivs)
	log.Info().Int("imported", len(ids)).Int("total", len(ivs)).Msg("interventions imported")
	if jsonOut {
		if perr := printJSON(ids); perr != nil {
			return perr
		}
	} else {
		for _, id := range ids {
			fmt.Println(id)
		}
	}
	return err
}
