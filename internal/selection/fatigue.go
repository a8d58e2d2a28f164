package selection

import "github.com/SacredShifter/Navigator-sub000/internal/field"

// #region fatigue
// UpdateFatigue grows fatigue for the selected candidate: 0.9f + 1, which
// converges toward 10 under repeated selection.
func UpdateFatigue(f float64) float64 {
	return f*0.9 + 1
}

// DecayFatigue relaxes fatigue for a non-selected candidate, never below 0.
func DecayFatigue(f, rate float64) float64 {
	if f -= rate; f < 0 {
		return 0
	}
	return f
}

// FatigueMutation returns the row update to apply to one intervention after a
// selection: grow when selected, decay otherwise. Suitable for
// store.UpdateIntervention.
func FatigueMutation(selected bool, decayRate float64) func(field.Intervention) field.Intervention {
	return func(iv field.Intervention) field.Intervention {
		if selected {
			iv.FatigueScore = UpdateFatigue(iv.FatigueScore)
		} else {
			iv.FatigueScore = DecayFatigue(iv.FatigueScore, decayRate)
		}
		return iv
	}
}

// ApplySelection returns a copy of candidates with fatigue updated for a pick
// of selectedID. The input slice is not modified.
func ApplySelection(candidates []field.Intervention, selectedID string, decayRate float64) []field.Intervention {
	out := make([]field.Intervention, len(candidates))
	for i, c := range candidates {
		out[i] = FatigueMutation(c.ID == selectedID, decayRate)(c)
	}
	return out
}

// #endregion fatigue
