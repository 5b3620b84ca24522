package demography

import (
	"context"

	"metis/internal/sim"
)

// KillOlderGenerations keeps only individuals born in the cycle in progress,
// giving non-overlapping Wright-Fisher generations when placed after
// reproduction. Removed individuals are marked dead.
type KillOlderGenerations struct{}

func (KillOlderGenerations) Name() string {
	return "kill_older_generations"
}

func (KillOlderGenerations) Change(_ context.Context, state *sim.State) error {
	kept := state.Individuals[:0:0]
	for _, ind := range state.Individuals {
		if ind.CycleBorn == state.Cycle {
			kept = append(kept, ind)
			continue
		}
		ind.Alive = false
	}
	state.Individuals = kept
	return nil
}
