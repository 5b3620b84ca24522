package stats

import (
	"context"
	"fmt"

	"metis/internal/population"
	"metis/internal/sim"
)

// SexCounts tallies live individuals by sex.
type SexCounts struct {
	Females int `json:"females"`
	Males   int `json:"males"`
	Unknown int `json:"unknown"`
}

type SexStatistics struct{}

func (SexStatistics) Compute(_ context.Context, state *sim.State) (any, error) {
	var counts SexCounts
	for _, ind := range state.Individuals {
		if !ind.Alive {
			continue
		}
		switch ind.Sex {
		case population.Female:
			counts.Females++
		case population.Male:
			counts.Males++
		default:
			counts.Unknown++
		}
	}
	return counts, nil
}

// DemeStatistics computes Stat separately for each deme. Demes with no
// individuals are omitted from the result.
type DemeStatistics struct {
	Stat CountStatistic
}

func (s DemeStatistics) Compute(_ context.Context, state *sim.State) (any, error) {
	if s.Stat == nil {
		return nil, fmt.Errorf("wrapped statistic is required")
	}
	numDemes, err := population.CountDemes(state.Individuals)
	if err != nil {
		return nil, err
	}
	if numDemes == 0 {
		return map[int]any{}, nil
	}
	groups, err := population.GroupByDeme(state.Individuals, numDemes)
	if err != nil {
		return nil, err
	}
	out := make(map[int]any, numDemes)
	for deme, members := range groups {
		if len(members) == 0 {
			continue
		}
		value, err := fromIndividuals(s.Stat, members)
		if err != nil {
			return nil, fmt.Errorf("deme %d: %w", deme, err)
		}
		out[deme] = value
	}
	return out, nil
}
