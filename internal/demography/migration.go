package demography

import (
	"context"
	"fmt"

	"metis/internal/population"
	"metis/internal/sim"
)

// MigrationIslandFixed exports MigrantsPerDeme individuals from every deme to
// uniformly chosen other demes each cycle.
type MigrationIslandFixed struct {
	MigrantsPerDeme int
}

func (MigrationIslandFixed) Name() string {
	return "migration_island_fixed"
}

func (m MigrationIslandFixed) Change(_ context.Context, state *sim.State) error {
	if state.Rand == nil {
		return fmt.Errorf("random source is required")
	}
	return population.MigrateIslandFixed(state.Rand, state.Individuals, m.MigrantsPerDeme)
}

// MigrationSteppingStoneFixed moves MigrantsPerNeighbor individuals from every
// deme to each adjacent deme of a Rows x Cols grid.
type MigrationSteppingStoneFixed struct {
	MigrantsPerNeighbor int
	Rows                int
	Cols                int
}

func (MigrationSteppingStoneFixed) Name() string {
	return "migration_stepping_stone_fixed"
}

func (m MigrationSteppingStoneFixed) Change(_ context.Context, state *sim.State) error {
	if state.Rand == nil {
		return fmt.Errorf("random source is required")
	}
	return population.MigrateSteppingStoneFixed(state.Rand, state.Individuals, m.MigrantsPerNeighbor, m.Rows, m.Cols)
}
