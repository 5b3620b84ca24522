package population

import (
	"errors"
	"fmt"
	"math/rand"
)

var (
	ErrInvalidDemeCount  = errors.New("invalid deme count")
	ErrUnassignedDeme    = errors.New("individual has no deme")
	ErrDemeOutOfRange    = errors.New("deme label out of range")
	ErrNotEnoughMigrants = errors.New("deme has too few individuals to export")
)

// AssignRandomDemes labels every individual with a deme drawn uniformly
// from [0, numDemes).
func AssignRandomDemes(rng *rand.Rand, individuals []*Individual, numDemes int) error {
	if numDemes <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDemeCount, numDemes)
	}
	for _, ind := range individuals {
		ind.Deme = rng.Intn(numDemes)
	}
	return nil
}

// AssignFixedSizeDemes labels individuals round-robin so deme sizes differ by
// at most one.
func AssignFixedSizeDemes(individuals []*Individual, numDemes int) error {
	if numDemes <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDemeCount, numDemes)
	}
	for i, ind := range individuals {
		ind.Deme = i % numDemes
	}
	return nil
}

// GroupByDeme partitions individuals into numDemes groups by label. Every
// individual must carry a label in [0, numDemes).
func GroupByDeme(individuals []*Individual, numDemes int) ([][]*Individual, error) {
	if numDemes <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDemeCount, numDemes)
	}
	groups := make([][]*Individual, numDemes)
	for _, ind := range individuals {
		if !ind.HasDeme() {
			return nil, fmt.Errorf("%w: %d", ErrUnassignedDeme, ind.ID)
		}
		if ind.Deme < 0 || ind.Deme >= numDemes {
			return nil, fmt.Errorf("%w: individual %d has deme %d, want [0, %d)", ErrDemeOutOfRange, ind.ID, ind.Deme, numDemes)
		}
		groups[ind.Deme] = append(groups[ind.Deme], ind)
	}
	return groups, nil
}

// CountDemes returns one more than the largest deme label present.
func CountDemes(individuals []*Individual) (int, error) {
	count := 0
	for _, ind := range individuals {
		if !ind.HasDeme() {
			return 0, fmt.Errorf("%w: %d", ErrUnassignedDeme, ind.ID)
		}
		if ind.Deme < 0 {
			return 0, fmt.Errorf("%w: individual %d has deme %d", ErrDemeOutOfRange, ind.ID, ind.Deme)
		}
		if ind.Deme+1 > count {
			count = ind.Deme + 1
		}
	}
	return count, nil
}
