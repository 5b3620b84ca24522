package population

import (
	"fmt"
	"math/rand"
)

// MigrateIslandFixed exports exactly migrants individuals from every deme.
// Each migrant moves to a uniformly chosen deme other than its origin, so
// the receiving side stays stochastic while exports are exact.
func MigrateIslandFixed(rng *rand.Rand, individuals []*Individual, migrants int) error {
	if migrants < 0 {
		return fmt.Errorf("migrants per deme must be >= 0")
	}
	if migrants == 0 {
		return nil
	}
	numDemes, err := CountDemes(individuals)
	if err != nil {
		return err
	}
	if numDemes < 2 {
		return fmt.Errorf("%w: island migration needs at least 2 demes, got %d", ErrInvalidDemeCount, numDemes)
	}
	groups, err := GroupByDeme(individuals, numDemes)
	if err != nil {
		return err
	}

	for src := 0; src < numDemes; src++ {
		err := exportFrom(rng, groups[src], src, migrants, func() int {
			dst := rng.Intn(numDemes - 1)
			if dst >= src {
				dst++
			}
			return dst
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// MigrateSteppingStoneFixed treats demes as a rows x cols grid indexed
// y*cols+x and exports migrants individuals from every deme to each of its
// up to eight grid neighbours.
func MigrateSteppingStoneFixed(rng *rand.Rand, individuals []*Individual, migrants, rows, cols int) error {
	if migrants < 0 {
		return fmt.Errorf("migrants per neighbour must be >= 0")
	}
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("%w: grid %dx%d", ErrInvalidDemeCount, rows, cols)
	}
	if migrants == 0 {
		return nil
	}
	numDemes := rows * cols
	groups, err := GroupByDeme(individuals, numDemes)
	if err != nil {
		return err
	}

	for src := 0; src < numDemes; src++ {
		neighbours := GridNeighbours(rows, cols, src)
		next := 0
		err := exportFrom(rng, groups[src], src, migrants*len(neighbours), func() int {
			dst := neighbours[next/migrants]
			next++
			return dst
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// GridNeighbours lists the demes adjacent (including diagonals) to deme on a
// rows x cols grid, in row-major order.
func GridNeighbours(rows, cols, deme int) []int {
	y, x := deme/cols, deme%cols
	neighbours := make([]int, 0, 8)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dy == 0 && dx == 0 {
				continue
			}
			ny, nx := y+dy, x+dx
			if ny < 0 || ny >= rows || nx < 0 || nx >= cols {
				continue
			}
			neighbours = append(neighbours, ny*cols+nx)
		}
	}
	return neighbours
}

// exportFrom relabels count members of pool that still belong to src. pool
// is sampled without replacement; members that already left are rejected.
func exportFrom(rng *rand.Rand, pool []*Individual, src, count int, destination func() int) error {
	if count == 0 {
		return nil
	}
	if len(pool) < count {
		return fmt.Errorf("%w: deme %d has %d, needs %d", ErrNotEnoughMigrants, src, len(pool), count)
	}
	moved := 0
	for _, idx := range rng.Perm(len(pool)) {
		ind := pool[idx]
		if ind.Deme != src {
			continue
		}
		ind.Deme = destination()
		moved++
		if moved == count {
			return nil
		}
	}
	return fmt.Errorf("%w: deme %d exported %d of %d", ErrNotEnoughMigrants, src, moved, count)
}
