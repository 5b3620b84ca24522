package reproduction

import (
	"errors"
	"fmt"
	"math/rand"

	"metis/internal/population"
)

var ErrParentCount = errors.New("unexpected number of parents")

// Annotator fills in one aspect of a newborn from its parents. Parents are
// ordered mother first; clonal generation passes a single parent.
type Annotator func(rng *rand.Rand, child *population.Individual, parents []*population.Individual) error

// RandomSex makes the child female with probability 0.5.
func RandomSex(rng *rand.Rand, child *population.Individual, _ []*population.Individual) error {
	return population.AssignRandomSex(rng, child)
}

// PercentageMale makes the child male with probability pct/100.
func PercentageMale(pct float64) Annotator {
	return func(rng *rand.Rand, child *population.Individual, _ []*population.Individual) error {
		if pct < 0 || pct > 100 {
			return fmt.Errorf("male percentage must be in [0, 100], got %v", pct)
		}
		assignMale(rng, child, pct/100)
		return nil
	}
}

// SexRatio draws sex so the expected males per female equals ratio.
func SexRatio(ratio float64) Annotator {
	return func(rng *rand.Rand, child *population.Individual, _ []*population.Individual) error {
		if ratio < 0 {
			return fmt.Errorf("sex ratio must be >= 0, got %v", ratio)
		}
		assignMale(rng, child, ratio/(1+ratio))
		return nil
	}
}

func assignMale(rng *rand.Rand, child *population.Individual, pMale float64) {
	if rng.Float64() < pMale {
		child.Sex = population.Male
		return
	}
	child.Sex = population.Female
}

// TransmitGenome builds the child's genotype by standard transmission
// genetics from mother and father.
func TransmitGenome(rng *rand.Rand, child *population.Individual, parents []*population.Individual) error {
	if len(parents) != 2 {
		return fmt.Errorf("%w: genome transmission needs 2, got %d", ErrParentCount, len(parents))
	}
	if child.Species == nil || child.Species.Genome == nil {
		return population.ErrNoGenome
	}
	mother, father := parents[0], parents[1]
	buf, err := child.Species.Genome.Transmit(rng, mother.Genome, father.Genome)
	if err != nil {
		return fmt.Errorf("parents %d x %d: %w", mother.ID, father.ID, err)
	}
	child.Genome = buf
	return nil
}

// AnnotateParents records parent ids. A single clonal parent fills both.
func AnnotateParents(_ *rand.Rand, child *population.Individual, parents []*population.Individual) error {
	switch len(parents) {
	case 1:
		child.Parents = &population.Parentage{Mother: parents[0].ID, Father: parents[0].ID}
	case 2:
		child.Parents = &population.Parentage{Mother: parents[0].ID, Father: parents[1].ID}
	default:
		return fmt.Errorf("%w: %d", ErrParentCount, len(parents))
	}
	return nil
}
