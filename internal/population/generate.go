package population

import (
	"errors"
	"fmt"
	"math/rand"
)

var ErrNoGenome = errors.New("species has no genome")

// Initializer fills in one aspect of a freshly created individual.
type Initializer func(rng *rand.Rand, ind *Individual) error

// Factory creates one individual per call.
type Factory func() (*Individual, error)

// GenerateN produces n individuals from factory.
func GenerateN(n int, factory Factory) ([]*Individual, error) {
	if n < 0 {
		return nil, fmt.Errorf("individual count must be >= 0")
	}
	if factory == nil {
		return nil, fmt.Errorf("individual factory is required")
	}
	individuals := make([]*Individual, 0, n)
	for i := 0; i < n; i++ {
		ind, err := factory()
		if err != nil {
			return nil, fmt.Errorf("individual %d: %w", i, err)
		}
		individuals = append(individuals, ind)
	}
	return individuals, nil
}

// NewFactory builds a Factory creating individuals of species born in cycle
// and passed through each initializer in order.
func NewFactory(rng *rand.Rand, ids *IDAllocator, species *Species, cycle int, initializers ...Initializer) Factory {
	return func() (*Individual, error) {
		ind := NewIndividual(ids, species, cycle)
		for _, init := range initializers {
			if err := init(rng, ind); err != nil {
				return nil, err
			}
		}
		return ind, nil
	}
}

// AssignRandomSex makes the individual female with probability 0.5.
func AssignRandomSex(rng *rand.Rand, ind *Individual) error {
	if rng.Float64() >= 0.5 {
		ind.Sex = Female
	} else {
		ind.Sex = Male
	}
	return nil
}

// RandomGenome draws every site uniformly from its marker's allele domain.
func RandomGenome(rng *rand.Rand, ind *Individual) error {
	return fillGenome(ind, func(alleles []uint8) uint8 {
		return alleles[rng.Intn(len(alleles))]
	})
}

// ZeroGenome sets every site to allele code 0.
func ZeroGenome(_ *rand.Rand, ind *Individual) error {
	return fillGenome(ind, func([]uint8) uint8 { return 0 })
}

// FrequencyGenome sets each site to allele 0 with probability freq, else 1.
func FrequencyGenome(freq float64) Initializer {
	return func(rng *rand.Rand, ind *Individual) error {
		if freq < 0 || freq > 1 {
			return fmt.Errorf("allele frequency must be in [0, 1], got %v", freq)
		}
		return fillGenome(ind, func([]uint8) uint8 {
			if rng.Float64() < freq {
				return 0
			}
			return 1
		})
	}
}

// SequentialGenome fills sites with an incrementing counter shared across
// every individual the initializer touches. Useful for tracing transmission.
func SequentialGenome() Initializer {
	var next uint8
	return func(_ *rand.Rand, ind *Individual) error {
		return fillGenome(ind, func([]uint8) uint8 {
			v := next
			next++
			return v
		})
	}
}

func fillGenome(ind *Individual, pick func(alleles []uint8) uint8) error {
	if ind.Species == nil || ind.Species.Genome == nil {
		return ErrNoGenome
	}
	g := ind.Species.Genome
	buf := make([]byte, g.Size())
	for pos := range buf {
		buf[pos] = pick(g.SiteMarker(pos).Alleles)
	}
	ind.Genome = buf
	return nil
}
