package reproduction

import (
	"errors"
	"fmt"
	"math/rand"

	"metis/internal/population"
)

var (
	ErrNotAutosomal      = errors.New("selection marker is not an autosome pair")
	ErrSiteOutOfRange    = errors.New("selection site out of range")
	ErrSelectionStarved  = errors.New("no parent pair passed selection")
	ErrGenotypeNotScored = errors.New("genotype sum has no selection entry")
)

// DefaultMaxSelectionAttempts bounds the rejection sampling of one pair.
const DefaultMaxSelectionAttempts = 1_000_000

// Pair is one chosen couple. Asexual maters may return the same individual
// in both slots; clonal generators read Mother only.
type Pair struct {
	Mother *population.Individual
	Father *population.Individual
}

// Mater yields an unbounded sequence of parent pairs over the candidate
// pool it was built with.
type Mater interface {
	Mate() (Pair, error)
}

// MaterFactory builds a Mater over a snapshot of candidates. Reproduction
// operators call it once per cycle.
type MaterFactory func(rng *rand.Rand, candidates []*population.Individual) (Mater, error)

// sexPools builds the infinite female and male random choosers used by the
// sexual maters. A pool where no candidate has a sex yet (founders built
// without sex assignment) serves both roles from the whole pool. A pool with
// sexes assigned but one sex missing is starved.
func sexPools(rng *rand.Rand, candidates []*population.Individual) (*RandomChooser, *RandomChooser, error) {
	wrapper := NewWrapperChooser(candidates)
	if len(candidates) > 0 && allSexless(candidates) {
		pool, err := NewRandomChooser(rng, wrapper)
		if err != nil {
			return nil, nil, err
		}
		return pool, pool, nil
	}
	mothers, err := NewRandomChooser(rng, SexChooser{Source: wrapper, Sex: population.Female})
	if err != nil {
		return nil, nil, fmt.Errorf("mothers: %w", err)
	}
	fathers, err := NewRandomChooser(rng, SexChooser{Source: wrapper, Sex: population.Male})
	if err != nil {
		return nil, nil, fmt.Errorf("fathers: %w", err)
	}
	return mothers, fathers, nil
}

func allSexless(candidates []*population.Individual) bool {
	for _, ind := range candidates {
		if ind.Sex != population.SexUnknown {
			return false
		}
	}
	return true
}

// RandomMater draws mother and father independently and uniformly from the
// female and male sub-pools.
type RandomMater struct {
	mothers Stream
	fathers Stream
}

func NewRandomMater(rng *rand.Rand, candidates []*population.Individual) (*RandomMater, error) {
	mothers, fathers, err := sexPools(rng, candidates)
	if err != nil {
		return nil, err
	}
	return &RandomMater{mothers: mothers.Choose(), fathers: fathers.Choose()}, nil
}

func (m *RandomMater) Mate() (Pair, error) {
	mother, _ := m.mothers.Next()
	father, _ := m.fathers.Next()
	return Pair{Mother: mother, Father: father}, nil
}

// AlphaMater picks one alpha male at construction. Each pair has the alpha
// as father with probability FracAlpha, otherwise a uniformly drawn male.
type AlphaMater struct {
	rng       *rand.Rand
	fracAlpha float64
	alpha     *population.Individual
	mothers   Stream
	fathers   Stream
}

func NewAlphaMater(rng *rand.Rand, candidates []*population.Individual, fracAlpha float64) (*AlphaMater, error) {
	if fracAlpha < 0 || fracAlpha > 1 {
		return nil, fmt.Errorf("alpha fraction must be in [0, 1], got %v", fracAlpha)
	}
	mothers, fathers, err := sexPools(rng, candidates)
	if err != nil {
		return nil, err
	}
	fatherStream := fathers.Choose()
	alpha, _ := fatherStream.Next()
	return &AlphaMater{
		rng:       rng,
		fracAlpha: fracAlpha,
		alpha:     alpha,
		mothers:   mothers.Choose(),
		fathers:   fatherStream,
	}, nil
}

func (m *AlphaMater) Alpha() *population.Individual {
	return m.alpha
}

func (m *AlphaMater) Mate() (Pair, error) {
	mother, _ := m.mothers.Next()
	if m.rng.Float64() < m.fracAlpha {
		return Pair{Mother: mother, Father: m.alpha}, nil
	}
	father, _ := m.fathers.Next()
	return Pair{Mother: mother, Father: father}, nil
}

// AsexualRandomMater draws both slots from the whole pool, ignoring sex.
type AsexualRandomMater struct {
	pool Stream
}

func NewAsexualRandomMater(rng *rand.Rand, candidates []*population.Individual) (*AsexualRandomMater, error) {
	pool, err := NewRandomChooser(rng, NewWrapperChooser(candidates))
	if err != nil {
		return nil, err
	}
	return &AsexualRandomMater{pool: pool.Choose()}, nil
}

func (m *AsexualRandomMater) Mate() (Pair, error) {
	mother, _ := m.pool.Next()
	father, _ := m.pool.Next()
	return Pair{Mother: mother, Father: father}, nil
}

// AutosomeSNPMater applies single-locus viability selection to both parents.
// Survival is indexed by the sum of the two allele codes at the chosen site
// of an autosome pair; a drawn couple is accepted only when both survive.
type AutosomeSNPMater struct {
	rng         *rand.Rand
	survival    [3]float64
	locations   [2]int
	maxAttempts int
	mothers     Stream
	fathers     Stream
}

// NewAutosomeSNPMater locates site within the named marker. maxAttempts <= 0
// selects DefaultMaxSelectionAttempts.
func NewAutosomeSNPMater(rng *rand.Rand, candidates []*population.Individual, survival [3]float64, marker string, site, maxAttempts int) (*AutosomeSNPMater, error) {
	if len(candidates) == 0 {
		return nil, ErrEmptyPool
	}
	for i, p := range survival {
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("survival probability %d must be in [0, 1], got %v", i, p)
		}
	}
	species := candidates[0].Species
	if species == nil || species.Genome == nil {
		return nil, population.ErrNoGenome
	}
	chrom, err := species.Genome.Chromosome(marker)
	if err != nil {
		return nil, err
	}
	if !chrom.IsAutosomal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotAutosomal, marker, chrom.Ploidy())
	}
	if site < 0 || site >= chrom.Loci() {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrSiteOutOfRange, site, chrom.Loci())
	}
	start, err := species.Genome.MarkerStart(marker)
	if err != nil {
		return nil, err
	}
	mothers, fathers, err := sexPools(rng, candidates)
	if err != nil {
		return nil, err
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxSelectionAttempts
	}
	return &AutosomeSNPMater{
		rng:         rng,
		survival:    survival,
		locations:   [2]int{start + site, start + chrom.Loci() + site},
		maxAttempts: maxAttempts,
		mothers:     mothers.Choose(),
		fathers:     fathers.Choose(),
	}, nil
}

func (m *AutosomeSNPMater) reproduces(ind *population.Individual) (bool, error) {
	if len(ind.Genome) <= m.locations[1] {
		return false, fmt.Errorf("%w: individual %d", population.ErrNoGenome, ind.ID)
	}
	sum := int(ind.Genome[m.locations[0]]) + int(ind.Genome[m.locations[1]])
	if sum >= len(m.survival) {
		return false, fmt.Errorf("%w: individual %d has %d", ErrGenotypeNotScored, ind.ID, sum)
	}
	return m.rng.Float64() < m.survival[sum], nil
}

func (m *AutosomeSNPMater) Mate() (Pair, error) {
	for attempt := 0; attempt < m.maxAttempts; attempt++ {
		mother, _ := m.mothers.Next()
		father, _ := m.fathers.Next()
		ok, err := m.reproduces(mother)
		if err != nil {
			return Pair{}, err
		}
		if !ok {
			continue
		}
		ok, err = m.reproduces(father)
		if err != nil {
			return Pair{}, err
		}
		if ok {
			return Pair{Mother: mother, Father: father}, nil
		}
	}
	return Pair{}, fmt.Errorf("%w: after %d attempts", ErrSelectionStarved, m.maxAttempts)
}

func RandomMating() MaterFactory {
	return func(rng *rand.Rand, candidates []*population.Individual) (Mater, error) {
		return NewRandomMater(rng, candidates)
	}
}

func AlphaMating(fracAlpha float64) MaterFactory {
	return func(rng *rand.Rand, candidates []*population.Individual) (Mater, error) {
		return NewAlphaMater(rng, candidates, fracAlpha)
	}
}

func AsexualRandomMating() MaterFactory {
	return func(rng *rand.Rand, candidates []*population.Individual) (Mater, error) {
		return NewAsexualRandomMater(rng, candidates)
	}
}

func AutosomeSNPMating(survival [3]float64, marker string, site, maxAttempts int) MaterFactory {
	return func(rng *rand.Rand, candidates []*population.Individual) (Mater, error) {
		return NewAutosomeSNPMater(rng, candidates, survival, marker, site, maxAttempts)
	}
}
