package reproduction

import (
	"context"
	"fmt"
	"math/rand"
	"slices"

	"metis/internal/population"
	"metis/internal/sim"
)

// ErrDemeOutOfRange is returned when structured reproduction meets a deme
// label outside [0, NumDemes).
var ErrDemeOutOfRange = population.ErrDemeOutOfRange

// Config describes one reproduction operator. Mating defaults to
// RandomMating and Generation to SexualGeneration.
type Config struct {
	Name       string
	Species    *population.Species
	Size       int
	Annotators []Annotator
	Mating     MaterFactory
	Generation GeneratorFactory
}

func (c Config) withDefaults(name string) (Config, error) {
	if c.Species == nil {
		return c, fmt.Errorf("species is required")
	}
	if c.Size < 0 {
		return c, fmt.Errorf("offspring count must be >= 0, got %d", c.Size)
	}
	if c.Name == "" {
		c.Name = name
	}
	if c.Mating == nil {
		c.Mating = RandomMating()
	}
	if c.Generation == nil {
		c.Generation = SexualGeneration()
	}
	return c, nil
}

// breed draws size pairs from a mater over candidates and returns the
// offspring.
func (c Config) breed(rng *rand.Rand, ids *population.IDAllocator, cycle int, candidates []*population.Individual, size int) ([]*population.Individual, error) {
	if size == 0 {
		return nil, nil
	}
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	mater, err := c.Mating(rng, candidates)
	if err != nil {
		return nil, err
	}
	generator := c.Generation(c.Species, ids, c.Annotators)
	offspring := make([]*population.Individual, 0, size)
	for i := 0; i < size; i++ {
		pair, err := mater.Mate()
		if err != nil {
			return nil, err
		}
		child, err := generator.Generate(rng, cycle, pair)
		if err != nil {
			return nil, err
		}
		offspring = append(offspring, child)
	}
	return offspring, nil
}

// SexualReproduction appends exactly Size offspring per cycle, bred from a
// snapshot of the individuals alive when the operator runs.
type SexualReproduction struct {
	cfg Config
}

func NewSexualReproduction(cfg Config) (*SexualReproduction, error) {
	cfg, err := cfg.withDefaults("sexual_reproduction")
	if err != nil {
		return nil, err
	}
	return &SexualReproduction{cfg: cfg}, nil
}

// NewNoGenomeSexualReproduction breeds pedigree-only offspring.
func NewNoGenomeSexualReproduction(species *population.Species, size int, annotators []Annotator, mating MaterFactory) (*SexualReproduction, error) {
	return NewSexualReproduction(Config{
		Name:       "no_genome_sexual_reproduction",
		Species:    species,
		Size:       size,
		Annotators: annotators,
		Mating:     mating,
		Generation: NoGenomeSexualGeneration(),
	})
}

// NewClonalReproduction copies parents drawn uniformly from the whole pool.
func NewClonalReproduction(species *population.Species, size int, annotators []Annotator) (*SexualReproduction, error) {
	return NewSexualReproduction(Config{
		Name:       "clonal_reproduction",
		Species:    species,
		Size:       size,
		Annotators: annotators,
		Mating:     AsexualRandomMating(),
		Generation: ClonalGeneration(),
	})
}

func (r *SexualReproduction) Name() string {
	return r.cfg.Name
}

func (r *SexualReproduction) Size() int {
	return r.cfg.Size
}

func (r *SexualReproduction) Change(_ context.Context, state *sim.State) error {
	candidates := slices.Clone(state.Individuals)
	offspring, err := r.cfg.breed(state.Rand, state.IDs, state.Cycle, candidates, r.cfg.Size)
	if err != nil {
		return err
	}
	state.Individuals = append(state.Individuals, offspring...)
	return nil
}

// StructuredSexualReproduction breeds DemeSize offspring independently in
// each of NumDemes demes. Offspring inherit their deme label. A failing deme
// leaves the population unchanged.
type StructuredSexualReproduction struct {
	cfg      Config
	demeSize int
	numDemes int
}

func NewStructuredSexualReproduction(cfg Config, demeSize, numDemes int) (*StructuredSexualReproduction, error) {
	if numDemes <= 0 {
		return nil, fmt.Errorf("%w: %d", population.ErrInvalidDemeCount, numDemes)
	}
	if demeSize < 0 {
		return nil, fmt.Errorf("deme offspring count must be >= 0, got %d", demeSize)
	}
	cfg.Size = demeSize * numDemes
	cfg, err := cfg.withDefaults("structured_sexual_reproduction")
	if err != nil {
		return nil, err
	}
	return &StructuredSexualReproduction{cfg: cfg, demeSize: demeSize, numDemes: numDemes}, nil
}

func NewNoGenomeStructuredSexualReproduction(species *population.Species, demeSize, numDemes int, annotators []Annotator, mating MaterFactory) (*StructuredSexualReproduction, error) {
	return NewStructuredSexualReproduction(Config{
		Name:       "no_genome_structured_sexual_reproduction",
		Species:    species,
		Annotators: annotators,
		Mating:     mating,
		Generation: NoGenomeSexualGeneration(),
	}, demeSize, numDemes)
}

func (r *StructuredSexualReproduction) Name() string {
	return r.cfg.Name
}

// Size is the total offspring per cycle across demes.
func (r *StructuredSexualReproduction) Size() int {
	return r.cfg.Size
}

func (r *StructuredSexualReproduction) Change(_ context.Context, state *sim.State) error {
	if r.demeSize == 0 {
		return nil
	}
	groups, err := population.GroupByDeme(state.Individuals, r.numDemes)
	if err != nil {
		return err
	}
	// Offspring join the population only once every deme has bred.
	offspring := make([]*population.Individual, 0, r.cfg.Size)
	for deme, candidates := range groups {
		children, err := r.cfg.breed(state.Rand, state.IDs, state.Cycle, candidates, r.demeSize)
		if err != nil {
			return fmt.Errorf("deme %d: %w", deme, err)
		}
		for _, child := range children {
			child.Deme = deme
		}
		offspring = append(offspring, children...)
	}
	state.Individuals = append(state.Individuals, offspring...)
	return nil
}
