package reproduction

import (
	"bytes"
	"fmt"
	"math/rand"

	"metis/internal/population"
)

// Generator produces one newborn of the given cycle from a chosen pair.
type Generator interface {
	Generate(rng *rand.Rand, cycle int, pair Pair) (*population.Individual, error)
}

// GeneratorFactory binds a generator to the species, id allocator and
// caller-supplied annotators of one reproduction operator.
type GeneratorFactory func(species *population.Species, ids *population.IDAllocator, annotators []Annotator) Generator

type generatorOptions struct {
	sex     Annotator
	genetic bool
}

type GeneratorOption func(*generatorOptions)

// WithSexAssignment replaces the default uniform sex assignment.
func WithSexAssignment(a Annotator) GeneratorOption {
	return func(o *generatorOptions) { o.sex = a }
}

func WithoutSexAssignment() GeneratorOption {
	return func(o *generatorOptions) { o.sex = nil }
}

// WithoutGenome skips genome transmission, for pedigree-only runs.
func WithoutGenome() GeneratorOption {
	return func(o *generatorOptions) { o.genetic = false }
}

// SexualGenerator runs sex assignment, then genome transmission, then the
// caller's annotators, passing [mother, father] to each.
type SexualGenerator struct {
	species    *population.Species
	ids        *population.IDAllocator
	annotators []Annotator
}

func NewSexualGenerator(species *population.Species, ids *population.IDAllocator, annotators []Annotator, opts ...GeneratorOption) *SexualGenerator {
	o := generatorOptions{sex: RandomSex, genetic: true}
	for _, opt := range opts {
		opt(&o)
	}
	chain := make([]Annotator, 0, len(annotators)+2)
	if o.sex != nil {
		chain = append(chain, o.sex)
	}
	if o.genetic {
		chain = append(chain, TransmitGenome)
	}
	chain = append(chain, annotators...)
	return &SexualGenerator{species: species, ids: ids, annotators: chain}
}

func NewNoGenomeSexualGenerator(species *population.Species, ids *population.IDAllocator, annotators []Annotator) *SexualGenerator {
	return NewSexualGenerator(species, ids, annotators, WithoutGenome())
}

func (g *SexualGenerator) Generate(rng *rand.Rand, cycle int, pair Pair) (*population.Individual, error) {
	if pair.Mother == nil || pair.Father == nil {
		return nil, fmt.Errorf("%w: sexual generation needs mother and father", ErrParentCount)
	}
	child := population.NewIndividual(g.ids, g.species, cycle)
	parents := []*population.Individual{pair.Mother, pair.Father}
	for _, annotate := range g.annotators {
		if err := annotate(rng, child, parents); err != nil {
			return nil, err
		}
	}
	return child, nil
}

// ClonalGenerator copies the mother's sex and genotype, then applies the
// annotators with the mother as sole parent.
type ClonalGenerator struct {
	species    *population.Species
	ids        *population.IDAllocator
	annotators []Annotator
}

func NewClonalGenerator(species *population.Species, ids *population.IDAllocator, annotators []Annotator) *ClonalGenerator {
	return &ClonalGenerator{species: species, ids: ids, annotators: annotators}
}

func (g *ClonalGenerator) Generate(rng *rand.Rand, cycle int, pair Pair) (*population.Individual, error) {
	if pair.Mother == nil {
		return nil, fmt.Errorf("%w: clonal generation needs a parent", ErrParentCount)
	}
	child := population.NewIndividual(g.ids, g.species, cycle)
	child.Sex = pair.Mother.Sex
	if pair.Mother.Genome != nil {
		child.Genome = bytes.Clone(pair.Mother.Genome)
	}
	parents := []*population.Individual{pair.Mother}
	for _, annotate := range g.annotators {
		if err := annotate(rng, child, parents); err != nil {
			return nil, err
		}
	}
	return child, nil
}

// SexualGeneration is the default GeneratorFactory.
func SexualGeneration(opts ...GeneratorOption) GeneratorFactory {
	return func(species *population.Species, ids *population.IDAllocator, annotators []Annotator) Generator {
		return NewSexualGenerator(species, ids, annotators, opts...)
	}
}

func NoGenomeSexualGeneration() GeneratorFactory {
	return SexualGeneration(WithoutGenome())
}

func ClonalGeneration() GeneratorFactory {
	return func(species *population.Species, ids *population.IDAllocator, annotators []Annotator) Generator {
		return NewClonalGenerator(species, ids, annotators)
	}
}
