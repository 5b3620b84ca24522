package reproduction

import (
	"errors"
	"fmt"
	"math/rand"

	"metis/internal/population"
)

var (
	ErrInfiniteSource = errors.New("random chooser cannot materialize an infinite source")
	ErrEmptyPool      = errors.New("candidate pool is empty")
)

// Stream is a pull-based sequence of individuals. Next reports false once a
// finite stream is exhausted; infinite streams never report false.
type Stream interface {
	Next() (*population.Individual, bool)
}

// Chooser produces individual streams. Finite reports whether the streams it
// returns terminate.
type Chooser interface {
	Choose() Stream
	Finite() bool
}

type sliceStream struct {
	items []*population.Individual
	pos   int
}

func (s *sliceStream) Next() (*population.Individual, bool) {
	if s.pos >= len(s.items) {
		return nil, false
	}
	ind := s.items[s.pos]
	s.pos++
	return ind, true
}

// WrapperChooser yields a fixed list once.
type WrapperChooser struct {
	individuals []*population.Individual
}

func NewWrapperChooser(individuals []*population.Individual) WrapperChooser {
	return WrapperChooser{individuals: individuals}
}

func (c WrapperChooser) Choose() Stream {
	return &sliceStream{items: c.individuals}
}

func (WrapperChooser) Finite() bool {
	return true
}

// SexChooser passes through only individuals of one sex. Over an infinite
// source that never yields the wanted sex, Next does not return.
type SexChooser struct {
	Source Chooser
	Sex    population.Sex
}

func (c SexChooser) Choose() Stream {
	return &sexStream{source: c.Source.Choose(), sex: c.Sex}
}

func (c SexChooser) Finite() bool {
	return c.Source.Finite()
}

type sexStream struct {
	source Stream
	sex    population.Sex
}

func (s *sexStream) Next() (*population.Individual, bool) {
	for {
		ind, ok := s.source.Next()
		if !ok {
			return nil, false
		}
		if ind.Sex == s.sex {
			return ind, true
		}
	}
}

// RandomChooser materializes a finite source once and then resamples it
// uniformly with replacement, forever.
type RandomChooser struct {
	rng         *rand.Rand
	individuals []*population.Individual
}

func NewRandomChooser(rng *rand.Rand, source Chooser) (*RandomChooser, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if source == nil {
		return nil, fmt.Errorf("%w: nil source", ErrEmptyPool)
	}
	if !source.Finite() {
		return nil, ErrInfiniteSource
	}
	var individuals []*population.Individual
	stream := source.Choose()
	for {
		ind, ok := stream.Next()
		if !ok {
			break
		}
		individuals = append(individuals, ind)
	}
	if len(individuals) == 0 {
		return nil, ErrEmptyPool
	}
	return &RandomChooser{rng: rng, individuals: individuals}, nil
}

func (c *RandomChooser) Choose() Stream {
	return randomStream{c}
}

func (*RandomChooser) Finite() bool {
	return false
}

// Len is the size of the materialized pool.
func (c *RandomChooser) Len() int {
	return len(c.individuals)
}

type randomStream struct {
	c *RandomChooser
}

func (s randomStream) Next() (*population.Individual, bool) {
	return s.c.individuals[s.c.rng.Intn(len(s.c.individuals))], true
}
