package population

import (
	"fmt"

	"metis/internal/genome"
)

type Sex int8

const (
	SexUnknown Sex = iota
	Female
	Male
)

func (s Sex) String() string {
	switch s {
	case Female:
		return "female"
	case Male:
		return "male"
	default:
		return "unknown"
	}
}

// NoDeme marks an individual that has not been assigned a deme.
const NoDeme = -1

// Species pairs a name with the genome layout shared by its individuals.
// Genome may be nil for pedigree-only scenarios.
type Species struct {
	Name   string
	Genome *genome.Genome
}

func NewSpecies(name string, g *genome.Genome) *Species {
	return &Species{Name: name, Genome: g}
}

// Parentage records the ids of an individual's parents.
type Parentage struct {
	Mother uint64 `json:"mother"`
	Father uint64 `json:"father"`
}

type Individual struct {
	ID        uint64
	Species   *Species
	CycleBorn int
	Alive     bool
	Sex       Sex
	Deme      int
	Genome    []byte
	Parents   *Parentage
}

// NewIndividual allocates an id and returns a live individual with no sex,
// deme, or genotype assigned.
func NewIndividual(ids *IDAllocator, species *Species, cycle int) *Individual {
	return &Individual{
		ID:        ids.Next(),
		Species:   species,
		CycleBorn: cycle,
		Alive:     true,
		Deme:      NoDeme,
	}
}

func (i *Individual) IsFemale() bool {
	return i.Sex == Female
}

func (i *Individual) HasDeme() bool {
	return i.Deme != NoDeme
}

func (i *Individual) String() string {
	return fmt.Sprintf("individual(%d sex=%s deme=%d born=%d)", i.ID, i.Sex, i.Deme, i.CycleBorn)
}

// IDAllocator hands out monotonically increasing individual ids. It is owned
// by a simulation and is not safe for concurrent use.
type IDAllocator struct {
	next uint64
}

func NewIDAllocator(start uint64) *IDAllocator {
	return &IDAllocator{next: start}
}

func (a *IDAllocator) Next() uint64 {
	id := a.next
	a.next++
	return id
}

// Peek returns the id the next call to Next will hand out.
func (a *IDAllocator) Peek() uint64 {
	return a.next
}
