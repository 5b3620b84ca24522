package genome

import (
	"errors"
	"fmt"
	"math/rand"
)

var (
	ErrMarkerNotFound  = errors.New("marker not found")
	ErrDuplicateMarker = errors.New("duplicate marker name")
	ErrEmptyGenome     = errors.New("genome requires at least one chromosome")
	ErrGenotypeSize    = errors.New("genotype buffer size mismatch")
)

// Entry names one chromosome of a genome. Entry order is storage order.
type Entry struct {
	Name       string
	Chromosome *Chromosome
}

// Genome is an ordered layout of named chromosomes over a flat genotype
// buffer. Offsets are monotonically increasing and non-overlapping.
type Genome struct {
	entries []Entry
	index   map[string]int
	starts  []int
	sites   []Marker
	size    int
}

func New(entries ...Entry) (*Genome, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyGenome
	}

	g := &Genome{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
		starts:  make([]int, 0, len(entries)),
	}
	for _, entry := range entries {
		if entry.Name == "" {
			return nil, errors.New("marker name is required")
		}
		if entry.Chromosome == nil {
			return nil, fmt.Errorf("marker %s: chromosome is required", entry.Name)
		}
		if _, exists := g.index[entry.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateMarker, entry.Name)
		}
		g.index[entry.Name] = len(g.entries)
		g.entries = append(g.entries, entry)
		g.starts = append(g.starts, g.size)
		for pos := 0; pos < entry.Chromosome.Size(); pos++ {
			g.sites = append(g.sites, entry.Chromosome.Site(pos))
		}
		g.size += entry.Chromosome.Size()
	}
	return g, nil
}

// GenerateUnlinkedGenome builds a genome holding one unlinked chromosome
// pair named "unlinked" with numMarkers markers.
func GenerateUnlinkedGenome(numMarkers int, marker func() Marker) (*Genome, error) {
	markers := make([]Marker, numMarkers)
	for i := range markers {
		markers[i] = marker()
	}
	chrom, err := NewChromosome(UnlinkedAutosome, markers, nil)
	if err != nil {
		return nil, err
	}
	return New(Entry{Name: "unlinked", Chromosome: chrom})
}

// Size is the total genotype buffer width.
func (g *Genome) Size() int {
	return g.size
}

func (g *Genome) MarkerStart(name string) (int, error) {
	idx, ok := g.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMarkerNotFound, name)
	}
	return g.starts[idx], nil
}

func (g *Genome) Chromosome(name string) (*Chromosome, error) {
	idx, ok := g.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMarkerNotFound, name)
	}
	return g.entries[idx].Chromosome, nil
}

func (g *Genome) Order() []string {
	names := make([]string, len(g.entries))
	for i, entry := range g.entries {
		names[i] = entry.Name
	}
	return names
}

func (g *Genome) Entries() []Entry {
	return append([]Entry(nil), g.entries...)
}

// SiteMarker returns the marker definition stored at a buffer position.
func (g *Genome) SiteMarker(pos int) Marker {
	return g.sites[pos]
}

// Transmit builds a child genotype, chromosome by chromosome, from the two
// parental genotypes.
func (g *Genome) Transmit(rng *rand.Rand, mother, father []byte) ([]byte, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if len(mother) != g.size {
		return nil, fmt.Errorf("%w: mother has %d want %d", ErrGenotypeSize, len(mother), g.size)
	}
	if len(father) != g.size {
		return nil, fmt.Errorf("%w: father has %d want %d", ErrGenotypeSize, len(father), g.size)
	}

	child := make([]byte, g.size)
	for i, entry := range g.entries {
		entry.Chromosome.Transmit(rng, child, mother, father, g.starts[i])
	}
	return child, nil
}
