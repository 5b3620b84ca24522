package genome

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
)

var (
	ErrDistanceCount     = errors.New("distance count must equal marker count - 1")
	ErrInvalidDistance   = errors.New("genetic distance must be finite and >= 0")
	ErrEmptyChromosome   = errors.New("chromosome requires at least one marker")
	ErrUnlinkedDistances = errors.New("unlinked chromosome does not take distances")
	ErrUnknownPloidy     = errors.New("unknown ploidy")
)

// Ploidy selects how many homologous copies a chromosome stores and how a
// child inherits them.
type Ploidy int

const (
	// Haploid stores one copy, inherited whole from a random parent.
	Haploid Ploidy = iota
	// Autosome stores two copies; gametes recombine according to distances.
	Autosome
	// UnlinkedAutosome stores two copies; every locus assorts independently.
	UnlinkedAutosome
	// XChromosome stores two copies: the mother's recombined gamete and the
	// father's first copy.
	XChromosome
	// YChromosome stores one copy, inherited from the father.
	YChromosome
	// Mito stores one copy, inherited from the mother.
	Mito
)

func (p Ploidy) String() string {
	switch p {
	case Haploid:
		return "haploid"
	case Autosome:
		return "autosome"
	case UnlinkedAutosome:
		return "unlinked_autosome"
	case XChromosome:
		return "x"
	case YChromosome:
		return "y"
	case Mito:
		return "mito"
	default:
		return fmt.Sprintf("ploidy(%d)", int(p))
	}
}

func ParsePloidy(raw string) (Ploidy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "autosome", "chromosome_pair":
		return Autosome, nil
	case "unlinked_autosome", "unlinked":
		return UnlinkedAutosome, nil
	case "haploid", "chromosome":
		return Haploid, nil
	case "x", "x_chromosome":
		return XChromosome, nil
	case "y", "y_chromosome":
		return YChromosome, nil
	case "mito", "mitochondrial":
		return Mito, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownPloidy, raw)
	}
}

// Copies is the number of homologous copies stored per individual.
func (p Ploidy) Copies() int {
	switch p {
	case Autosome, UnlinkedAutosome, XChromosome:
		return 2
	default:
		return 1
	}
}

// SwitchProbability maps a genetic distance in centimorgans to the chance of
// a strand switch between two adjacent loci (Haldane's map function).
func SwitchProbability(cM float64) float64 {
	return (1 - math.Exp(-2*cM/100)) / 2
}

// Chromosome is an ordered sequence of markers with optional inter-marker
// distances, stored with the number of copies its ploidy dictates.
type Chromosome struct {
	ploidy    Ploidy
	markers   []Marker
	distances []float64
	switches  []float64
}

// NewChromosome validates the marker and distance layout. A nil distances
// slice means no linkage information: every boundary switches with
// probability 0.5.
func NewChromosome(ploidy Ploidy, markers []Marker, distances []float64) (*Chromosome, error) {
	if ploidy < Haploid || ploidy > Mito {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPloidy, int(ploidy))
	}
	if len(markers) == 0 {
		return nil, ErrEmptyChromosome
	}
	if distances != nil && ploidy == UnlinkedAutosome {
		return nil, ErrUnlinkedDistances
	}
	if distances != nil && len(distances) != len(markers)-1 {
		return nil, fmt.Errorf("%w: markers=%d distances=%d", ErrDistanceCount, len(markers), len(distances))
	}

	switches := make([]float64, len(markers)-1)
	for i := range switches {
		if distances == nil {
			switches[i] = 0.5
			continue
		}
		d := distances[i]
		if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return nil, fmt.Errorf("%w: boundary %d has %v", ErrInvalidDistance, i, d)
		}
		switches[i] = SwitchProbability(d)
	}

	c := &Chromosome{
		ploidy:   ploidy,
		markers:  append([]Marker(nil), markers...),
		switches: switches,
	}
	if distances != nil {
		c.distances = append([]float64(nil), distances...)
	}
	return c, nil
}

// NewChromosomePair is the common diploid autosome.
func NewChromosomePair(markers []Marker, distances []float64) (*Chromosome, error) {
	return NewChromosome(Autosome, markers, distances)
}

func (c *Chromosome) Ploidy() Ploidy {
	return c.ploidy
}

// Loci is the number of sites on one copy.
func (c *Chromosome) Loci() int {
	return len(c.markers)
}

// Size is the storage width in the genotype buffer.
func (c *Chromosome) Size() int {
	return len(c.markers) * c.ploidy.Copies()
}

func (c *Chromosome) Markers() []Marker {
	return append([]Marker(nil), c.markers...)
}

// Distances returns nil when the chromosome carries no linkage information.
func (c *Chromosome) Distances() []float64 {
	if c.distances == nil {
		return nil
	}
	return append([]float64(nil), c.distances...)
}

func (c *Chromosome) IsAutosomal() bool {
	return c.ploidy == Autosome || c.ploidy == UnlinkedAutosome
}

// BoundarySwitch is the strand-switch probability between locus i and i+1.
func (c *Chromosome) BoundarySwitch(i int) float64 {
	if c.ploidy == UnlinkedAutosome {
		return 0.5
	}
	return c.switches[i]
}

// Site returns the marker stored at a position within this chromosome's
// segment, accounting for repeated homologous copies.
func (c *Chromosome) Site(pos int) Marker {
	return c.markers[pos%len(c.markers)]
}

// Reproduce copies one copy's worth of allele codes from parent to offspring.
func (c *Chromosome) Reproduce(offspring, parent []byte, offspringOffset, parentOffset int) {
	loci := len(c.markers)
	copy(offspring[offspringOffset:offspringOffset+loci], parent[parentOffset:parentOffset+loci])
}

// Gamete writes one haploid copy into dst from the two homologous copies
// stored contiguously in parent.
func (c *Chromosome) Gamete(rng *rand.Rand, dst, parent []byte) {
	loci := len(c.markers)
	if c.ploidy == UnlinkedAutosome {
		unlinkedGamete(rng, dst[:loci], parent, loci)
		return
	}

	strand := rng.Intn(2)
	for i := 0; i < loci; i++ {
		if i > 0 && rng.Float64() < c.switches[i-1] {
			strand ^= 1
		}
		dst[i] = parent[strand*loci+i]
	}
}

// unlinkedGamete draws strand choices 64 loci at a time.
func unlinkedGamete(rng *rand.Rand, dst, parent []byte, loci int) {
	var bits uint64
	for i := 0; i < loci; i++ {
		if i&63 == 0 {
			bits = rng.Uint64()
		}
		dst[i] = parent[int(bits&1)*loci+i]
		bits >>= 1
	}
}

// Transmit writes this chromosome's segment of a child's genotype from the
// parents' full genotype buffers. offset is the segment start in all three.
func (c *Chromosome) Transmit(rng *rand.Rand, child, mother, father []byte, offset int) {
	loci := len(c.markers)
	switch c.ploidy {
	case Haploid:
		src := mother
		if rng.Intn(2) == 1 {
			src = father
		}
		c.Reproduce(child, src, offset, offset)
	case Mito:
		c.Reproduce(child, mother, offset, offset)
	case YChromosome:
		c.Reproduce(child, father, offset, offset)
	case XChromosome:
		c.Gamete(rng, child[offset:offset+loci], mother[offset:offset+2*loci])
		c.Reproduce(child, father, offset+loci, offset)
	default:
		c.Gamete(rng, child[offset:offset+loci], mother[offset:offset+2*loci])
		c.Gamete(rng, child[offset+loci:offset+2*loci], father[offset:offset+2*loci])
	}
}
