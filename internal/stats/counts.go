package stats

import (
	"errors"
	"fmt"

	"metis/internal/population"
)

var (
	ErrNoIndividuals = errors.New("no individuals to count")
	ErrMixedSpecies  = errors.New("individuals carry different genomes")
)

// SiteCounts maps allele code to occurrences at one site.
type SiteCounts map[uint8]int

// Total is the number of allele copies counted at the site.
func (c SiteCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// MarkerCounts holds per-site counts of one genome entry.
type MarkerCounts struct {
	Name  string
	Sites []SiteCounts
}

// GenomeCounts lists marker counts in genome order.
type GenomeCounts []MarkerCounts

// CountAlleles tallies allele codes per site. Autosomal entries count both
// homologous copies; every other ploidy counts the first copy only.
func CountAlleles(individuals []*population.Individual) (GenomeCounts, error) {
	if len(individuals) == 0 {
		return nil, ErrNoIndividuals
	}
	species := individuals[0].Species
	if species == nil || species.Genome == nil {
		return nil, population.ErrNoGenome
	}
	g := species.Genome
	for _, ind := range individuals {
		if ind.Species == nil || ind.Species.Genome != g {
			return nil, fmt.Errorf("%w: individual %d", ErrMixedSpecies, ind.ID)
		}
		if len(ind.Genome) != g.Size() {
			return nil, fmt.Errorf("%w: individual %d has %d sites, want %d", population.ErrNoGenome, ind.ID, len(ind.Genome), g.Size())
		}
	}

	counts := make(GenomeCounts, 0, len(g.Order()))
	position := 0
	for _, entry := range g.Entries() {
		chrom := entry.Chromosome
		loci := chrom.Loci()
		copies := []int{0}
		if chrom.IsAutosomal() {
			copies = []int{0, loci}
		}
		sites := make([]SiteCounts, loci)
		for i := range sites {
			site := SiteCounts{}
			for _, offset := range copies {
				for _, ind := range individuals {
					site[ind.Genome[position+offset+i]]++
				}
			}
			sites[i] = site
		}
		counts = append(counts, MarkerCounts{Name: entry.Name, Sites: sites})
		position += chrom.Size()
	}
	return counts, nil
}
