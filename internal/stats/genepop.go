package stats

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"metis/internal/population"
	"metis/internal/sim"
)

var ErrNoAutosomes = errors.New("genepop export needs at least one autosomal marker")

// WriteGenepop writes individuals in Genepop layout: the title line, one
// locus line per autosomal site, then a "pop" block per deme in ascending
// label order. Each genotype is two 3-digit 1-based allele codes. Only
// autosomal entries are exported; individuals without a deme form the first
// block.
func WriteGenepop(w io.Writer, title string, individuals []*population.Individual) error {
	if len(individuals) == 0 {
		return ErrNoIndividuals
	}
	species := individuals[0].Species
	if species == nil || species.Genome == nil {
		return population.ErrNoGenome
	}
	g := species.Genome

	type locus struct {
		name   string
		first  int
		second int
	}
	var loci []locus
	position := 0
	for _, entry := range g.Entries() {
		chrom := entry.Chromosome
		if chrom.IsAutosomal() {
			for i := 0; i < chrom.Loci(); i++ {
				loci = append(loci, locus{
					name:   fmt.Sprintf("%s_%d", entry.Name, i),
					first:  position + i,
					second: position + chrom.Loci() + i,
				})
			}
		}
		position += chrom.Size()
	}
	if len(loci) == 0 {
		return ErrNoAutosomes
	}

	blocks := map[int][]*population.Individual{}
	for _, ind := range individuals {
		if len(ind.Genome) != g.Size() {
			return fmt.Errorf("%w: individual %d", population.ErrNoGenome, ind.ID)
		}
		blocks[ind.Deme] = append(blocks[ind.Deme], ind)
	}
	demes := make([]int, 0, len(blocks))
	for deme := range blocks {
		demes = append(demes, deme)
	}
	sort.Ints(demes)

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, strings.TrimSpace(title))
	for _, l := range loci {
		fmt.Fprintln(bw, l.name)
	}
	for _, deme := range demes {
		fmt.Fprintln(bw, "pop")
		for _, ind := range blocks[deme] {
			fmt.Fprintf(bw, "%d,", ind.ID)
			for _, l := range loci {
				fmt.Fprintf(bw, " %03d%03d", int(ind.Genome[l.first])+1, int(ind.Genome[l.second])+1)
			}
			fmt.Fprintln(bw)
		}
	}
	return bw.Flush()
}

// Genepop renders the population as Genepop text. The driver keeps only the
// value of the last cycle, so the export reflects the final population.
type Genepop struct {
	Title string
}

func (s Genepop) Compute(_ context.Context, state *sim.State) (any, error) {
	title := s.Title
	if title == "" {
		title = fmt.Sprintf("metis cycle %d", state.Cycle)
	}
	if len(state.Individuals) == 0 {
		return strings.TrimSpace(title) + "\n", nil
	}
	var sb strings.Builder
	if err := WriteGenepop(&sb, title, state.Individuals); err != nil {
		return nil, err
	}
	return sb.String(), nil
}
