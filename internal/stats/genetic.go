package stats

import (
	"context"

	"metis/internal/population"
	"metis/internal/sim"
)

// CountStatistic derives a value from allele counts.
type CountStatistic interface {
	FromCounts(counts GenomeCounts) (any, error)
}

// fromIndividuals reports an empty per-marker result for an extinct
// population, so observers never abort a run.
func fromIndividuals(stat CountStatistic, individuals []*population.Individual) (any, error) {
	if len(individuals) == 0 {
		return stat.FromCounts(nil)
	}
	counts, err := CountAlleles(individuals)
	if err != nil {
		return nil, err
	}
	return stat.FromCounts(counts)
}

// NumDistinctAlleles reports the number of allele codes present per site.
// 1 marks a monomorphic site.
type NumDistinctAlleles struct{}

func (s NumDistinctAlleles) Compute(_ context.Context, state *sim.State) (any, error) {
	return fromIndividuals(s, state.Individuals)
}

func (NumDistinctAlleles) FromCounts(counts GenomeCounts) (any, error) {
	out := make(map[string][]int, len(counts))
	for _, marker := range counts {
		values := make([]int, len(marker.Sites))
		for i, site := range marker.Sites {
			for _, n := range site {
				if n > 0 {
					values[i]++
				}
			}
		}
		out[marker.Name] = values
	}
	return out, nil
}

// DefaultFrequencyAllele is the allele tracked when a scenario names none:
// code 1, the derived state of a SNP.
const DefaultFrequencyAllele uint8 = 1

// AlleleFrequency reports the frequency of Allele per site. With Mean set,
// each marker's slice carries one trailing element: the mean over its sites.
type AlleleFrequency struct {
	Allele uint8
	Mean   bool
}

func (s AlleleFrequency) Compute(_ context.Context, state *sim.State) (any, error) {
	return fromIndividuals(s, state.Individuals)
}

func (s AlleleFrequency) FromCounts(counts GenomeCounts) (any, error) {
	return perSite(counts, s.Mean, func(site SiteCounts) float64 {
		return float64(site[s.Allele]) / float64(site.Total())
	}), nil
}

// ExpectedHeterozygosity is Nei's gene diversity, 1 - sum(f^2), per site.
type ExpectedHeterozygosity struct {
	Mean bool
}

func (s ExpectedHeterozygosity) Compute(_ context.Context, state *sim.State) (any, error) {
	return fromIndividuals(s, state.Individuals)
}

func (s ExpectedHeterozygosity) FromCounts(counts GenomeCounts) (any, error) {
	return perSite(counts, s.Mean, func(site SiteCounts) float64 {
		total := float64(site.Total())
		he := 1.0
		for _, n := range site {
			f := float64(n) / total
			he -= f * f
		}
		return he
	}), nil
}

func perSite(counts GenomeCounts, mean bool, value func(SiteCounts) float64) map[string][]float64 {
	out := make(map[string][]float64, len(counts))
	for _, marker := range counts {
		values := make([]float64, 0, len(marker.Sites)+1)
		sum := 0.0
		for _, site := range marker.Sites {
			v := value(site)
			sum += v
			values = append(values, v)
		}
		if mean {
			values = append(values, sum/float64(len(marker.Sites)))
		}
		out[marker.Name] = values
	}
	return out
}
