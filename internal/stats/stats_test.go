package stats

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"metis/internal/genome"
	"metis/internal/population"
	"metis/internal/sim"
)

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCountAllelesCopiesPerPloidy(t *testing.T) {
	counts, err := CountAlleles(exportPopulation(t))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if len(counts) != 2 || counts[0].Name != "A" || counts[1].Name != "mt" {
		t.Fatalf("unexpected markers: %+v", counts)
	}
	a := counts[0].Sites
	if a[0][0] != 4 || a[0][1] != 4 || a[1][0] != 3 || a[1][1] != 5 {
		t.Fatalf("unexpected autosome counts: %+v", a)
	}
	if a[0].Total() != 8 {
		t.Fatalf("autosome sites should count both copies, got %d", a[0].Total())
	}
	mt := counts[1].Sites
	if mt[0].Total() != 4 || mt[0][0] != 2 {
		t.Fatalf("unexpected mito counts: %+v", mt)
	}
}

func TestCountAllelesErrors(t *testing.T) {
	if _, err := CountAlleles(nil); !errors.Is(err, ErrNoIndividuals) {
		t.Fatalf("expected ErrNoIndividuals, got %v", err)
	}
	ind := population.NewIndividual(population.NewIDAllocator(0), population.NewSpecies("empty", nil), 0)
	if _, err := CountAlleles([]*population.Individual{ind}); !errors.Is(err, population.ErrNoGenome) {
		t.Fatalf("expected ErrNoGenome, got %v", err)
	}
	inds := exportPopulation(t)
	inds[2].Genome = inds[2].Genome[:3]
	if _, err := CountAlleles(inds); !errors.Is(err, population.ErrNoGenome) {
		t.Fatalf("expected ErrNoGenome for short genotype, got %v", err)
	}
}

func TestNumDistinctAlleles(t *testing.T) {
	state := sim.NewState(sim.StateConfig{Individuals: exportPopulation(t)})
	value, err := NumDistinctAlleles{}.Compute(context.Background(), state)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	got := value.(map[string][]int)
	if len(got["A"]) != 2 || got["A"][0] != 2 || got["A"][1] != 2 || got["mt"][0] != 2 {
		t.Fatalf("unexpected distinct alleles: %v", got)
	}
}

func TestAlleleFrequencyWithMean(t *testing.T) {
	state := sim.NewState(sim.StateConfig{Individuals: exportPopulation(t)})
	value, err := AlleleFrequency{Allele: 1, Mean: true}.Compute(context.Background(), state)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	got := value.(map[string][]float64)
	a := got["A"]
	if len(a) != 3 || !near(a[0], 0.5) || !near(a[1], 0.625) || !near(a[2], 0.5625) {
		t.Fatalf("unexpected autosome frequencies: %v", a)
	}
	if len(got["mt"]) != 2 || !near(got["mt"][0], 0.5) {
		t.Fatalf("unexpected mito frequencies: %v", got["mt"])
	}

	value, _ = AlleleFrequency{Allele: 7}.Compute(context.Background(), state)
	if f := value.(map[string][]float64)["A"]; len(f) != 2 || f[0] != 0 {
		t.Fatalf("absent allele should have frequency 0: %v", f)
	}
}

func TestExpectedHeterozygosity(t *testing.T) {
	state := sim.NewState(sim.StateConfig{Individuals: exportPopulation(t)})
	value, err := ExpectedHeterozygosity{}.Compute(context.Background(), state)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	got := value.(map[string][]float64)
	if !near(got["A"][0], 0.5) || !near(got["A"][1], 0.46875) || !near(got["mt"][0], 0.5) {
		t.Fatalf("unexpected heterozygosity: %v", got)
	}
}

func TestExpectedHeterozygosityBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	g, err := genome.GenerateUnlinkedGenome(50, func() genome.Marker { return genome.MicroSatellite(0, 1, 2, 3) })
	if err != nil {
		t.Fatalf("genome: %v", err)
	}
	species := population.NewSpecies("ms", g)
	inds, err := population.GenerateN(40, population.NewFactory(rng, population.NewIDAllocator(0), species, 0, population.RandomGenome))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	value, err := ExpectedHeterozygosity{Mean: true}.Compute(context.Background(), sim.NewState(sim.StateConfig{Individuals: inds}))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	values := value.(map[string][]float64)["unlinked"]
	if len(values) != 51 {
		t.Fatalf("expected 50 sites plus mean, got %d", len(values))
	}
	for i, he := range values {
		if he < 0 || he > 0.75+1e-9 {
			t.Fatalf("site %d heterozygosity %v outside [0, 0.75]", i, he)
		}
	}
	if mean := values[50]; mean < 0.6 {
		t.Fatalf("uniform 4-allele population should be near 0.75, got mean %v", mean)
	}

	zero, _ := population.GenerateN(5, population.NewFactory(rng, population.NewIDAllocator(0), species, 0, population.ZeroGenome))
	value, _ = ExpectedHeterozygosity{}.Compute(context.Background(), sim.NewState(sim.StateConfig{Individuals: zero}))
	for _, he := range value.(map[string][]float64)["unlinked"] {
		if he != 0 {
			t.Fatalf("monomorphic site should have zero heterozygosity, got %v", he)
		}
	}
}

func TestDemeStatistics(t *testing.T) {
	state := sim.NewState(sim.StateConfig{Individuals: exportPopulation(t)})
	value, err := DemeStatistics{Stat: NumDistinctAlleles{}}.Compute(context.Background(), state)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	byDeme := value.(map[int]any)
	if len(byDeme) != 2 {
		t.Fatalf("expected 2 demes, got %v", byDeme)
	}
	for deme, v := range byDeme {
		got := v.(map[string][]int)
		if got["A"][0] != 2 || got["A"][1] != 2 || got["mt"][0] != 1 {
			t.Fatalf("deme %d: unexpected distinct alleles %v", deme, got)
		}
	}

	state.Individuals[0].Deme = population.NoDeme
	if _, err := (DemeStatistics{Stat: NumDistinctAlleles{}}).Compute(context.Background(), state); !errors.Is(err, population.ErrUnassignedDeme) {
		t.Fatalf("expected ErrUnassignedDeme, got %v", err)
	}
}

func TestSexStatisticsCountsLiveIndividuals(t *testing.T) {
	ids := population.NewIDAllocator(0)
	species := population.NewSpecies("empty", nil)
	sexes := []population.Sex{population.Female, population.Female, population.Male, population.SexUnknown, population.Male}
	inds := make([]*population.Individual, len(sexes))
	for i, sex := range sexes {
		inds[i] = population.NewIndividual(ids, species, 0)
		inds[i].Sex = sex
	}
	inds[4].Alive = false

	op, err := NewOperator(SexRatioName, SexStatistics{})
	if err != nil {
		t.Fatalf("operator: %v", err)
	}
	state := sim.NewState(sim.StateConfig{Individuals: inds, Operators: []sim.Operator{op}})
	if err := sim.Cycle(context.Background(), state); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	got := state.Params[SexRatioName].(SexCounts)
	if got != (SexCounts{Females: 2, Males: 1, Unknown: 1}) {
		t.Fatalf("unexpected sex counts: %+v", got)
	}
	if len(state.Individuals) != 5 {
		t.Fatalf("statistics must not change the population")
	}
}

func TestNewOperatorValidation(t *testing.T) {
	if _, err := NewOperator("", SexStatistics{}); err == nil {
		t.Fatal("expected error for empty name")
	}
	if _, err := NewOperator(ExpHeName, nil); err == nil {
		t.Fatal("expected error for nil statistic")
	}
}

func TestStatisticsSurviveExtinction(t *testing.T) {
	extinction := sim.OperatorFunc{Label: "extinction", Fn: func(_ context.Context, s *sim.State) error {
		s.Individuals = nil
		return nil
	}}
	ops := []sim.Operator{extinction}
	for name, stat := range map[string]Statistic{
		NumAlName:       NumDistinctAlleles{},
		FreqAlleleName:  AlleleFrequency{Allele: 1, Mean: true},
		ExpHeName:       ExpectedHeterozygosity{Mean: true},
		SaveGenepopName: Genepop{Title: "gone"},
		"ExpHePerDeme":  DemeStatistics{Stat: ExpectedHeterozygosity{}},
	} {
		op, err := NewOperator(name, stat)
		if err != nil {
			t.Fatalf("operator %s: %v", name, err)
		}
		ops = append(ops, op)
	}
	state := sim.NewState(sim.StateConfig{Individuals: exportPopulation(t), Operators: ops})
	if err := sim.RunN(context.Background(), state, 1); err != nil {
		t.Fatalf("run after extinction: %v", err)
	}
	if he, ok := state.Params[ExpHeName].(map[string][]float64); !ok || len(he) != 0 {
		t.Fatalf("expected empty ExpHe, got %#v", state.Params[ExpHeName])
	}
	if al, ok := state.Params[NumAlName].(map[string][]int); !ok || len(al) != 0 {
		t.Fatalf("expected empty NumAl, got %#v", state.Params[NumAlName])
	}
	if gp := state.Params[SaveGenepopName]; gp != "gone\n" {
		t.Fatalf("expected title-only genepop, got %q", gp)
	}
}
