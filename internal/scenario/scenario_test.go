package scenario

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metis/internal/population"
	"metis/internal/sim"
)

func operatorNames(state *sim.State) []string {
	names := make([]string, 0, len(state.Operators))
	for _, op := range state.Operators {
		names = append(names, op.Name())
	}
	return names
}

func TestLoadIslandScenario(t *testing.T) {
	sc, err := Load("testdata/island.yaml")
	require.NoError(t, err)
	assert.Equal(t, "island", sc.Name)
	assert.Equal(t, int64(7), sc.Seed)
	assert.Equal(t, 5, sc.Cycles)

	state, err := Build(sc, nil)
	require.NoError(t, err)
	require.Len(t, state.Individuals, 40)

	species := state.Individuals[0].Species
	require.NotNil(t, species.Genome)
	assert.Equal(t, 11, species.Genome.Size())
	assert.Equal(t, []string{"chr1", "msat", "mt"}, species.Genome.Order())

	perDeme := map[int]int{}
	for _, ind := range state.Individuals {
		assert.Len(t, ind.Genome, 11)
		assert.NotEqual(t, population.SexUnknown, ind.Sex)
		assert.Equal(t, 0, ind.CycleBorn)
		perDeme[ind.Deme]++
	}
	assert.Equal(t, map[int]int{0: 10, 1: 10, 2: 10, 3: 10}, perDeme)

	assert.Equal(t, []string{
		"structured_sexual_reproduction",
		"kill_older_generations",
		"migration_island_fixed",
		"ExpHe",
		"NumAl",
		"SexRatio",
	}, operatorNames(state))
	assert.Equal(t, 0, state.Cycle)
	assert.Equal(t, uint64(40), state.IDs.Peek())
}

func TestLoadPedigreeScenario(t *testing.T) {
	sc, err := Load("testdata/pedigree.yaml")
	require.NoError(t, err)

	state, err := Build(sc, nil)
	require.NoError(t, err)
	require.Len(t, state.Individuals, 20)
	for _, ind := range state.Individuals {
		assert.Nil(t, ind.Species.Genome)
		assert.Nil(t, ind.Genome)
		assert.False(t, ind.HasDeme())
	}
	assert.Equal(t, []string{"no_genome_sexual_reproduction", "kill_older_generations"}, operatorNames(state))
}

func TestLoadSelectionScenario(t *testing.T) {
	sc, err := Load("testdata/selection.yaml")
	require.NoError(t, err)

	state, err := Build(sc, nil)
	require.NoError(t, err)
	chrom, err := state.Individuals[0].Species.Genome.Chromosome("locus")
	require.NoError(t, err)
	assert.True(t, chrom.IsAutosomal())
	assert.Equal(t, []string{"sexual_reproduction", "kill_older_generations", "FreqAllele", "SaveGenepop"}, operatorNames(state))
}

func TestSameSeedBuildsSamePopulation(t *testing.T) {
	sc, err := Load("testdata/island.yaml")
	require.NoError(t, err)
	a, err := Build(sc, nil)
	require.NoError(t, err)
	b, err := Build(sc, nil)
	require.NoError(t, err)
	for i := range a.Individuals {
		assert.Equal(t, a.Individuals[i].Genome, b.Individuals[i].Genome)
		assert.Equal(t, a.Individuals[i].Sex, b.Individuals[i].Sex)
	}
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ``},
		{"missing species", "name: x\npopulation:\n  size: 1\n"},
		{"unknown key", "name: x\ncolour: red\nspecies:\n  name: s\npopulation:\n  size: 1\n"},
		{"negative size", "name: x\nspecies:\n  name: s\npopulation:\n  size: -1\n"},
		{"unknown ploidy", `name: x
species:
  name: s
  genome:
    - name: c
      kind: triploid
      markers:
        - type: snp
population:
  size: 1
`},
		{"unknown marker", `name: x
species:
  name: s
  genome:
    - name: c
      markers:
        - type: indel
population:
  size: 1
`},
		{"frequency without value", `name: x
species:
  name: s
  genome:
    - name: c
      markers:
        - type: snp
population:
  size: 1
  genome: frequency
`},
		{"structured without demes", `name: x
species:
  name: s
population:
  size: 1
operators:
  - type: no_genome_structured_sexual_reproduction
    deme_size: 3
`},
		{"male percentage above 100", `name: x
species:
  name: s
population:
  size: 1
operators:
  - type: no_genome_sexual_reproduction
    size: 1
    sex:
      type: percentage_male
      value: 150
`},
		{"alpha without fraction", `name: x
species:
  name: s
population:
  size: 1
operators:
  - type: no_genome_sexual_reproduction
    size: 1
    mating:
      type: alpha
`},
		{"unknown operator", `name: x
species:
  name: s
population:
  size: 1
operators:
  - type: mutate
`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidScenario)
		})
	}
}

func TestBuildRejectsInconsistentScenarios(t *testing.T) {
	base := func() *Scenario {
		return &Scenario{
			Name:       "x",
			Species:    SpeciesSpec{Name: "s"},
			Population: PopulationSpec{Size: 4},
		}
	}

	sc := base()
	sc.Population.Genome = "random"
	_, err := Build(sc, nil)
	assert.ErrorIs(t, err, ErrInvalidScenario)

	sc = base()
	sc.Operators = []OperatorSpec{{Type: "sexual_reproduction", Size: 2}}
	_, err = Build(sc, nil)
	assert.ErrorIs(t, err, ErrInvalidScenario)
	assert.ErrorIs(t, err, population.ErrNoGenome)

	sc = base()
	sc.Operators = []OperatorSpec{{Type: "statistic", Stat: "genepop", PerDeme: true}}
	_, err = Build(sc, nil)
	assert.ErrorIs(t, err, ErrInvalidScenario)

	sc = base()
	sc.Population.DemeAssignment = "random"
	_, err = Build(sc, nil)
	assert.ErrorIs(t, err, ErrInvalidScenario)

	sc = base()
	sc.Operators = []OperatorSpec{{Type: "no_genome_structured_sexual_reproduction", DemeSize: 2, Demes: 0}}
	_, err = Build(sc, nil)
	assert.ErrorIs(t, err, population.ErrInvalidDemeCount)
}

func TestValidateScenarioInCode(t *testing.T) {
	sc := &Scenario{
		Name: "coded",
		Species: SpeciesSpec{
			Name: "s",
			Genome: []ChromosomeSpec{{
				Name:    "c",
				Kind:    "x",
				Markers: []MarkerSpec{{Type: "microsatellite", Alleles: []int{3, 4, 5}, Count: 2}},
			}},
		},
		Population: PopulationSpec{Size: 10, Genome: "zero"},
		Operators: []OperatorSpec{
			{Type: "sexual_reproduction", Size: 10, Sex: &SexSpec{Type: "sex_ratio", Value: 1}},
			{Type: "kill_older_generations"},
		},
	}
	require.NoError(t, ValidateScenario(sc))

	sc.Operators = append(sc.Operators, OperatorSpec{Type: "mutate"})
	assert.ErrorIs(t, ValidateScenario(sc), ErrInvalidScenario)
}

const runnable = `name: runnable
seed: 11
species:
  name: s
  genome:
    - name: chr
      markers:
        - type: snp
          count: 4
      distances: [10, 10, 10]
population:
  size: 100
operators:
  - type: sexual_reproduction
    size: 100
  - type: kill_older_generations
  - type: statistic
    stat: expected_heterozygosity
    mean: true
  - type: statistic
    stat: sex
`

func TestBuiltScenarioRuns(t *testing.T) {
	sc, err := Parse([]byte(runnable))
	require.NoError(t, err)
	state, err := Build(sc, nil)
	require.NoError(t, err)

	require.NoError(t, sim.RunN(context.Background(), state, 3))
	assert.Equal(t, 3, state.Cycle)
	require.Len(t, state.Individuals, 100)
	for _, ind := range state.Individuals {
		assert.Equal(t, 3, ind.CycleBorn)
	}

	he, ok := state.Params["ExpHe"].(map[string][]float64)
	require.True(t, ok, "ExpHe has type %T", state.Params["ExpHe"])
	require.Len(t, he["chr"], 5)
	for _, v := range he["chr"] {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 0.5)
	}
	assert.Contains(t, state.Params, "SexRatio")
}

func TestAlleleFrequencyDefaultsToDerivedAllele(t *testing.T) {
	zero := 0
	sc := &Scenario{
		Name: "freq",
		Species: SpeciesSpec{
			Name:   "s",
			Genome: []ChromosomeSpec{{Name: "chr", Markers: []MarkerSpec{{Type: "snp", Count: 2}}, Distances: []float64{50}}},
		},
		Population: PopulationSpec{Size: 6, Genome: "zero"},
		Operators: []OperatorSpec{
			{Type: "statistic", Stat: "allele_frequency"},
			{Type: "statistic", Stat: "allele_frequency", Name: "FreqAncestral", Allele: &zero},
		},
	}
	require.NoError(t, ValidateScenario(sc))
	state, err := Build(sc, nil)
	require.NoError(t, err)
	for _, op := range state.Operators {
		require.NoError(t, op.Change(context.Background(), state))
	}

	assert.Equal(t, map[string][]float64{"chr": {0, 0}}, state.Params["FreqAllele"])
	assert.Equal(t, map[string][]float64{"chr": {1, 1}}, state.Params["FreqAncestral"])
}
