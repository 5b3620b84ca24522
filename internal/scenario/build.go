package scenario

import (
	"fmt"
	"log/slog"
	"math/rand"

	"metis/internal/demography"
	"metis/internal/genome"
	"metis/internal/population"
	"metis/internal/reproduction"
	"metis/internal/sim"
	"metis/internal/stats"
)

// Build assembles the species, the initial population born in cycle 0 and
// the operator list described by sc into a fresh simulation state.
func Build(sc *Scenario, logger *slog.Logger) (*sim.State, error) {
	if sc == nil {
		return nil, fmt.Errorf("%w: scenario is required", ErrInvalidScenario)
	}
	species, err := BuildSpecies(sc.Species)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(sc.Seed))
	ids := population.NewIDAllocator(0)
	individuals, err := buildPopulation(rng, ids, species, sc.Population)
	if err != nil {
		return nil, err
	}
	operators, err := BuildOperators(species, sc.Operators)
	if err != nil {
		return nil, err
	}

	return sim.NewState(sim.StateConfig{
		Individuals: individuals,
		Operators:   operators,
		Rand:        rng,
		IDs:         ids,
		Logger:      logger,
	}), nil
}

// BuildSpecies returns a species without a genome when spec lists no
// chromosomes.
func BuildSpecies(spec SpeciesSpec) (*population.Species, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: species name is required", ErrInvalidScenario)
	}
	if len(spec.Genome) == 0 {
		return population.NewSpecies(spec.Name, nil), nil
	}
	entries := make([]genome.Entry, 0, len(spec.Genome))
	for _, cs := range spec.Genome {
		chrom, err := buildChromosome(cs)
		if err != nil {
			return nil, fmt.Errorf("%w: chromosome %q: %w", ErrInvalidScenario, cs.Name, err)
		}
		entries = append(entries, genome.Entry{Name: cs.Name, Chromosome: chrom})
	}
	g, err := genome.New(entries...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	return population.NewSpecies(spec.Name, g), nil
}

func buildChromosome(cs ChromosomeSpec) (*genome.Chromosome, error) {
	ploidy, err := genome.ParsePloidy(cs.Kind)
	if err != nil {
		return nil, err
	}
	var markers []genome.Marker
	for _, ms := range cs.Markers {
		marker, err := buildMarker(ms)
		if err != nil {
			return nil, err
		}
		count := ms.Count
		if count == 0 {
			count = 1
		}
		for i := 0; i < count; i++ {
			markers = append(markers, marker)
		}
	}
	return genome.NewChromosome(ploidy, markers, cs.Distances)
}

func buildMarker(ms MarkerSpec) (genome.Marker, error) {
	alleles := make([]uint8, 0, len(ms.Alleles))
	for _, a := range ms.Alleles {
		if a < 0 || a > 255 {
			return genome.Marker{}, fmt.Errorf("allele code %d out of range", a)
		}
		alleles = append(alleles, uint8(a))
	}
	switch ms.Type {
	case "snp":
		if len(alleles) > 0 {
			return genome.Marker{}, fmt.Errorf("snp markers take no allele list")
		}
		return genome.SNP(), nil
	case "microsatellite":
		return genome.MicroSatellite(alleles...), nil
	default:
		return genome.Marker{}, fmt.Errorf("unknown marker type %q", ms.Type)
	}
}

func buildPopulation(rng *rand.Rand, ids *population.IDAllocator, species *population.Species, spec PopulationSpec) ([]*population.Individual, error) {
	var inits []population.Initializer
	switch spec.Sex {
	case "", "random":
		inits = append(inits, population.AssignRandomSex)
	case "none":
	default:
		return nil, fmt.Errorf("%w: unknown sex assignment %q", ErrInvalidScenario, spec.Sex)
	}

	mode := spec.Genome
	if mode == "" {
		mode = "random"
		if species.Genome == nil {
			mode = "none"
		}
	}
	if mode != "none" && species.Genome == nil {
		return nil, fmt.Errorf("%w: population genome %q needs species genome entries", ErrInvalidScenario, mode)
	}
	switch mode {
	case "random":
		inits = append(inits, population.RandomGenome)
	case "zero":
		inits = append(inits, population.ZeroGenome)
	case "frequency":
		inits = append(inits, population.FrequencyGenome(spec.Frequency))
	case "none":
	default:
		return nil, fmt.Errorf("%w: unknown genome initializer %q", ErrInvalidScenario, mode)
	}

	individuals, err := population.GenerateN(spec.Size, population.NewFactory(rng, ids, species, 0, inits...))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}

	if spec.Demes == 0 {
		if spec.DemeAssignment != "" {
			return nil, fmt.Errorf("%w: deme assignment %q needs demes >= 1", ErrInvalidScenario, spec.DemeAssignment)
		}
		return individuals, nil
	}
	switch spec.DemeAssignment {
	case "", "fixed":
		err = population.AssignFixedSizeDemes(individuals, spec.Demes)
	case "random":
		err = population.AssignRandomDemes(rng, individuals, spec.Demes)
	default:
		err = fmt.Errorf("unknown deme assignment %q", spec.DemeAssignment)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	return individuals, nil
}

// BuildOperators maps specs to operators in list order.
func BuildOperators(species *population.Species, specs []OperatorSpec) ([]sim.Operator, error) {
	operators := make([]sim.Operator, 0, len(specs))
	for i, spec := range specs {
		op, err := buildOperator(species, spec)
		if err != nil {
			return nil, fmt.Errorf("%w: operator %d (%s): %w", ErrInvalidScenario, i, spec.Type, err)
		}
		operators = append(operators, op)
	}
	return operators, nil
}

func buildOperator(species *population.Species, spec OperatorSpec) (sim.Operator, error) {
	switch spec.Type {
	case "sexual_reproduction", "no_genome_sexual_reproduction",
		"structured_sexual_reproduction", "no_genome_structured_sexual_reproduction":
		return buildSexualReproduction(species, spec)
	case "clonal_reproduction":
		if spec.Mating != nil || spec.Sex != nil {
			return nil, fmt.Errorf("clonal reproduction takes no mating or sex settings")
		}
		cfg := reproduction.Config{
			Name:       spec.Name,
			Species:    species,
			Size:       spec.Size,
			Mating:     reproduction.AsexualRandomMating(),
			Generation: reproduction.ClonalGeneration(),
		}
		if cfg.Name == "" {
			cfg.Name = "clonal_reproduction"
		}
		if spec.Parents {
			cfg.Annotators = []reproduction.Annotator{reproduction.AnnotateParents}
		}
		return reproduction.NewSexualReproduction(cfg)
	case "kill_older_generations":
		return demography.KillOlderGenerations{}, nil
	case "migration_island":
		return demography.MigrationIslandFixed{MigrantsPerDeme: spec.Migrants}, nil
	case "migration_stepping_stone":
		return demography.MigrationSteppingStoneFixed{
			MigrantsPerNeighbor: spec.Migrants,
			Rows:                spec.Rows,
			Cols:                spec.Cols,
		}, nil
	case "statistic":
		return buildStatistic(spec)
	default:
		return nil, fmt.Errorf("unknown operator type %q", spec.Type)
	}
}

func buildSexualReproduction(species *population.Species, spec OperatorSpec) (sim.Operator, error) {
	noGenome := spec.Type == "no_genome_sexual_reproduction" || spec.Type == "no_genome_structured_sexual_reproduction"
	if !noGenome && species.Genome == nil {
		return nil, population.ErrNoGenome
	}

	mating, err := buildMating(spec.Mating)
	if err != nil {
		return nil, err
	}
	var genOpts []reproduction.GeneratorOption
	if spec.Sex != nil {
		sex, err := buildSexAssignment(*spec.Sex)
		if err != nil {
			return nil, err
		}
		if sex == nil {
			genOpts = append(genOpts, reproduction.WithoutSexAssignment())
		} else {
			genOpts = append(genOpts, reproduction.WithSexAssignment(sex))
		}
	}
	if noGenome {
		genOpts = append(genOpts, reproduction.WithoutGenome())
	}
	cfg := reproduction.Config{
		Name:       spec.Name,
		Species:    species,
		Size:       spec.Size,
		Mating:     mating,
		Generation: reproduction.SexualGeneration(genOpts...),
	}
	if cfg.Name == "" {
		cfg.Name = spec.Type
	}
	if spec.Parents {
		cfg.Annotators = []reproduction.Annotator{reproduction.AnnotateParents}
	}

	switch spec.Type {
	case "structured_sexual_reproduction", "no_genome_structured_sexual_reproduction":
		return reproduction.NewStructuredSexualReproduction(cfg, spec.DemeSize, spec.Demes)
	default:
		return reproduction.NewSexualReproduction(cfg)
	}
}

func buildMating(spec *MatingSpec) (reproduction.MaterFactory, error) {
	if spec == nil {
		return reproduction.RandomMating(), nil
	}
	switch spec.Type {
	case "", "random":
		return reproduction.RandomMating(), nil
	case "alpha":
		return reproduction.AlphaMating(spec.FracAlpha), nil
	case "asexual":
		return reproduction.AsexualRandomMating(), nil
	case "autosome_snp":
		if len(spec.Survival) != 3 {
			return nil, fmt.Errorf("autosome snp mating needs 3 survival probabilities, got %d", len(spec.Survival))
		}
		survival := [3]float64{spec.Survival[0], spec.Survival[1], spec.Survival[2]}
		return reproduction.AutosomeSNPMating(survival, spec.Marker, spec.Site, spec.MaxAttempts), nil
	default:
		return nil, fmt.Errorf("unknown mating type %q", spec.Type)
	}
}

// buildSexAssignment returns nil for "none".
func buildSexAssignment(spec SexSpec) (reproduction.Annotator, error) {
	switch spec.Type {
	case "", "random":
		return reproduction.RandomSex, nil
	case "percentage_male":
		if spec.Value < 0 || spec.Value > 100 {
			return nil, fmt.Errorf("male percentage must be in [0, 100], got %v", spec.Value)
		}
		return reproduction.PercentageMale(spec.Value), nil
	case "sex_ratio":
		if spec.Value < 0 {
			return nil, fmt.Errorf("sex ratio must be >= 0, got %v", spec.Value)
		}
		return reproduction.SexRatio(spec.Value), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown sex assignment %q", spec.Type)
	}
}

var defaultStatNames = map[string]string{
	"sex":                     stats.SexRatioName,
	"num_alleles":             stats.NumAlName,
	"allele_frequency":        stats.FreqAlleleName,
	"expected_heterozygosity": stats.ExpHeName,
	"genepop":                 stats.SaveGenepopName,
}

func buildStatistic(spec OperatorSpec) (sim.Operator, error) {
	name := spec.Name
	if name == "" {
		name = defaultStatNames[spec.Stat]
	}
	allele := stats.DefaultFrequencyAllele
	if spec.Allele != nil {
		if *spec.Allele < 0 || *spec.Allele > 255 {
			return nil, fmt.Errorf("allele code %d out of range", *spec.Allele)
		}
		allele = uint8(*spec.Allele)
	}

	var stat stats.Statistic
	switch spec.Stat {
	case "sex":
		stat = stats.SexStatistics{}
	case "genepop":
		stat = stats.Genepop{Title: spec.Title}
	case "num_alleles":
		stat = stats.NumDistinctAlleles{}
	case "allele_frequency":
		stat = stats.AlleleFrequency{Allele: allele, Mean: spec.Mean}
	case "expected_heterozygosity":
		stat = stats.ExpectedHeterozygosity{Mean: spec.Mean}
	default:
		return nil, fmt.Errorf("unknown statistic %q", spec.Stat)
	}
	if spec.PerDeme {
		counted, ok := stat.(stats.CountStatistic)
		if !ok {
			return nil, fmt.Errorf("statistic %q cannot be computed per deme", spec.Stat)
		}
		stat = stats.DemeStatistics{Stat: counted}
	}
	return stats.NewOperator(name, stat)
}
