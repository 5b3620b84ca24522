package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario is the on-disk description of one simulation: a species, the
// initial population and the ordered operator list run every cycle.
type Scenario struct {
	Name       string         `yaml:"name" json:"name"`
	Seed       int64          `yaml:"seed,omitempty" json:"seed,omitempty"`
	Cycles     int            `yaml:"cycles,omitempty" json:"cycles,omitempty"`
	Species    SpeciesSpec    `yaml:"species" json:"species"`
	Population PopulationSpec `yaml:"population" json:"population"`
	Operators  []OperatorSpec `yaml:"operators,omitempty" json:"operators,omitempty"`
}

// SpeciesSpec lists the genome entries in storage order. An empty genome
// describes a pedigree-only species.
type SpeciesSpec struct {
	Name   string           `yaml:"name" json:"name"`
	Genome []ChromosomeSpec `yaml:"genome,omitempty" json:"genome,omitempty"`
}

type ChromosomeSpec struct {
	Name      string       `yaml:"name" json:"name"`
	Kind      string       `yaml:"kind,omitempty" json:"kind,omitempty"`
	Markers   []MarkerSpec `yaml:"markers" json:"markers"`
	Distances []float64    `yaml:"distances,omitempty" json:"distances,omitempty"`
}

// MarkerSpec describes Count consecutive markers of one type.
type MarkerSpec struct {
	Type    string `yaml:"type" json:"type"`
	Alleles []int  `yaml:"alleles,omitempty" json:"alleles,omitempty"`
	Count   int    `yaml:"count,omitempty" json:"count,omitempty"`
}

type PopulationSpec struct {
	Size           int     `yaml:"size" json:"size"`
	Sex            string  `yaml:"sex,omitempty" json:"sex,omitempty"`
	Genome         string  `yaml:"genome,omitempty" json:"genome,omitempty"`
	Frequency      float64 `yaml:"frequency" json:"frequency"`
	Demes          int     `yaml:"demes,omitempty" json:"demes,omitempty"`
	DemeAssignment string  `yaml:"deme_assignment,omitempty" json:"deme_assignment,omitempty"`
}

// OperatorSpec is a flat union over every operator type. Fields unused by
// Type are ignored.
type OperatorSpec struct {
	Type string `yaml:"type" json:"type"`
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// reproduction
	Size     int         `yaml:"size,omitempty" json:"size,omitempty"`
	DemeSize int         `yaml:"deme_size,omitempty" json:"deme_size,omitempty"`
	Demes    int         `yaml:"demes,omitempty" json:"demes,omitempty"`
	Mating   *MatingSpec `yaml:"mating,omitempty" json:"mating,omitempty"`
	Sex      *SexSpec    `yaml:"sex,omitempty" json:"sex,omitempty"`
	Parents  bool        `yaml:"parents,omitempty" json:"parents,omitempty"`

	// migration
	Migrants int `yaml:"migrants,omitempty" json:"migrants,omitempty"`
	Rows     int `yaml:"rows,omitempty" json:"rows,omitempty"`
	Cols     int `yaml:"cols,omitempty" json:"cols,omitempty"`

	// statistics
	Stat    string `yaml:"stat,omitempty" json:"stat,omitempty"`
	Allele  *int   `yaml:"allele,omitempty" json:"allele,omitempty"`
	Mean    bool   `yaml:"mean,omitempty" json:"mean,omitempty"`
	PerDeme bool   `yaml:"per_deme,omitempty" json:"per_deme,omitempty"`
	Title   string `yaml:"title,omitempty" json:"title,omitempty"`
}

type MatingSpec struct {
	Type        string    `yaml:"type" json:"type"`
	FracAlpha   float64   `yaml:"frac_alpha,omitempty" json:"frac_alpha,omitempty"`
	Survival    []float64 `yaml:"survival,omitempty" json:"survival,omitempty"`
	Marker      string    `yaml:"marker,omitempty" json:"marker,omitempty"`
	Site        int       `yaml:"site,omitempty" json:"site,omitempty"`
	MaxAttempts int       `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`
}

type SexSpec struct {
	Type  string  `yaml:"type" json:"type"`
	Value float64 `yaml:"value,omitempty" json:"value,omitempty"`
}

// Load reads, validates and decodes a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse validates data against the scenario schema, then decodes it.
// Unknown keys are rejected.
func Parse(data []byte) (*Scenario, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidScenario)
	}
	if err := Validate(raw); err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	return &sc, nil
}

// Marshal renders sc back to YAML.
func Marshal(sc *Scenario) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(sc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
