package sim

import (
	"context"
	"io"
	"log/slog"
	"math/rand"

	"metis/internal/population"
)

// StopKey is the parameter bag entry drivers poll to end a run.
const StopKey = "stop"

// Params is the string-keyed bag operators write computed values into.
type Params map[string]any

func (p Params) Stopped() bool {
	stop, _ := p[StopKey].(bool)
	return stop
}

// Operator is one pluggable step of a cycle. Change mutates the state in
// place; changes to state.Operators take effect from the next cycle.
type Operator interface {
	Name() string
	Change(ctx context.Context, state *State) error
}

// OperatorFunc adapts a function to the Operator interface.
type OperatorFunc struct {
	Label string
	Fn    func(ctx context.Context, state *State) error
}

func (o OperatorFunc) Name() string { return o.Label }

func (o OperatorFunc) Change(ctx context.Context, state *State) error {
	return o.Fn(ctx, state)
}

// State is the unit of mutation per cycle. A run owns its state exclusively.
type State struct {
	Individuals []*population.Individual
	Operators   []Operator
	// Cycle counts completed cycles. While a cycle runs, operators observe
	// the number of the cycle in progress.
	Cycle  int
	Params Params
	Rand   *rand.Rand
	IDs    *population.IDAllocator
	Logger *slog.Logger
}

type StateConfig struct {
	Individuals []*population.Individual
	Operators   []Operator
	Cycle       int
	Seed        int64
	Rand        *rand.Rand
	IDs         *population.IDAllocator
	Logger      *slog.Logger
}

// NewState fills in defaults: a seeded random source, an id allocator that
// continues after the largest id present, and an empty parameter bag.
func NewState(cfg StateConfig) *State {
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}
	ids := cfg.IDs
	if ids == nil {
		var next uint64
		for _, ind := range cfg.Individuals {
			if ind.ID >= next {
				next = ind.ID + 1
			}
		}
		ids = population.NewIDAllocator(next)
	}
	return &State{
		Individuals: cfg.Individuals,
		Operators:   cfg.Operators,
		Cycle:       cfg.Cycle,
		Params:      Params{StopKey: false},
		Rand:        rng,
		IDs:         ids,
		Logger:      cfg.Logger,
	}
}

func (s *State) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return discardLogger
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
