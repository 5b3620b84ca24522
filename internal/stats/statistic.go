package stats

import (
	"context"
	"fmt"

	"metis/internal/sim"
)

// Default parameter bag names.
const (
	SexRatioName    = "SexRatio"
	NumAlName       = "NumAl"
	FreqAlleleName  = "FreqAllele"
	ExpHeName       = "ExpHe"
	SaveGenepopName = "SaveGenepop"
)

// Statistic computes one value from the current state without mutating it.
type Statistic interface {
	Compute(ctx context.Context, state *sim.State) (any, error)
}

// Operator writes the value of a Statistic under its name every cycle.
type Operator struct {
	name string
	stat Statistic
}

func NewOperator(name string, stat Statistic) (*Operator, error) {
	if name == "" {
		return nil, fmt.Errorf("statistic name is required")
	}
	if stat == nil {
		return nil, fmt.Errorf("statistic is required")
	}
	return &Operator{name: name, stat: stat}, nil
}

func (o *Operator) Name() string {
	return o.name
}

func (o *Operator) Change(ctx context.Context, state *sim.State) error {
	value, err := o.stat.Compute(ctx, state)
	if err != nil {
		return err
	}
	state.Params[o.name] = value
	return nil
}
