package sim

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
)

var ErrNegativeCycles = errors.New("cycle count must be >= 0")

// CycleStop sets the stop flag once the cycle in progress reaches Target.
type CycleStop struct {
	Target int
}

func (CycleStop) Name() string {
	return "cycle_stop"
}

func (c CycleStop) Change(_ context.Context, state *State) error {
	if state.Cycle == c.Target {
		state.Params[StopKey] = true
	}
	return nil
}

// Cycle runs one cycle with the state's current operator list.
func Cycle(ctx context.Context, state *State) error {
	return runCycle(ctx, state, nil)
}

// runCycle applies every operator in list order, then any extra operators.
// The list is captured up front so an operator replacing state.Operators only
// affects later cycles. Operators see the cycle in progress; on failure the
// counter returns to the last completed cycle.
func runCycle(ctx context.Context, state *State, extra []Operator) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if state.Params == nil {
		state.Params = Params{StopKey: false}
	}
	ops := slices.Clone(state.Operators)
	ops = append(ops, extra...)

	state.Cycle++
	log := state.logger()
	for _, op := range ops {
		if err := op.Change(ctx, state); err != nil {
			failed := state.Cycle
			// A failed cycle does not count as completed.
			state.Cycle--
			return fmt.Errorf("cycle %d: operator %q: %w", failed, op.Name(), err)
		}
	}
	log.Debug("cycle complete", "cycle", state.Cycle, "individuals", len(state.Individuals), "operators", len(ops))
	return nil
}

// RunUnspecified runs cycles until an operator sets the stop flag.
func RunUnspecified(ctx context.Context, state *State) error {
	return runUntilStop(ctx, state, nil)
}

// RunN runs exactly n cycles after the current one. The stop condition is
// added to the effective operator list of each cycle and never stored in
// state.Operators, so repeated calls do not accumulate stale stops.
func RunN(ctx context.Context, state *State, n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeCycles, n)
	}
	if n == 0 {
		return nil
	}
	stop := CycleStop{Target: state.Cycle + n}
	return runUntilStop(ctx, state, []Operator{stop})
}

func runUntilStop(ctx context.Context, state *State, extra []Operator) error {
	if state.Params == nil {
		state.Params = Params{}
	}
	state.Params[StopKey] = false
	log := state.logger()
	log.Info("run starting", "cycle", state.Cycle, "individuals", len(state.Individuals))
	for !state.Params.Stopped() {
		if err := runCycle(ctx, state, extra); err != nil {
			return err
		}
	}
	log.Info("run stopped", "cycle", state.Cycle, "individuals", len(state.Individuals))
	return nil
}

// Stepper drives a run one cycle at a time, handing control back to the
// caller between cycles. Semantics match RunN (n > 0) or RunUnspecified.
type Stepper struct {
	state *State
	extra []Operator
	done  bool
}

// NewStepper prepares a stepped run of n cycles. With n == 0 the run ends
// only when an operator sets the stop flag.
func NewStepper(state *State, n int) (*Stepper, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeCycles, n)
	}
	if state.Params == nil {
		state.Params = Params{}
	}
	state.Params[StopKey] = false
	s := &Stepper{state: state}
	if n > 0 {
		s.extra = []Operator{CycleStop{Target: state.Cycle + n}}
	}
	return s, nil
}

// Step runs a single cycle and reports whether the run has stopped.
func (s *Stepper) Step(ctx context.Context) (bool, error) {
	if s.done {
		return true, nil
	}
	if err := runCycle(ctx, s.state, s.extra); err != nil {
		s.done = true
		return true, err
	}
	s.done = s.state.Params.Stopped()
	return s.done, nil
}

func (s *Stepper) Done() bool {
	return s.done
}

func (s *Stepper) State() *State {
	return s.state
}

// Cycles yields the state after every completed cycle of an n-cycle run
// (n == 0: until stop). Breaking out of the loop cancels the run between
// cycles; no partial cycle is rolled back.
func Cycles(ctx context.Context, state *State, n int) iter.Seq2[*State, error] {
	return func(yield func(*State, error) bool) {
		stepper, err := NewStepper(state, n)
		if err != nil {
			yield(state, err)
			return
		}
		for !stepper.Done() {
			if _, err := stepper.Step(ctx); err != nil {
				yield(state, err)
				return
			}
			if !yield(state, nil) {
				return
			}
		}
	}
}
