package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"metis/internal/model"
	"metis/internal/scenario"
	"metis/internal/sim"
	"metis/internal/stats"
	"metis/internal/storage"
)

var (
	ErrNotInitialized = errors.New("platform is not initialized")
	ErrRunNotActive   = errors.New("run is not active")
	ErrRunActive      = errors.New("run is already active")
	ErrNoCycles       = errors.New("cycle count must be > 0")
)

type Config struct {
	Store storage.Store
	// ArtifactsDir enables per-run artifact directories and the run index.
	ArtifactsDir string
	Logger       *slog.Logger
	Now          func() time.Time
}

type RunRequest struct {
	// RunID defaults to a fresh UUIDv7.
	RunID    string
	Scenario *scenario.Scenario
	// Seed and Cycles override the scenario when set.
	Seed   *int64
	Cycles int
	// Record selects the parameter bag entries kept per cycle. Empty records
	// every entry except the stop flag and the Genepop export.
	Record    []string
	Listeners []sim.Listener
}

type RunResult struct {
	Run     model.RunRecord
	History []model.CycleRecord
	// Genepop is the last Genepop export of the run, if any operator made one.
	Genepop     string
	ArtifactDir string
	State       *sim.State
}

// Platform owns a store and executes scenario runs against it. Runs are
// independent and may execute concurrently; each owns its own state.
type Platform struct {
	store        storage.Store
	artifactsDir string
	logger       *slog.Logger
	now          func() time.Time

	mu      sync.RWMutex
	started bool
	runs    map[string]context.CancelFunc

	// artifactsMu serializes run index updates.
	artifactsMu sync.Mutex
}

func New(cfg Config) *Platform {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Platform{
		store:        cfg.Store,
		artifactsDir: cfg.ArtifactsDir,
		logger:       logger,
		now:          now,
		runs:         make(map[string]context.CancelFunc),
	}
}

func (p *Platform) Init(ctx context.Context) error {
	if p.store == nil {
		return fmt.Errorf("store is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := p.store.Init(ctx); err != nil {
		return err
	}
	p.started = true
	return nil
}

func (p *Platform) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

// Stop cancels every active run. Cancelled runs end between cycles.
func (p *Platform) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, cancel := range p.runs {
		cancel()
	}
	p.runs = make(map[string]context.CancelFunc)
	p.started = false
}

func (p *Platform) StopRun(runID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cancel, ok := p.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotActive, runID)
	}
	cancel()
	delete(p.runs, runID)
	return nil
}

// ActiveRuns lists the ids of runs in progress, sorted.
func (p *Platform) ActiveRuns() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.runs))
	for id := range p.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (p *Platform) registerRun(runID string, cancel context.CancelFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return ErrNotInitialized
	}
	if _, exists := p.runs[runID]; exists {
		return fmt.Errorf("%w: %s", ErrRunActive, runID)
	}
	p.runs[runID] = cancel
	return nil
}

func (p *Platform) unregisterRun(runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.runs, runID)
}

// Run builds the scenario, advances it the requested number of cycles while
// recording statistics after every cycle, then persists the run summary and
// history. A failed or cancelled run persists nothing.
func (p *Platform) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if req.Scenario == nil {
		return RunResult{}, fmt.Errorf("%w: scenario is required", scenario.ErrInvalidScenario)
	}
	sc := *req.Scenario
	if req.Seed != nil {
		sc.Seed = *req.Seed
	}
	cycles := sc.Cycles
	if req.Cycles > 0 {
		cycles = req.Cycles
	}
	if cycles <= 0 {
		return RunResult{}, ErrNoCycles
	}
	runID := req.RunID
	if runID == "" {
		runID = uuid.Must(uuid.NewV7()).String()
	}
	log := p.logger.With("run_id", runID, "scenario", sc.Name)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := p.registerRun(runID, cancel); err != nil {
		return RunResult{}, err
	}
	defer p.unregisterRun(runID)

	state, err := scenario.Build(&sc, log)
	if err != nil {
		return RunResult{}, err
	}
	operatorNames := make([]string, 0, len(state.Operators))
	for _, op := range state.Operators {
		operatorNames = append(operatorNames, op.Name())
	}
	broadcaster := sim.NewBroadcaster()
	broadcaster.Subscribe(func(cycle int, params sim.Params) {
		log.Debug("cycle statistics", "cycle", cycle, "entries", len(params)-1)
	})
	for _, l := range req.Listeners {
		broadcaster.Subscribe(l)
	}
	state.Operators = append(state.Operators, broadcaster)

	startCycle := state.Cycle
	log.Info("run started", "seed", sc.Seed, "cycles", cycles, "individuals", len(state.Individuals))
	history, err := p.drive(runCtx, state, cycles, req.Record, log)
	if err != nil {
		log.Error("run failed", "completed_cycle", state.Cycle, "error", err)
		return RunResult{}, err
	}

	version := storage.CurrentVersion()
	run := model.RunRecord{
		VersionedRecord: version,
		ID:              runID,
		Scenario:        sc.Name,
		Seed:            sc.Seed,
		StartCycle:      startCycle,
		Cycles:          cycles,
		FinalCycle:      state.Cycle,
		FinalPopulation: len(state.Individuals),
		CreatedAtUTC:    p.now().UTC().Format(time.RFC3339Nano),
	}
	if err := p.store.SaveRun(ctx, run); err != nil {
		return RunResult{}, fmt.Errorf("save run %s: %w", runID, err)
	}
	if err := p.store.SaveCycleHistory(ctx, runID, history); err != nil {
		return RunResult{}, fmt.Errorf("save history %s: %w", runID, err)
	}

	result := RunResult{Run: run, History: history, State: state}
	result.Genepop, _ = state.Params[stats.SaveGenepopName].(string)
	if p.artifactsDir != "" {
		dir, err := p.writeArtifacts(run, operatorNames, len(state.Individuals), result)
		if err != nil {
			return RunResult{}, err
		}
		result.ArtifactDir = dir
	}
	log.Info("run completed", "final_cycle", run.FinalCycle, "individuals", run.FinalPopulation)
	return result, nil
}

// drive steps the state and snapshots the recorded entries after every
// cycle.
func (p *Platform) drive(ctx context.Context, state *sim.State, cycles int, record []string, log *slog.Logger) ([]model.CycleRecord, error) {
	stepper, err := sim.NewStepper(state, cycles)
	if err != nil {
		return nil, err
	}
	version := storage.CurrentVersion()
	history := make([]model.CycleRecord, 0, cycles)
	for !stepper.Done() {
		if _, err := stepper.Step(ctx); err != nil {
			return nil, err
		}
		values, err := snapshot(state.Params, record)
		if err != nil {
			return nil, fmt.Errorf("cycle %d: %w", state.Cycle, err)
		}
		history = append(history, model.CycleRecord{
			VersionedRecord: version,
			Cycle:           state.Cycle,
			Population:      len(state.Individuals),
			Values:          values,
		})
		log.Debug("cycle recorded", "cycle", state.Cycle, "individuals", len(state.Individuals))
	}
	return history, nil
}

func snapshot(params sim.Params, record []string) (map[string]json.RawMessage, error) {
	keys := record
	if len(keys) == 0 {
		keys = make([]string, 0, len(params))
		for key := range params {
			if key == sim.StopKey || key == stats.SaveGenepopName {
				continue
			}
			keys = append(keys, key)
		}
	}
	values := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		value, ok := params[key]
		if !ok {
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		values[key] = raw
	}
	return values, nil
}

func (p *Platform) writeArtifacts(run model.RunRecord, operators []string, size int, result RunResult) (string, error) {
	p.artifactsMu.Lock()
	defer p.artifactsMu.Unlock()

	dir, err := stats.WriteRunArtifacts(p.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:          run.ID,
			Scenario:       run.Scenario,
			Seed:           run.Seed,
			StartCycle:     run.StartCycle,
			Cycles:         run.Cycles,
			PopulationSize: size,
			Operators:      operators,
		},
		History: result.History,
		Genepop: result.Genepop,
	})
	if err != nil {
		return "", fmt.Errorf("write artifacts %s: %w", run.ID, err)
	}
	err = stats.AppendRunIndex(p.artifactsDir, stats.RunIndexEntry{
		RunID:           run.ID,
		Scenario:        run.Scenario,
		Seed:            run.Seed,
		Cycles:          run.Cycles,
		FinalCycle:      run.FinalCycle,
		FinalPopulation: run.FinalPopulation,
		CreatedAtUTC:    run.CreatedAtUTC,
	})
	if err != nil {
		return "", fmt.Errorf("update run index: %w", err)
	}
	return dir, nil
}

// Runs lists persisted runs newest first.
func (p *Platform) Runs(ctx context.Context) ([]model.RunRecord, error) {
	if !p.Started() {
		return nil, ErrNotInitialized
	}
	return p.store.ListRuns(ctx)
}

func (p *Platform) GetRun(ctx context.Context, runID string) (model.RunRecord, bool, error) {
	if !p.Started() {
		return model.RunRecord{}, false, ErrNotInitialized
	}
	return p.store.GetRun(ctx, runID)
}

func (p *Platform) History(ctx context.Context, runID string) ([]model.CycleRecord, bool, error) {
	if !p.Started() {
		return nil, false, ErrNotInitialized
	}
	return p.store.GetCycleHistory(ctx, runID)
}
