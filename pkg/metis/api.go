package metis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"metis/internal/platform"
	"metis/internal/scenario"
	"metis/internal/stats"
	"metis/internal/storage"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "metis.db"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *slog.Logger
}

type Client struct {
	store    storage.Store
	logger   *slog.Logger
	platform *platform.Platform

	artifactsDir string
	exportsDir   string

	mu sync.Mutex
}

// RunRequest runs the scenario at ScenarioPath, or Scenario when set.
type RunRequest struct {
	ScenarioPath string
	Scenario     *scenario.Scenario
	RunID        string
	Seed         *int64
	Cycles       int
	Record       []string
}

type RunSummary struct {
	RunID             string
	Scenario          string
	Seed              int64
	Cycles            int
	FinalCycle        int
	FinalPopulation   int
	PopulationByCycle []int
	ArtifactsDir      string
	Genepop           string
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID           string
	CreatedAtUTC    string
	Scenario        string
	Seed            int64
	Cycles          int
	FinalCycle      int
	FinalPopulation int
}

type HistoryRequest struct {
	RunID  string
	Latest bool
	// Key limits the result to one recorded statistic.
	Key string
}

type HistoryItem struct {
	Cycle      int
	Population int
	Values     map[string]json.RawMessage
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	return &Client{
		store:        store,
		logger:       opts.Logger,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.platform != nil {
		c.platform.Stop()
	}
	c.mu.Unlock()
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensurePlatform(ctx)
	return err
}

func (c *Client) ensurePlatform(ctx context.Context) (*platform.Platform, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.platform != nil && c.platform.Started() {
		return c.platform, nil
	}
	p := platform.New(platform.Config{
		Store:        c.store,
		ArtifactsDir: c.artifactsDir,
		Logger:       c.logger,
	})
	if err := p.Init(ctx); err != nil {
		return nil, err
	}
	c.platform = p
	return p, nil
}

// Validate loads and checks a scenario file without running it.
func (c *Client) Validate(path string) (*scenario.Scenario, error) {
	sc, err := scenario.Load(path)
	if err != nil {
		return nil, err
	}
	if _, err := scenario.Build(sc, nil); err != nil {
		return nil, err
	}
	return sc, nil
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	sc := req.Scenario
	if sc == nil {
		if req.ScenarioPath == "" {
			return RunSummary{}, errors.New("scenario path is required")
		}
		loaded, err := scenario.Load(req.ScenarioPath)
		if err != nil {
			return RunSummary{}, err
		}
		sc = loaded
	}
	p, err := c.ensurePlatform(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	res, err := p.Run(ctx, platform.RunRequest{
		RunID:    req.RunID,
		Scenario: sc,
		Seed:     req.Seed,
		Cycles:   req.Cycles,
		Record:   req.Record,
	})
	if err != nil {
		return RunSummary{}, err
	}

	series := make([]int, 0, len(res.History))
	for _, rec := range res.History {
		series = append(series, rec.Population)
	}
	return RunSummary{
		RunID:             res.Run.ID,
		Scenario:          res.Run.Scenario,
		Seed:              res.Run.Seed,
		Cycles:            res.Run.Cycles,
		FinalCycle:        res.Run.FinalCycle,
		FinalPopulation:   res.Run.FinalPopulation,
		PopulationByCycle: series,
		ArtifactsDir:      res.ArtifactDir,
		Genepop:           res.Genepop,
	}, nil
}

// Runs lists persisted runs newest first. When the store holds no runs, as
// with a fresh memory store, the artifact run index is listed instead.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	p, err := c.ensurePlatform(ctx)
	if err != nil {
		return nil, err
	}
	runs, err := p.Runs(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]RunItem, 0, len(runs))
	for _, r := range runs {
		out = append(out, RunItem{
			RunID:           r.ID,
			CreatedAtUTC:    r.CreatedAtUTC,
			Scenario:        r.Scenario,
			Seed:            r.Seed,
			Cycles:          r.Cycles,
			FinalCycle:      r.FinalCycle,
			FinalPopulation: r.FinalPopulation,
		})
	}
	if len(out) == 0 {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			out = append(out, RunItem{
				RunID:           e.RunID,
				CreatedAtUTC:    e.CreatedAtUTC,
				Scenario:        e.Scenario,
				Seed:            e.Seed,
				Cycles:          e.Cycles,
				FinalCycle:      e.FinalCycle,
				FinalPopulation: e.FinalPopulation,
			})
		}
	}
	if len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

func (c *Client) History(ctx context.Context, req HistoryRequest) ([]HistoryItem, error) {
	p, err := c.ensurePlatform(ctx)
	if err != nil {
		return nil, err
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	history, ok, err := p.History(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		history, ok, err = stats.ReadHistory(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}

	out := make([]HistoryItem, 0, len(history))
	for _, rec := range history {
		item := HistoryItem{Cycle: rec.Cycle, Population: rec.Population, Values: rec.Values}
		if req.Key != "" {
			item.Values = map[string]json.RawMessage{}
			if raw, ok := rec.Values[req.Key]; ok {
				item.Values[req.Key] = raw
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// Export copies a run's artifact directory to OutDir.
func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return ExportSummary{}, err
		}
		if len(entries) == 0 {
			return ExportSummary{}, errors.New("no runs available to export")
		}
		runID = entries[0].RunID
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id or latest is required")
	}
	runs, err := c.Runs(ctx, RunsRequest{Limit: 1})
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs recorded")
	}
	return runs[0].RunID, nil
}
