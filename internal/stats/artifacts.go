package stats

import (
	"cmp"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"metis/internal/model"
)

// Layout of an artifacts directory:
//
//	run_index.json
//	<run-id>/config.json
//	<run-id>/history.json
//	<run-id>/population_series.csv
//	<run-id>/genepop.txt   (only when a Genepop export was made)
const (
	runIndexFile = "run_index.json"
	configFile   = "config.json"
	historyFile  = "history.json"
	seriesFile   = "population_series.csv"
	genepopFile  = "genepop.txt"
)

var (
	ErrNoRunID      = errors.New("run id is required")
	ErrRunNotFound  = errors.New("run artifacts not found")
	ErrMalformedRun = errors.New("malformed run artifacts")
)

var seriesHeader = []string{"cycle", "population", "recorded"}

const seriesPopulation = 1

type RunConfig struct {
	RunID          string   `json:"run_id"`
	Scenario       string   `json:"scenario"`
	Seed           int64    `json:"seed"`
	StartCycle     int      `json:"start_cycle"`
	Cycles         int      `json:"cycles"`
	PopulationSize int      `json:"population_size"`
	Operators      []string `json:"operators"`
	Store          string   `json:"store,omitempty"`
}

type RunArtifacts struct {
	Config  RunConfig
	History []model.CycleRecord
	// Genepop is the final export text, written only when non-empty.
	Genepop string
}

type RunIndexEntry struct {
	RunID           string `json:"run_id"`
	Scenario        string `json:"scenario"`
	Seed            int64  `json:"seed"`
	Cycles          int    `json:"cycles"`
	FinalCycle      int    `json:"final_cycle"`
	FinalPopulation int    `json:"final_population"`
	CreatedAtUTC    string `json:"created_at_utc"`
}

// WriteRunArtifacts writes the files of one run under baseDir/<run-id> and
// returns that directory. Rewriting a run replaces its files; a stale
// genepop.txt is removed when the new run made no export.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", ErrNoRunID
	}
	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSONFile(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	history := artifacts.History
	if history == nil {
		history = []model.CycleRecord{}
	}
	if err := writeJSONFile(filepath.Join(runDir, historyFile), history); err != nil {
		return "", err
	}
	if err := WritePopulationSeries(runDir, history); err != nil {
		return "", err
	}

	genepopPath := filepath.Join(runDir, genepopFile)
	if artifacts.Genepop == "" {
		if err := os.Remove(genepopPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		return runDir, nil
	}
	if err := writeFileAtomic(genepopPath, []byte(artifacts.Genepop)); err != nil {
		return "", err
	}
	return runDir, nil
}

// AppendRunIndex adds entry to the run index, replacing an entry with the
// same run id. Callers writing concurrently must serialize.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return ErrNoRunID
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}
	index, _, err := readJSONFile[[]RunIndexEntry](filepath.Join(baseDir, runIndexFile))
	if err != nil {
		return err
	}
	index = slices.DeleteFunc(index, func(e RunIndexEntry) bool { return e.RunID == entry.RunID })
	index = append(index, entry)
	return writeJSONFile(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first. Entries with equal
// timestamps are ordered by most recent append. A missing index is empty.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	index, _, err := readJSONFile[[]RunIndexEntry](filepath.Join(baseDir, runIndexFile))
	if err != nil {
		return nil, err
	}
	if index == nil {
		return []RunIndexEntry{}, nil
	}
	slices.Reverse(index)
	slices.SortStableFunc(index, func(a, b RunIndexEntry) int {
		return cmp.Compare(b.CreatedAtUTC, a.CreatedAtUTC)
	})
	return index, nil
}

// ExportRunArtifacts copies every file of a run directory into
// outDir/<run-id> and returns the destination.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", ErrNoRunID
	}
	src := filepath.Join(baseDir, runID)
	entries, err := os.ReadDir(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if err := copyFile(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	cfg, ok, err := readJSONFile[RunConfig](filepath.Join(baseDir, runID, configFile))
	if err != nil || !ok {
		return RunConfig{}, false, err
	}
	if cfg.RunID != runID {
		return RunConfig{}, false, fmt.Errorf("%w: config of %s names run %s", ErrMalformedRun, runID, cfg.RunID)
	}
	return cfg, true, nil
}

func ReadHistory(baseDir, runID string) ([]model.CycleRecord, bool, error) {
	return readJSONFile[[]model.CycleRecord](filepath.Join(baseDir, runID, historyFile))
}

// WritePopulationSeries writes one cycle,population,recorded row per cycle,
// where recorded counts the statistics kept for that cycle.
func WritePopulationSeries(runDir string, history []model.CycleRecord) error {
	file, err := os.Create(filepath.Join(runDir, seriesFile))
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(seriesHeader); err != nil {
		return err
	}
	for _, rec := range history {
		row := []string{strconv.Itoa(rec.Cycle), strconv.Itoa(rec.Population), strconv.Itoa(len(rec.Values))}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return file.Sync()
}

// ReadPopulationSeries returns population sizes in cycle order.
func ReadPopulationSeries(baseDir, runID string) ([]int, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, seriesFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []int{}, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	col := slices.Index(header, seriesHeader[seriesPopulation])
	if col < 0 {
		return nil, false, fmt.Errorf("%w: population series has no population column", ErrMalformedRun)
	}

	var series []int
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, false, err
		}
		n, err := strconv.Atoi(row[col])
		if err != nil {
			return nil, false, fmt.Errorf("%w: population %q: %w", ErrMalformedRun, row[col], err)
		}
		series = append(series, n)
	}
	if series == nil {
		series = []int{}
	}
	return series, true, nil
}

// readJSONFile decodes path into a T. A missing file reports ok=false and
// no error.
func readJSONFile[T any](path string) (T, bool, error) {
	var value T
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return value, false, nil
		}
		return value, false, err
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return value, false, fmt.Errorf("%w: %s: %w", ErrMalformedRun, filepath.Base(path), err)
	}
	return value, true, nil
}

func writeJSONFile(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, append(data, '\n'))
}

// writeFileAtomic replaces path so readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
