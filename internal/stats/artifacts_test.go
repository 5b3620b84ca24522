package stats

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"metis/internal/model"
)

func sampleArtifacts(runID string) RunArtifacts {
	return RunArtifacts{
		Config: RunConfig{
			RunID:          runID,
			Scenario:       "island",
			Seed:           9,
			Cycles:         3,
			PopulationSize: 20,
			Operators:      []string{"structured_sexual_reproduction", "kill_older_generations", "ExpHe"},
		},
		History: []model.CycleRecord{
			{Cycle: 1, Population: 20, Values: map[string]json.RawMessage{"ExpHe": json.RawMessage(`{"chr":[0.5]}`)}},
			{Cycle: 2, Population: 22},
			{Cycle: 3, Population: 24, Values: map[string]json.RawMessage{"ExpHe": json.RawMessage(`{"chr":[0.4]}`), "SexRatio": json.RawMessage(`1`)}},
		},
	}
}

func TestRunArtifactsRoundTrip(t *testing.T) {
	baseDir := t.TempDir()
	if _, ok, err := ReadRunConfig(baseDir, "run-read"); err != nil || ok {
		t.Fatalf("expected missing config; ok=%t err=%v", ok, err)
	}

	runDir, err := WriteRunArtifacts(baseDir, sampleArtifacts("run-read"))
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	if runDir != filepath.Join(baseDir, "run-read") {
		t.Fatalf("unexpected run dir %s", runDir)
	}

	cfg, ok, err := ReadRunConfig(baseDir, "run-read")
	if err != nil || !ok {
		t.Fatalf("read config: ok=%t err=%v", ok, err)
	}
	if cfg.Scenario != "island" || cfg.Seed != 9 || len(cfg.Operators) != 3 {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	history, ok, err := ReadHistory(baseDir, "run-read")
	if err != nil || !ok {
		t.Fatalf("read history: ok=%t err=%v", ok, err)
	}
	if len(history) != 3 || history[2].Population != 24 || string(history[2].Values["SexRatio"]) != "1" {
		t.Fatalf("unexpected history: %+v", history)
	}

	series, ok, err := ReadPopulationSeries(baseDir, "run-read")
	if err != nil || !ok {
		t.Fatalf("read series: ok=%t err=%v", ok, err)
	}
	if len(series) != 3 || series[0] != 20 || series[2] != 24 {
		t.Fatalf("unexpected series: %v", series)
	}

	raw, err := os.ReadFile(filepath.Join(runDir, seriesFile))
	if err != nil {
		t.Fatalf("read series file: %v", err)
	}
	want := "cycle,population,recorded\n1,20,1\n2,22,0\n3,24,2\n"
	if string(raw) != want {
		t.Fatalf("series file = %q, want %q", raw, want)
	}
}

func TestWriteRunArtifactsGenepop(t *testing.T) {
	baseDir := t.TempDir()
	artifacts := sampleArtifacts("run-gp")
	artifacts.Genepop = "final\nchr_0\npop\n0, 001002\n"

	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(runDir, genepopFile))
	if err != nil || string(data) != artifacts.Genepop {
		t.Fatalf("genepop file = %q, err=%v", data, err)
	}

	artifacts.Genepop = ""
	if _, err := WriteRunArtifacts(baseDir, artifacts); err != nil {
		t.Fatalf("rewrite artifacts: %v", err)
	}
	if _, err := os.Stat(filepath.Join(runDir, genepopFile)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("stale genepop file should be removed, got %v", err)
	}

	entries, err := os.ReadDir(runDir)
	if err != nil {
		t.Fatalf("read run dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			t.Fatalf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	if _, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{}); !errors.Is(err, ErrNoRunID) {
		t.Fatalf("expected ErrNoRunID, got %v", err)
	}
	if err := AppendRunIndex(t.TempDir(), RunIndexEntry{}); !errors.Is(err, ErrNoRunID) {
		t.Fatalf("expected ErrNoRunID, got %v", err)
	}
}

func TestExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")
	artifacts := sampleArtifacts("run-123")
	artifacts.Genepop = "final\n"
	if _, err := WriteRunArtifacts(baseDir, artifacts); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	exported, err := ExportRunArtifacts(baseDir, "run-123", outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	if exported != filepath.Join(outDir, "run-123") {
		t.Fatalf("unexpected export dir %s", exported)
	}
	for _, file := range []string{configFile, historyFile, seriesFile, genepopFile} {
		if _, err := os.Stat(filepath.Join(exported, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}
	history, ok, err := ReadHistory(outDir, "run-123")
	if err != nil || !ok || len(history) != 3 {
		t.Fatalf("exported history unreadable: ok=%t err=%v len=%d", ok, err, len(history))
	}

	if _, err := ExportRunArtifacts(baseDir, "missing", outDir); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestReadRunConfigDetectsMismatch(t *testing.T) {
	baseDir := t.TempDir()
	if _, err := WriteRunArtifacts(baseDir, sampleArtifacts("a")); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	if err := os.Rename(filepath.Join(baseDir, "a"), filepath.Join(baseDir, "b")); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, _, err := ReadRunConfig(baseDir, "b"); !errors.Is(err, ErrMalformedRun) {
		t.Fatalf("expected ErrMalformedRun, got %v", err)
	}

	if err := os.WriteFile(filepath.Join(baseDir, "b", historyFile), []byte("{"), 0o644); err != nil {
		t.Fatalf("corrupt history: %v", err)
	}
	if _, _, err := ReadHistory(baseDir, "b"); !errors.Is(err, ErrMalformedRun) {
		t.Fatalf("expected ErrMalformedRun, got %v", err)
	}
}

func TestRunIndexOrderingAndUpsert(t *testing.T) {
	baseDir := t.TempDir()

	entries, err := ListRunIndex(baseDir)
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty index, got %v err=%v", entries, err)
	}

	appendEntry := func(id, ts string, final int) {
		t.Helper()
		err := AppendRunIndex(baseDir, RunIndexEntry{RunID: id, Scenario: "wf", Cycles: 3, FinalCycle: 3, FinalPopulation: final, CreatedAtUTC: ts})
		if err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	appendEntry("run-1", "2026-02-10T10:00:00Z", 100)
	appendEntry("run-2", "2026-02-10T11:00:00Z", 100)
	appendEntry("run-3", "2026-02-10T11:00:00Z", 100)

	entries, err = ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := runIDs(entries); got != "run-3,run-2,run-1" {
		t.Fatalf("unexpected order %s", got)
	}

	appendEntry("run-1", "2026-02-10T12:00:00Z", 90)
	entries, err = ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list after upsert: %v", err)
	}
	if got := runIDs(entries); got != "run-1,run-3,run-2" {
		t.Fatalf("unexpected order after upsert %s", got)
	}
	if entries[0].FinalPopulation != 90 {
		t.Fatalf("upsert kept stale entry: %+v", entries[0])
	}
}

func runIDs(entries []RunIndexEntry) string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.RunID)
	}
	return strings.Join(ids, ",")
}
