package metis

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newClient(t *testing.T) (*Client, string) {
	t.Helper()
	base := t.TempDir()
	client, err := New(Options{
		StoreKind:    "memory",
		ArtifactsDir: filepath.Join(base, "runs"),
		ExportsDir:   filepath.Join(base, "exports"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client, base
}

func TestClientRunRunsHistoryAndExport(t *testing.T) {
	client, base := newClient(t)
	ctx := context.Background()

	summary, err := client.Run(ctx, RunRequest{ScenarioPath: "testdata/wright_fisher.yaml"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("expected run id")
	}
	if summary.FinalCycle != 4 || summary.FinalPopulation != 80 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	for _, n := range summary.PopulationByCycle {
		if n != 80 {
			t.Fatalf("unexpected population series: %v", summary.PopulationByCycle)
		}
	}
	if len(summary.PopulationByCycle) != 4 {
		t.Fatalf("unexpected population series length: %d", len(summary.PopulationByCycle))
	}
	if !strings.Contains(summary.Genepop, "\npop\n") {
		t.Fatalf("expected genepop export, got %q", summary.Genepop)
	}

	runs, err := client.Runs(ctx, RunsRequest{Limit: 5})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID {
		t.Fatalf("expected run %s in runs list: %+v", summary.RunID, runs)
	}

	history, err := client.History(ctx, HistoryRequest{Latest: true, Key: "NumAl"})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 history items, got %d", len(history))
	}
	for i, item := range history {
		if item.Cycle != i+1 {
			t.Fatalf("item %d has cycle %d", i, item.Cycle)
		}
		if len(item.Values) != 1 {
			t.Fatalf("expected only NumAl, got %v", item.Values)
		}
		var numAl map[string][]int
		if err := json.Unmarshal(item.Values["NumAl"], &numAl); err != nil {
			t.Fatalf("decode NumAl: %v", err)
		}
		if len(numAl["chr"]) != 4 || len(numAl["mt"]) != 1 {
			t.Fatalf("unexpected NumAl shape: %v", numAl)
		}
		for _, n := range numAl["chr"] {
			if n < 1 || n > 5 {
				t.Fatalf("allele count %d outside [1, 5]", n)
			}
		}
	}

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.RunID != summary.RunID {
		t.Fatalf("exported %s, want %s", exported.RunID, summary.RunID)
	}
	if !strings.HasPrefix(exported.Directory, filepath.Join(base, "exports")) {
		t.Fatalf("unexpected export directory %s", exported.Directory)
	}
	if _, err := os.Stat(filepath.Join(exported.Directory, "genepop.txt")); err != nil {
		t.Fatalf("expected exported genepop file: %v", err)
	}
}

func TestClientRunOverrides(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()
	seed := int64(100)
	summary, err := client.Run(ctx, RunRequest{
		ScenarioPath: "testdata/wright_fisher.yaml",
		RunID:        "override",
		Seed:         &seed,
		Cycles:       2,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Seed != seed || summary.Cycles != 2 || summary.FinalCycle != 2 {
		t.Fatalf("overrides not applied: %+v", summary)
	}
	if len(summary.PopulationByCycle) != 2 {
		t.Fatalf("unexpected population series: %v", summary.PopulationByCycle)
	}

	if _, err := client.Run(ctx, RunRequest{ScenarioPath: "testdata/wright_fisher.yaml", Cycles: 1}); err != nil {
		t.Fatalf("second run: %v", err)
	}
	runs, err := client.Runs(ctx, RunsRequest{Limit: 1})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected limit to apply, got %d runs", len(runs))
	}
}

func TestClientValidate(t *testing.T) {
	client, _ := newClient(t)
	sc, err := client.Validate("testdata/wright_fisher.yaml")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if sc.Name != "wright-fisher" {
		t.Fatalf("unexpected scenario name %q", sc.Name)
	}
	if _, err := client.Validate("testdata/broken.yaml"); err == nil {
		t.Fatal("expected broken scenario to fail validation")
	}
	if _, err := client.Validate("testdata/missing.yaml"); err == nil {
		t.Fatal("expected missing scenario to fail")
	}
}

func TestClientRequestErrors(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()
	if _, err := client.Run(ctx, RunRequest{}); err == nil {
		t.Fatal("expected missing scenario error")
	}
	if _, err := client.History(ctx, HistoryRequest{Latest: true}); err == nil {
		t.Fatal("expected no runs error")
	}
	if _, err := client.History(ctx, HistoryRequest{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected conflicting selector error")
	}
	if _, err := client.History(ctx, HistoryRequest{RunID: "missing"}); err == nil {
		t.Fatal("expected unknown run error")
	}
	if _, err := client.Export(ctx, ExportRequest{}); err == nil {
		t.Fatal("expected export selector error")
	}
	if _, err := New(Options{StoreKind: "bogus"}); err == nil {
		t.Fatal("expected unsupported store error")
	}
}

func TestClientFallsBackToArtifacts(t *testing.T) {
	first, base := newClient(t)
	ctx := context.Background()
	summary, err := first.Run(ctx, RunRequest{ScenarioPath: "testdata/wright_fisher.yaml", RunID: "persisted", Cycles: 2})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := New(Options{
		StoreKind:    "memory",
		ArtifactsDir: filepath.Join(base, "runs"),
		ExportsDir:   filepath.Join(base, "exports"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer second.Close()

	runs, err := second.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "persisted" || runs[0].FinalCycle != summary.FinalCycle {
		t.Fatalf("unexpected runs from index: %+v", runs)
	}

	history, err := second.History(ctx, HistoryRequest{Latest: true})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[1].Cycle != 2 {
		t.Fatalf("unexpected history from artifacts: %+v", history)
	}
}
