package runs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/harmonia-labs/harmonia-go/internal/align"
	"github.com/harmonia-labs/harmonia-go/internal/domain"
	"github.com/harmonia-labs/harmonia-go/internal/engine"
	"github.com/harmonia-labs/harmonia-go/internal/ingest"
	"github.com/harmonia-labs/harmonia-go/internal/ledger"
	"github.com/harmonia-labs/harmonia-go/internal/ontology"
	"github.com/harmonia-labs/harmonia-go/internal/platform/objectstore"
	"github.com/harmonia-labs/harmonia-go/internal/repo"
	"github.com/harmonia-labs/harmonia-go/internal/repo/memory"
	"github.com/harmonia-labs/harmonia-go/internal/resolver"
	"github.com/harmonia-labs/harmonia-go/internal/schemas"
)

func testService(t *testing.T) (*Service, *memory.Store, *objectstore.MemoryStore) {
	t.Helper()
	store := memory.NewStore()
	objects := objectstore.NewMemoryStore()
	buckets := objectstore.Config{
		Endpoint:        "localhost:9000",
		AccessKey:       "k",
		SecretKey:       "s",
		Region:          "us-east-1",
		BucketRaw:       "raw-data",
		BucketHarmonise: "harmonised-data",
	}
	led := ledger.New(store, store)
	aligner := align.New(resolver.New(ontology.Build(nil)), led, nil)
	fetcher := ingest.NewFetcher(objects, buckets.BucketRaw)
	eng, err := engine.New(engine.Config{Concurrency: 2}, store, store, led,
		schemas.NewRegistry(store), aligner, fetcher, objects, buckets, nil)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return New(store, store, eng, nil), store, objects
}

func waitTerminal(t *testing.T, svc *Service, runID string) domain.Run {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		status, err := svc.GetStatus(context.Background(), runID)
		if err != nil {
			t.Fatalf("GetStatus: %v", err)
		}
		if status.Run.Status.Terminal() {
			return status.Run
		}
		select {
		case <-deadline:
			t.Fatalf("run %s never reached a terminal status", runID)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSubmitRunsToCompletion(t *testing.T) {
	ctx := context.Background()
	svc, _, objects := testService(t)

	body := "Participant Name,Measurement\ns1,0.4\n"
	err := objects.Put(ctx, "raw-data", "uploads/cohort.csv", strings.NewReader(body), int64(len(body)), "text/csv")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	run, err := svc.Submit(ctx, domain.RunConfig{Name: "cohort", Source: "uploads/cohort.csv"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if run.ID == "" || run.Status != domain.RunStatusRunning {
		t.Fatalf("submitted run = %+v", run)
	}

	final := waitTerminal(t, svc, run.ID)
	if final.Status != domain.RunStatusSuccess {
		t.Fatalf("final status = %v", final.Status)
	}
}

func TestSubmitRejectsInvalidConfig(t *testing.T) {
	svc, _, _ := testService(t)
	cases := []domain.RunConfig{
		{Name: "", Source: "uploads/a.csv"},
		{Name: "a", Source: "  "},
	}
	for _, cfg := range cases {
		if _, err := svc.Submit(context.Background(), cfg); !errors.Is(err, domain.ErrInvalidConfig) {
			t.Fatalf("Submit(%+v) err = %v, want ErrInvalidConfig", cfg, err)
		}
	}
}

func TestGetStatusReportsPendingAsRunning(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := testService(t)

	run := domain.Run{
		ID:        "run-1",
		Config:    domain.RunConfig{Name: "n", Source: "uploads/a.csv"},
		Status:    domain.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	nodes, err := engine.BuildPlan(run)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if err := store.CreateTasks(ctx, nodes); err != nil {
		t.Fatalf("CreateTasks: %v", err)
	}

	status, err := svc.GetStatus(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	for _, task := range status.Tasks {
		if task.Status == domain.TaskStatusPending {
			t.Fatalf("task %q surfaced as pending", task.Name)
		}
		if task.Status != domain.TaskStatusRunning {
			t.Fatalf("task %q status = %v", task.Name, task.Status)
		}
	}
}

func TestGetStatusUnknownRun(t *testing.T) {
	svc, _, _ := testService(t)
	if _, err := svc.GetStatus(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRerunCreatesIndependentRun(t *testing.T) {
	ctx := context.Background()
	svc, store, objects := testService(t)

	body := "Participant Name,Measurement\ns1,0.4\n"
	if err := objects.Put(ctx, "raw-data", "uploads/cohort.csv", strings.NewReader(body), int64(len(body)), "text/csv"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	first, err := svc.Submit(ctx, domain.RunConfig{Name: "cohort", Source: "uploads/cohort.csv"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitTerminal(t, svc, first.ID)

	second, err := svc.Rerun(ctx, first.ID)
	if err != nil {
		t.Fatalf("Rerun: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("rerun reused the original run id")
	}
	if second.Config != first.Config {
		t.Fatalf("rerun config = %+v, want %+v", second.Config, first.Config)
	}
	waitTerminal(t, svc, second.ID)

	all, err := store.ListRuns(ctx, repo.RunFilter{})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("run count = %d", len(all))
	}
}

func TestCorrectionDoesNotLeakIntoRerun(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	objects := objectstore.NewMemoryStore()
	buckets := objectstore.Config{
		Endpoint:        "localhost:9000",
		AccessKey:       "k",
		SecretKey:       "s",
		Region:          "us-east-1",
		BucketRaw:       "raw-data",
		BucketHarmonise: "harmonised-data",
	}
	led := ledger.New(store, store)
	index := ontology.Build([]domain.Entity{
		{ID: "MONDO:0004975", Name: "Alzheimer disease", Type: domain.EntityDisease, Synonyms: []string{"Alzheimer's disease"}},
		{ID: "MONDO:0005148", Name: "type 2 diabetes mellitus", Type: domain.EntityDisease},
	})
	registry := schemas.NewRegistry(store)
	_, err := registry.Create(ctx, domain.Schema{
		Name: "clinical",
		Columns: []domain.ColumnDefinition{
			{Name: "subject_id", DataType: domain.DataTypeString, Required: true, Aliases: []string{"Subject"}},
			{
				Name:        "condition",
				DataType:    domain.DataTypeEntity,
				EntityTypes: []domain.EntityType{domain.EntityDisease},
				MatchMode:   domain.MatchModeAuto,
				Required:    true,
				Aliases:     []string{"Disease"},
			},
		},
	})
	if err != nil {
		t.Fatalf("Create schema: %v", err)
	}
	aligner := align.New(resolver.New(index), led, nil)
	fetcher := ingest.NewFetcher(objects, buckets.BucketRaw)
	eng, err := engine.New(engine.Config{Concurrency: 2}, store, store, led,
		registry, aligner, fetcher, objects, buckets, nil)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	svc := New(store, store, eng, nil)

	body := "Subject,Disease\ns1,alzheimers\n"
	if err := objects.Put(ctx, "raw-data", "uploads/clinic.csv", strings.NewReader(body), int64(len(body)), "text/csv"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	first, err := svc.Submit(ctx, domain.RunConfig{Name: "clinic", Source: "uploads/clinic.csv"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if final := waitTerminal(t, svc, first.ID); final.Status != domain.RunStatusSuccess {
		t.Fatalf("first run status = %v", final.Status)
	}
	firstMappings, err := led.Mappings(ctx, first.ID)
	if err != nil {
		t.Fatalf("Mappings: %v", err)
	}
	if len(firstMappings) != 1 || firstMappings[0].EntityID != "MONDO:0004975" {
		t.Fatalf("first run mappings = %+v", firstMappings)
	}

	second, err := svc.Rerun(ctx, first.ID)
	if err != nil {
		t.Fatalf("Rerun: %v", err)
	}
	if final := waitTerminal(t, svc, second.ID); final.Status != domain.RunStatusSuccess {
		t.Fatalf("rerun status = %v", final.Status)
	}

	// Correcting the original run's mapping must leave the re-run's
	// mapping untouched.
	entity := domain.Entity{ID: "MONDO:0005148", Name: "type 2 diabetes mellitus", Type: domain.EntityDisease}
	if _, err := led.CorrectMapping(ctx, first.ID, firstMappings[0].MappingID, entity, "curator@example.org"); err != nil {
		t.Fatalf("CorrectMapping: %v", err)
	}

	corrected, err := led.Mappings(ctx, first.ID)
	if err != nil {
		t.Fatalf("Mappings after correction: %v", err)
	}
	if len(corrected) != 1 || corrected[0].EntityID != "MONDO:0005148" {
		t.Fatalf("corrected mappings = %+v", corrected)
	}
	rerunMappings, err := led.Mappings(ctx, second.ID)
	if err != nil {
		t.Fatalf("rerun Mappings: %v", err)
	}
	if len(rerunMappings) != 1 || rerunMappings[0].EntityID != "MONDO:0004975" {
		t.Fatalf("rerun mappings after correction = %+v", rerunMappings)
	}
	if rerunMappings[0].MappingID == firstMappings[0].MappingID {
		t.Fatal("rerun reused the original run's mapping id")
	}
}

func TestRerunUnknownRun(t *testing.T) {
	svc, _, _ := testService(t)
	if _, err := svc.Rerun(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCancelTerminalRunIsNoop(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := testService(t)

	now := time.Now().UTC()
	run := domain.Run{
		ID:        "run-1",
		Config:    domain.RunConfig{Name: "n", Source: "uploads/a.csv"},
		Status:    domain.RunStatusSuccess,
		StartedAt: now,
		EndedAt:   &now,
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := svc.Cancel(ctx, run.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != domain.RunStatusSuccess {
		t.Fatalf("status = %v", got.Status)
	}
}
