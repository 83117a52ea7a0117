package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cognicore/nerlink/pkg/nerlink/store"
)

func openTestStore(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id, dataset string, started time.Time) store.Run {
	return store.Run{
		ID:         id,
		Dataset:    dataset,
		Model:      "gemma3:4b",
		Mode:       "mention",
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Total:      144,
		Successful: 140,
		Failed:     4,
		OutputPath: "results/" + dataset + "_gemma3_4b_results.json",
	}
}

func TestRecordAndGetRun(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	want := sampleRun("01HXYZ", "KORE50", time.Now().UTC().Truncate(time.Millisecond))
	if err := s.RecordRun(ctx, want); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	got, ok, err := s.GetRun(ctx, "01HXYZ")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if !ok {
		t.Fatal("expected run to be found")
	}
	if !got.StartedAt.Equal(want.StartedAt) || !got.FinishedAt.Equal(want.FinishedAt) {
		t.Errorf("timestamps lost: %+v vs %+v", got, want)
	}
	got.StartedAt, got.FinishedAt = want.StartedAt, want.FinishedAt
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestGetRunMissing(t *testing.T) {
	s := openTestStore(t)
	if _, ok, err := s.GetRun(context.Background(), "missing"); err != nil || ok {
		t.Errorf("expected not found without error, got ok=%v err=%v", ok, err)
	}
}

func TestRecordRunReplacesByID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	r := sampleRun("01A", "KORE50", time.Now().UTC())
	if err := s.RecordRun(ctx, r); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	r.Successful = 99
	if err := s.RecordRun(ctx, r); err != nil {
		t.Fatalf("RecordRun replace: %v", err)
	}

	runs, err := s.ListRuns(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Successful != 99 {
		t.Errorf("expected single replaced run, got %+v", runs)
	}
}

func TestListRunsOrderFilterLimit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	base := time.Now().UTC()
	s.RecordRun(ctx, sampleRun("01A", "KORE50", base))
	s.RecordRun(ctx, sampleRun("01B", "MSNBCt", base.Add(time.Hour)))
	s.RecordRun(ctx, sampleRun("01C", "KORE50", base.Add(2*time.Hour)))

	runs, err := s.ListRuns(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "01C" || runs[2].ID != "01A" {
		t.Fatalf("expected newest first, got %+v", runs)
	}

	runs, err = s.ListRuns(ctx, "KORE50", 0)
	if err != nil {
		t.Fatalf("ListRuns filtered: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 KORE50 runs, got %d", len(runs))
	}

	runs, err = s.ListRuns(ctx, "", 2)
	if err != nil {
		t.Fatalf("ListRuns limited: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "01C" {
		t.Errorf("expected 2 newest runs, got %+v", runs)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.RecordRun(ctx, sampleRun("01A", "KORE50", time.Now().UTC())); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	s.Close()

	// Reopening an existing database must keep its rows.
	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	if _, ok, err := s.GetRun(ctx, "01A"); err != nil || !ok {
		t.Errorf("expected run to survive reopen, ok=%v err=%v", ok, err)
	}
}
