package history_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"offsettweak/internal/chart"
	"offsettweak/internal/history"
	"offsettweak/internal/locator"
	"offsettweak/internal/tweak"
)

func mustOpen(t *testing.T, path string) *history.Store {
	t.Helper()

	store, err := history.Open(path)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func openRaw(t *testing.T, path string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	return db
}

func TestAppendAndRecent(t *testing.T) {
	store := mustOpen(t, filepath.Join(t.TempDir(), "nested", "history.db"))
	ctx := context.Background()

	first := history.Commit{
		RunID:        "run-1",
		Root:         "/lib",
		Pack:         "Pack A",
		LedgerDir:    "/lib/Pack A",
		LedgerAction: "saved",
		Delta:        0.009,
		Precision:    3,
		CommittedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Changes: []history.Change{
			{Song: "S1", File: "s1.ssc", Path: "/lib/Pack A/S1/s1.ssc", Previous: "#OFFSET:-0.050;", Current: "#OFFSET:-0.041;", Encoding: "UTF-8"},
			{Song: "S2", File: "s2.sm", Path: "/lib/Pack A/S2/s2.sm", Previous: "#OFFSET:0.100;", Current: "#OFFSET:0.109;", Encoding: "ISO-8859-1", Reencoded: true},
		},
	}
	if _, err := store.Append(ctx, first); err != nil {
		t.Fatalf("Append first: %v", err)
	}
	second := history.Commit{RunID: "run-2", Root: "/lib", Pack: "Pack B", LedgerDir: "/lib/Pack B", LedgerAction: "cleared"}
	id, err := store.Append(ctx, second)
	if err != nil {
		t.Fatalf("Append second: %v", err)
	}
	if id == 0 {
		t.Fatal("expected commit id to be assigned")
	}

	commits, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(commits))
	}
	if commits[0].Pack != "Pack B" || commits[1].Pack != "Pack A" {
		t.Fatalf("expected newest first, got %q then %q", commits[0].Pack, commits[1].Pack)
	}
	if commits[0].CommittedAt.IsZero() {
		t.Fatal("expected zero CommittedAt to be stamped")
	}
	if len(commits[0].Changes) != 0 {
		t.Fatalf("expected cleared commit without changes, got %d", len(commits[0].Changes))
	}

	got := commits[1]
	if !got.CommittedAt.Equal(first.CommittedAt) {
		t.Fatalf("CommittedAt = %v, want %v", got.CommittedAt, first.CommittedAt)
	}
	if got.Delta != 0.009 || got.Precision != 3 || got.LedgerAction != "saved" {
		t.Fatalf("unexpected commit fields: %#v", got)
	}
	if len(got.Changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(got.Changes))
	}
	if got.Changes[0].Current != "#OFFSET:-0.041;" || got.Changes[0].Reencoded {
		t.Fatalf("unexpected first change: %#v", got.Changes[0])
	}
	if !got.Changes[1].Reencoded || got.Changes[1].Encoding != "ISO-8859-1" {
		t.Fatalf("unexpected second change: %#v", got.Changes[1])
	}

	limited, err := store.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent limited: %v", err)
	}
	if len(limited) != 1 || limited[0].RunID != "run-2" {
		t.Fatalf("unexpected limited result: %#v", limited)
	}
}

func TestReopenKeepsCommits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	if _, err := store.Append(context.Background(), history.Commit{RunID: "run-1", Pack: "P", LedgerAction: "saved"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := mustOpen(t, path)
	commits, err := reopened.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(commits) != 1 || commits[0].RunID != "run-1" {
		t.Fatalf("unexpected commits after reopen: %#v", commits)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := history.Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestRecorderMapsEngineCommit(t *testing.T) {
	store := mustOpen(t, filepath.Join(t.TempDir(), "history.db"))
	recorder := history.NewRecorder(store)

	changed := tweak.Record{
		File:      locator.SongFile{Pack: "Pack", Song: "Song", File: "song.ssc", Path: "/lib/Pack/Song/song.ssc"},
		Baseline:  -0.05,
		Current:   -0.05,
		Precision: 3,
		Final:     -0.041,
	}
	unchanged := tweak.Record{
		File:      locator.SongFile{Pack: "Pack", Song: "Other", File: "other.sm", Path: "/lib/Pack/Other/other.sm"},
		Baseline:  0.2,
		Current:   0.209,
		Precision: 4,
		Final:     0.209,
	}
	batch := &tweak.Batch{Pack: "Pack", Label: "Pack", Dir: "/lib/Pack", Delta: 0.009, Records: []tweak.Record{changed, unchanged}}
	commit := tweak.Commit{
		RunID:  "run-9",
		Root:   "/lib",
		Batch:  batch,
		Ledger: tweak.LedgerSaved,
		Patched: []chart.PatchResult{{
			Path:     changed.File.Path,
			Encoding: "UTF-8",
			Previous: "#OFFSET:-0.050;",
			Current:  "#OFFSET:-0.0410;",
			Changed:  true,
		}},
	}
	if err := recorder.Record(context.Background(), commit); err != nil {
		t.Fatalf("Record: %v", err)
	}

	commits, err := store.Recent(context.Background(), 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(commits) != 1 {
		t.Fatalf("expected 1 commit, got %d", len(commits))
	}
	got := commits[0]
	if got.RunID != "run-9" || got.Pack != "Pack" || got.LedgerDir != "/lib/Pack" || got.LedgerAction != "saved" {
		t.Fatalf("unexpected commit: %#v", got)
	}
	if got.Precision != 4 {
		t.Fatalf("Precision = %d, want 4", got.Precision)
	}
	if len(got.Changes) != 1 || got.Changes[0].Song != "Song" || got.Changes[0].File != "song.ssc" {
		t.Fatalf("unexpected changes: %#v", got.Changes)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var recorder *history.Recorder
	if err := recorder.Record(context.Background(), tweak.Commit{}); err != nil {
		t.Fatalf("expected nil recorder to be a no-op, got %v", err)
	}
}

func TestSchemaMismatchIsReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store := mustOpen(t, path)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db := openRaw(t, path)
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	_, err := history.Open(path)
	if !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
