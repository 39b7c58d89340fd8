package index

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/siphon/internal/apperr"
	"github.com/starford/siphon/internal/collection"
	"github.com/starford/siphon/internal/models"
	"github.com/starford/siphon/internal/storage"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "siphon-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM poems`).Scan(&count); err != nil {
		t.Fatalf("poems table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM memberships`).Scan(&count); err != nil {
		t.Fatalf("memberships table missing: %v", err)
	}
}

func TestOpen_Memory(t *testing.T) {
	db, err := Open(MemoryDSN)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	if err := db.UpsertPoems([]models.Poem{{Path: "a.md", Checksum: "1"}}); err != nil {
		t.Fatalf("UpsertPoems: %v", err)
	}
	if _, err := db.GetPoem("a.md"); err != nil {
		t.Errorf("GetPoem: %v", err)
	}
}

func TestUpsertAndGetPoem(t *testing.T) {
	db := testDB(t)
	in := models.Poem{
		Path:        "2021-05-30.md",
		Checksum:    "abc123",
		Published:   true,
		Collections: []string{"sample", "other"},
		UpdatedAt:   time.Now(),
	}
	if err := db.UpsertPoems([]models.Poem{in}); err != nil {
		t.Fatalf("UpsertPoems: %v", err)
	}
	got, err := db.GetPoem("2021-05-30.md")
	if err != nil {
		t.Fatalf("GetPoem: %v", err)
	}
	if got.Checksum != "abc123" || !got.Published {
		t.Errorf("poem = %+v", got)
	}
	if !reflect.DeepEqual(got.Collections, []string{"sample", "other"}) {
		t.Errorf("collections = %v", got.Collections)
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertPoems([]models.Poem{{Path: "up.md", Checksum: "1", Published: true}})
	_ = db.UpsertPoems([]models.Poem{{Path: "up.md", Checksum: "2", Published: false}})

	got, err := db.GetPoem("up.md")
	if err != nil {
		t.Fatal(err)
	}
	if got.Checksum != "2" || got.Published {
		t.Errorf("poem = %+v", got)
	}
}

func TestGetPoem_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetPoem("nope.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestDeletePoem(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertPoems([]models.Poem{{Path: "del.md", Checksum: "x"}})
	if err := db.DeletePoem("del.md"); err != nil {
		t.Fatalf("DeletePoem: %v", err)
	}
	sums, _ := db.AllChecksums()
	if _, ok := sums["del.md"]; ok {
		t.Error("deleted poem still cataloged")
	}
}

func TestMembershipsRoundTrip(t *testing.T) {
	db := testDB(t)
	idx := collection.Aggregate("a", []string{"zeta", "alpha"}, nil)
	idx = collection.Aggregate("b", []string{"zeta"}, idx)

	if err := db.ReplaceMemberships(idx); err != nil {
		t.Fatalf("ReplaceMemberships: %v", err)
	}
	got, err := db.Collections()
	if err != nil {
		t.Fatalf("Collections: %v", err)
	}
	if !reflect.DeepEqual(got.Names(), []string{"zeta", "alpha"}) {
		t.Errorf("names = %v", got.Names())
	}
	if !reflect.DeepEqual(got.Members("zeta"), []string{"a", "b"}) {
		t.Errorf("zeta = %v", got.Members("zeta"))
	}

	of, err := db.CollectionsOf("a")
	if err != nil {
		t.Fatalf("CollectionsOf: %v", err)
	}
	if !reflect.DeepEqual(of, []string{"zeta", "alpha"}) {
		t.Errorf("collections of a = %v", of)
	}

	if err := db.ReplaceMemberships(collection.NewIndex()); err != nil {
		t.Fatal(err)
	}
	got, _ = db.Collections()
	if got.Len() != 0 {
		t.Errorf("memberships not replaced: %v", got.Names())
	}
}

func analyzeStub(calls *atomic.Int32) AnalyzeFunc {
	return func(path string, data []byte) (models.Poem, error) {
		calls.Add(1)
		text := string(data)
		if strings.HasPrefix(text, "bad") {
			return models.Poem{}, errors.New("bad document")
		}
		return models.Poem{Published: true, Collections: strings.Fields(text)}, nil
	}
}

func TestSync_OrderCacheAndStale(t *testing.T) {
	db := testDB(t)
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	_ = store.Write("c.md", []byte("x"))
	_ = store.Write("a.md", []byte("x y"))
	_ = store.Write("b.md", []byte("bad"))
	_ = store.Write("out/skip.md", []byte("x"))

	var calls atomic.Int32
	opts := SyncOptions{Extension: ".md", Workers: 4, Skip: func(p string) bool { return strings.HasPrefix(p, "out/") }}

	poems, err := Sync(context.Background(), db, store, analyzeStub(&calls), opts, quietLogger())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	var paths []string
	for _, p := range poems {
		paths = append(paths, p.Path)
	}
	if !reflect.DeepEqual(paths, []string{"a.md", "c.md"}) {
		t.Errorf("paths = %v, want [a.md c.md]", paths)
	}
	if calls.Load() != 3 {
		t.Errorf("analyze calls = %d, want 3", calls.Load())
	}

	// Second run serves unchanged documents from the catalog.
	calls.Store(0)
	_ = os.Remove(store.Root() + string(os.PathSeparator) + "c.md")
	poems, err = Sync(context.Background(), db, store, analyzeStub(&calls), opts, quietLogger())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if calls.Load() != 1 { // b.md is never cataloged, so it is retried
		t.Errorf("analyze calls = %d, want 1", calls.Load())
	}
	if len(poems) != 1 || !reflect.DeepEqual(poems[0].Collections, []string{"x", "y"}) {
		t.Errorf("poems = %+v", poems)
	}
	sums, _ := db.AllChecksums()
	if _, ok := sums["c.md"]; ok {
		t.Error("stale c.md not removed")
	}
}

func TestSync_CancelledContext(t *testing.T) {
	db := testDB(t)
	store, _ := storage.NewFS(t.TempDir())
	_ = store.Write("a.md", []byte("x"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	if _, err := Sync(ctx, db, store, analyzeStub(&calls), SyncOptions{Extension: ".md"}, quietLogger()); err == nil {
		t.Error("expected context error")
	}
}
