package internal

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/siphon/internal/builder"
	"github.com/starford/siphon/internal/sse"
	"github.com/starford/siphon/internal/testutil"
)

func testConfig(t *testing.T, poems map[string]string) *Config {
	t.Helper()
	dir := t.TempDir()
	for name, content := range poems {
		p := filepath.Join(dir, "poems", name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cfg := NewDefaultConfig()
	cfg.Source.Path = filepath.Join(dir, "poems")
	cfg.Target.Path = filepath.Join(dir, "collections")
	cfg.SQLite.Path = filepath.Join(dir, "siphon.db")
	return cfg
}

func TestRun_WritesCollections(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"2021-05-30.md": "---\ncollections: sample\npublish: true\n---\n\nducky\n",
		"draft.md":      "---\ncollections: sample\npublish: false\n---\n",
	})
	var logs bytes.Buffer

	report, err := Run(context.Background(), WithConfig(cfg), WithLogOutput(&logs))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Published != 1 || len(report.Outputs) != 1 {
		t.Fatalf("report = %+v", report)
	}
	data, err := os.ReadFile(filepath.Join(cfg.Target.Path, "sample.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "poems:\n- 2021-05-30\n") {
		t.Errorf("collection = %q", data)
	}
	if !strings.Contains(logs.String(), `"msg":"build finished"`) {
		t.Errorf("expected JSON build log, got %q", logs.String())
	}

	idx, err := Collections(context.Background(), WithConfig(cfg), WithLogOutput(&logs))
	if err != nil {
		t.Fatalf("Collections: %v", err)
	}
	if got := idx.Members("sample"); len(got) != 1 || got[0] != "2021-05-30" {
		t.Errorf("stored members = %v", got)
	}
}

func TestRun_TargetInsideSource(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"a.md": "---\ncollections: sea\npublish: true\n---\n",
	})
	cfg.Target.Path = filepath.Join(cfg.Source.Path, "collections")

	for i := 0; i < 2; i++ {
		report, err := Run(context.Background(), WithConfig(cfg), WithLogOutput(&bytes.Buffer{}))
		if err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
		if report.Documents != 1 {
			t.Errorf("run %d read %d documents; output must not be read back", i, report.Documents)
		}
	}
}

func TestRun_RequiresConfig(t *testing.T) {
	if _, err := Run(context.Background()); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestPublishing_AnnouncesBuild(t *testing.T) {
	_, source := testutil.TestTree(t, map[string]string{
		"a.md": "---\ncollections: sea\npublish: true\n---\n",
	})
	_, target := testutil.TestTree(t, nil)
	b := builder.New(source, target, testutil.TestDB(t), builder.Options{
		SourceExtension: ".md",
		TargetExtension: ".md",
	}, testutil.Logger())

	events := sse.NewBroker(time.Minute)
	defer events.Close()
	ch := events.Subscribe()
	defer events.Unsubscribe(ch)

	if _, err := (publishing{Builder: b, events: events}).Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}

	seen := map[string]bool{}
	timeout := time.After(time.Second)
	for len(seen) < 3 {
		select {
		case msg := <-ch:
			line, _, _ := strings.Cut(string(msg), "\n")
			seen[strings.TrimPrefix(line, "event: ")] = true
		case <-timeout:
			t.Fatalf("events seen = %v", seen)
		}
	}
	for _, typ := range []string{sse.TypeCollectionUpdated, sse.TypeIndexChanged, sse.TypeBuildFinished} {
		if !seen[typ] {
			t.Errorf("missing %s", typ)
		}
	}
}
