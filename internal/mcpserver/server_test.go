package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/siphon/internal/builder"
	"github.com/starford/siphon/internal/storage"
	"github.com/starford/siphon/internal/testutil"
)

func testServer(t *testing.T, poems map[string]string) (*Server, *storage.FS) {
	t.Helper()
	return testServerWith(t, poems, builder.Options{})
}

func testServerWith(t *testing.T, poems map[string]string, opts builder.Options) (*Server, *storage.FS) {
	t.Helper()
	_, source := testutil.TestTree(t, poems)
	_, target := testutil.TestTree(t, nil)

	opts.SourceExtension = ".md"
	opts.TargetExtension = ".md"
	b := builder.New(source, target, testutil.TestDB(t), opts, testutil.Logger())
	return New(b), target
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// Handlers are called directly; mcp-go has no in-process call helper.
	var (
		result *mcp.CallToolResult
		err    error
	)
	switch name {
	case "list_collections":
		result, err = srv.listCollections(ctx, req)
	case "render_collection":
		result, err = srv.renderCollection(ctx, req)
	case "read_poem":
		result, err = srv.readPoem(ctx, req)
	case "parse_front_matter":
		result, err = srv.parseFrontMatter(ctx, req)
	case "build":
		result, err = srv.build(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestBuildThenListCollections(t *testing.T) {
	srv, target := testServer(t, map[string]string{
		"a.md": "---\npublish: true\ncollections: sea, summer\n---\n",
		"b.md": "---\npublish: true\ncollections:\n- sea\n---\n",
		"c.md": "---\npublish: false\ncollections: sea\n---\n",
	})

	r := callTool(t, srv, "build", nil)
	if r.IsError {
		t.Fatalf("build failed: %s", resultText(r))
	}
	if ok, _ := target.Exists("sea.md"); !ok {
		t.Error("sea.md should be written")
	}

	r = callTool(t, srv, "list_collections", nil)
	var got []collectionEntry
	if err := json.Unmarshal([]byte(resultText(r)), &got); err != nil {
		t.Fatalf("decode: %v (%s)", err, resultText(r))
	}
	if len(got) != 2 || got[0].Name != "sea" || got[1].Name != "summer" {
		t.Fatalf("collections = %+v", got)
	}
	if strings.Join(got[0].Members, ",") != "a,b" {
		t.Errorf("sea members = %v", got[0].Members)
	}
}

func TestListCollectionsEmpty(t *testing.T) {
	srv, _ := testServer(t, nil)
	r := callTool(t, srv, "list_collections", nil)
	if text := resultText(r); text != "no collections found" {
		t.Errorf("text = %q", text)
	}
}

func TestRenderCollection(t *testing.T) {
	srv, _ := testServer(t, map[string]string{
		"a.md": "---\npublish: true\ncollections: sea\n---\n",
	})
	callTool(t, srv, "build", nil)

	r := callTool(t, srv, "render_collection", map[string]interface{}{"name": "sea"})
	if r.IsError {
		t.Fatalf("render failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "poems:\n- a\n") {
		t.Errorf("rendered = %q", resultText(r))
	}
}

func TestRenderCollectionMissing(t *testing.T) {
	srv, _ := testServer(t, nil)
	r := callTool(t, srv, "render_collection", map[string]interface{}{"name": "nope"})
	if !r.IsError {
		t.Error("expected error for unknown collection")
	}
	r = callTool(t, srv, "render_collection", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing name")
	}
}

func TestReadPoem(t *testing.T) {
	poems := map[string]string{"a.md": "---\npublish: true\n---\n\nkept\n\n---\n\ndraft\n"}
	for _, clean := range []bool{true, false} {
		srv, _ := testServerWith(t, poems, builder.Options{CleanDrafts: clean})
		callTool(t, srv, "build", nil)

		r := callTool(t, srv, "read_poem", map[string]interface{}{"name": "a"})
		if r.IsError {
			t.Fatalf("read failed: %s", resultText(r))
		}
		if got := strings.Contains(resultText(r), "draft"); got == clean {
			t.Errorf("clean=%v: text = %q", clean, resultText(r))
		}
	}

	srv, _ := testServer(t, nil)
	if r := callTool(t, srv, "read_poem", map[string]interface{}{"name": "nope"}); !r.IsError {
		t.Error("expected error for unknown poem")
	}
}

func TestParseFrontMatter(t *testing.T) {
	srv, _ := testServer(t, nil)
	r := callTool(t, srv, "parse_front_matter", map[string]interface{}{
		"content": "---\ntime: 10:30\npublish: true\n---\n",
	})
	var got parsed
	if err := json.Unmarshal([]byte(resultText(r)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Fields) != 2 || got.Fields[0] != (field{Key: "time", Value: "10:30"}) {
		t.Errorf("fields = %+v", got.Fields)
	}
	if !got.Published {
		t.Error("should be published")
	}
}

func TestParseFrontMatterErrors(t *testing.T) {
	srv, _ := testServer(t, nil)
	for _, content := range []string{"no header", "---\n- orphan\n---\n", "---\nopen: true\n"} {
		r := callTool(t, srv, "parse_front_matter", map[string]interface{}{"content": content})
		if !r.IsError {
			t.Errorf("expected error for %q", content)
		}
	}
}

func TestFormatResource(t *testing.T) {
	srv, _ := testServer(t, nil)
	contents, err := srv.readFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != formatURI || !strings.Contains(tc.Text, "publish: true") {
		t.Errorf("resource = %+v", contents[0])
	}
}
