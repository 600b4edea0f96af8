package regress

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/regress/dbopen"
	"github.com/hazyhaar/regress/regress/internal/history"
)

var testImpl = &mcp.Implementation{Name: "regress-test", Version: "0.1.0"}

// mcpSession registers p's tools on a fresh server and returns a connected
// client session.
func mcpSession(t *testing.T, p *Pipeline) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testImpl, nil)
	p.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() {
		_ = srv.Run(ctx, serverT)
	}()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) *mcp.CallToolResult {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return result
}

// callText invokes a tool that must succeed and returns its JSON text.
func callText(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result := callTool(t, session, name, args)
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	return tc.Text
}

func TestMCP_GenerateThenCompare(t *testing.T) {
	cfg := testConfig(t)
	cfg.Report.Threshold = 10
	stub := &stubCapturer{}
	store, err := history.New(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatal(err)
	}
	p := New(cfg, stub, WithHistory(store), WithIDGenerator(seq("run_")))
	session := mcpSession(t, p)

	var gen generateResponse
	if err := json.Unmarshal([]byte(callText(t, session, "regress_generate", map[string]any{})), &gen); err != nil {
		t.Fatal(err)
	}
	if gen.RunID != "run_a" || gen.State != Done || len(gen.References) != 4 {
		t.Errorf("generate = %+v", gen)
	}

	stub.changed = map[string]bool{"http://example.test/": true}
	var cmp compareResponse
	if err := json.Unmarshal([]byte(callText(t, session, "regress_compare", map[string]any{})), &cmp); err != nil {
		t.Fatal(err)
	}
	if cmp.RunID != "run_b" || cmp.Average != 25 || cmp.Failed != 2 || len(cmp.Cells) != 4 {
		t.Errorf("compare = %+v", cmp)
	}
	for _, c := range cmp.Cells {
		if want := c.Scenario == "home"; c.Failed != want {
			t.Errorf("cell %s/%s failed = %v", c.Scenario, c.Viewport, c.Failed)
		}
	}
	if !strings.HasSuffix(cmp.Index, "index.html") {
		t.Errorf("index = %q", cmp.Index)
	}

	var runs []history.Run
	if err := json.Unmarshal([]byte(callText(t, session, "regress_history", map[string]any{"limit": 5})), &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "run_b" {
		t.Fatalf("history list = %+v", runs)
	}

	var run history.Run
	if err := json.Unmarshal([]byte(callText(t, session, "regress_history", map[string]any{"id": "run_b"})), &run); err != nil {
		t.Fatal(err)
	}
	if run.Failed != 2 || len(run.Cells) != 4 {
		t.Errorf("history get = %+v", run)
	}
}

func TestMCP_CompareWithoutReference(t *testing.T) {
	p := New(testConfig(t), &stubCapturer{})
	session := mcpSession(t, p)

	result := callTool(t, session, "regress_compare", map[string]any{})
	if result.GetError() == nil {
		t.Fatal("expected tool error")
	}
}

func TestMCP_HistoryNotConfigured(t *testing.T) {
	p := New(testConfig(t), &stubCapturer{})
	session := mcpSession(t, p)

	result := callTool(t, session, "regress_history", map[string]any{})
	err := result.GetError()
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("err = %v", err)
	}
}
