package regress

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/regress/kit"
)

// RegisterMCP registers the regress tools on an MCP server.
func (p *Pipeline) RegisterMCP(srv *mcp.Server) {
	p.registerGenerateTool(srv)
	p.registerCompareTool(srv)
	p.registerHistoryTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (p *Pipeline) endpoint(name string, ep kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.Logging(p.logger, name))(ep)
}

// --- generate ---

type generateResponse struct {
	RunID      string   `json:"run_id"`
	State      State    `json:"state"`
	References []string `json:"references"`
}

func (p *Pipeline) registerGenerateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "regress_generate",
		Description: "Capture reference screenshots for every configured scenario and viewport.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		out, err := p.Run(ctx, true)
		if err != nil {
			return nil, err
		}
		return &generateResponse{RunID: out.RunID, State: out.State, References: out.ReferencePaths}, nil
	}

	kit.RegisterMCPTool(srv, tool, p.endpoint(tool.Name, endpoint), kit.DecodeArgs[struct{}])
}

// --- compare ---

type cellResponse struct {
	Scenario string  `json:"scenario"`
	Viewport string  `json:"viewport"`
	File     string  `json:"file"`
	Mismatch float64 `json:"mismatch"`
	Failed   bool    `json:"failed"`
}

type compareResponse struct {
	RunID     string         `json:"run_id"`
	State     State          `json:"state"`
	Average   float64        `json:"average"`
	Threshold float64        `json:"threshold"`
	Failed    int            `json:"failed"`
	Index     string         `json:"index"`
	Cells     []cellResponse `json:"cells"`
}

func (p *Pipeline) registerCompareTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "regress_compare",
		Description: "Capture actual screenshots, diff them against the references and render the report. Returns the average mismatch and per-cell results.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		out, err := p.Run(ctx, false)
		if err != nil {
			return nil, err
		}
		d := out.Report
		resp := &compareResponse{
			RunID:     out.RunID,
			State:     out.State,
			Average:   d.AverageMismatch,
			Threshold: d.Threshold,
			Failed:    d.Failed,
			Index:     out.IndexPath,
		}
		for _, r := range d.FlatResults {
			resp.Cells = append(resp.Cells, cellResponse{
				Scenario: r.Scenario.Name(),
				Viewport: r.Viewport.Name,
				File:     r.File,
				Mismatch: r.MismatchPercentage,
				Failed:   d.IsFailed(r),
			})
		}
		return resp, nil
	}

	kit.RegisterMCPTool(srv, tool, p.endpoint(tool.Name, endpoint), kit.DecodeArgs[struct{}])
}

// --- history ---

type historyRequest struct {
	ID    string `json:"id,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

func (p *Pipeline) registerHistoryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "regress_history",
		Description: "List recent regress runs, or return one run with its cells when id is given.",
		InputSchema: inputSchema(map[string]any{
			"id":    map[string]any{"type": "string", "description": "Run ID (run_...)"},
			"limit": map[string]any{"type": "integer", "description": "Max runs to list (default 20)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		if p.store == nil {
			return nil, fmt.Errorf("history is not configured")
		}
		r := req.(historyRequest)
		if r.ID != "" {
			return p.store.Get(ctx, r.ID)
		}
		return p.store.List(ctx, r.Limit)
	}

	kit.RegisterMCPTool(srv, tool, p.endpoint(tool.Name, endpoint), kit.DecodeArgs[historyRequest])
}
