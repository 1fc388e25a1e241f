package convert

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/docpdf/horosafe"
	"github.com/hazyhaar/docpdf/kit"
)

// RegisterMCP registers the convert_* tools on an MCP server. Paths are
// resolved through paths before any file is touched.
func (o *Orchestrator) RegisterMCP(srv *mcp.Server, paths horosafe.Resolver) {
	o.registerConvertTool(srv, paths)
	o.registerPlanTool(srv, paths)
	o.registerFormatsTool(srv)
	o.registerConvertersTool(srv)
}

var propInputs = map[string]any{
	"type":        "array",
	"items":       map[string]any{"type": "string"},
	"description": "Input file paths, in output order",
}

// --- convert_files ---

type convertReq struct {
	Inputs    []string `json:"inputs"`
	Mode      string   `json:"mode"`
	Target    string   `json:"target"`
	Collision string   `json:"collision"`
}

func (o *Orchestrator) registerConvertTool(srv *mcp.Server, paths horosafe.Resolver) {
	tool := &mcp.Tool{
		Name: "convert_files",
		Description: "Convert documents, images, text, HTML, SVG and office files to PDF. " +
			"single_merged writes one PDF at target; separate_per_file writes one PDF per input into the target directory. " +
			"Failed inputs are listed in the report without stopping the others.",
		InputSchema: kit.InputSchema(map[string]any{
			"inputs": propInputs,
			"mode": map[string]any{
				"type": "string", "enum": []string{string(SingleMerged), string(SeparatePerFile)},
				"description": "Output mode (default single_merged)",
			},
			"target": map[string]any{"type": "string", "description": "Output PDF (single) or directory (separate)"},
			"collision": map[string]any{
				"type": "string", "enum": []string{string(CollisionRename), string(CollisionOverwrite), string(CollisionError)},
				"description": "Separate mode: what to do when an output name exists",
			},
		}, []string{"inputs", "target"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*convertReq)
		ins, err := paths.ResolveAll(r.Inputs)
		if err != nil {
			return nil, err
		}
		target, err := paths.Resolve(r.Target)
		if err != nil {
			return nil, err
		}
		report, err := o.Run(ctx, Job{
			Inputs:    ins,
			Mode:      Mode(r.Mode),
			Target:    target,
			Collision: Collision(r.Collision),
		})
		// A report with no successes is still the useful answer.
		if report != nil && (err == nil || errors.Is(err, ErrNoContent)) {
			return report, nil
		}
		return nil, err
	}
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[convertReq]())
}

// --- convert_plan ---

type planReq struct {
	Inputs []string `json:"inputs"`
}

func (o *Orchestrator) registerPlanTool(srv *mcp.Server, paths horosafe.Resolver) {
	tool := &mcp.Tool{
		Name:        "convert_plan",
		Description: "Classify input files and report how each would be converted, without converting.",
		InputSchema: kit.InputSchema(map[string]any{"inputs": propInputs}, []string{"inputs"}),
	}
	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*planReq)
		ins, err := paths.ResolveAll(r.Inputs)
		if err != nil {
			return nil, err
		}
		return o.Plan(ins), nil
	}
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[planReq]())
}

// --- convert_formats / convert_converters ---

func (o *Orchestrator) registerFormatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "convert_formats",
		Description: "List supported input formats, their extensions and handlers.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}
	endpoint := func(context.Context, any) (any, error) { return Formats(), nil }
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[struct{}]())
}

func (o *Orchestrator) registerConvertersTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "convert_converters",
		Description: "Report which external converters (browser, Word, Excel, PowerPoint, LibreOffice) are available.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}
	endpoint := func(context.Context, any) (any, error) { return o.Converters(), nil }
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[struct{}]())
}
