package pdfops

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/docpdf/horosafe"
	"github.com/hazyhaar/docpdf/kit"
)

// RegisterMCP registers the pdf_* tools on an MCP server. Every path
// argument is resolved through paths, which may confine it to a root.
func RegisterMCP(srv *mcp.Server, paths horosafe.Resolver) {
	registerPageCountTool(srv, paths)
	registerMergeTool(srv, paths)
	registerDeleteTool(srv, paths)
	registerExtractTool(srv, paths)
	registerSplitTool(srv, paths)
	registerProtectTool(srv, paths)
}

var (
	propInput  = map[string]any{"type": "string", "description": "Input PDF path"}
	propOutput = map[string]any{"type": "string", "description": "Output PDF path"}
	propPages  = map[string]any{"type": "string", "description": `Page selection, 1-based: "1,3-5"`}
)

// --- pdf_page_count ---

type pageCountReq struct {
	Input string `json:"input"`
}

func registerPageCountTool(srv *mcp.Server, paths horosafe.Resolver) {
	tool := &mcp.Tool{
		Name:        "pdf_page_count",
		Description: "Count the pages of a PDF file.",
		InputSchema: kit.InputSchema(map[string]any{"input": propInput}, []string{"input"}),
	}
	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*pageCountReq)
		in, err := paths.Resolve(r.Input)
		if err != nil {
			return nil, err
		}
		n, err := PageCount(in)
		if err != nil {
			return nil, err
		}
		return map[string]any{"pages": n}, nil
	}
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[pageCountReq]())
}

// --- pdf_merge ---

type mergeReq struct {
	Inputs []string `json:"inputs"`
	Output string   `json:"output"`
}

func registerMergeTool(srv *mcp.Server, paths horosafe.Resolver) {
	tool := &mcp.Tool{
		Name:        "pdf_merge",
		Description: "Concatenate PDF files, in the given order, into one PDF.",
		InputSchema: kit.InputSchema(map[string]any{
			"inputs": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "PDF paths in order"},
			"output": propOutput,
		}, []string{"inputs", "output"}),
	}
	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*mergeReq)
		ins, err := paths.ResolveAll(r.Inputs)
		if err != nil {
			return nil, err
		}
		out, err := paths.Resolve(r.Output)
		if err != nil {
			return nil, err
		}
		if err := Merge(ins, out); err != nil {
			return nil, err
		}
		n, _ := PageCount(out)
		return map[string]any{"output": out, "pages": n}, nil
	}
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[mergeReq]())
}

// --- pdf_delete_pages / pdf_extract_pages ---

type pagesReq struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	Pages  string `json:"pages"`
}

func pagesEndpoint(paths horosafe.Resolver, op func(in, out, spec string) (int, error), key string) kit.Endpoint {
	return func(_ context.Context, req any) (any, error) {
		r := req.(*pagesReq)
		in, err := paths.Resolve(r.Input)
		if err != nil {
			return nil, err
		}
		out, err := paths.Resolve(r.Output)
		if err != nil {
			return nil, err
		}
		n, err := op(in, out, r.Pages)
		if err != nil {
			return nil, err
		}
		return map[string]any{"output": out, key: n}, nil
	}
}

func pagesSchema() map[string]any {
	return kit.InputSchema(map[string]any{
		"input": propInput, "output": propOutput, "pages": propPages,
	}, []string{"input", "output", "pages"})
}

func registerDeleteTool(srv *mcp.Server, paths horosafe.Resolver) {
	tool := &mcp.Tool{
		Name:        "pdf_delete_pages",
		Description: "Write a copy of a PDF without the selected pages.",
		InputSchema: pagesSchema(),
	}
	kit.RegisterMCPTool(srv, tool, pagesEndpoint(paths, DeletePages, "removed"), kit.DecodeArgs[pagesReq]())
}

func registerExtractTool(srv *mcp.Server, paths horosafe.Resolver) {
	tool := &mcp.Tool{
		Name:        "pdf_extract_pages",
		Description: "Write the selected pages of a PDF to a new PDF.",
		InputSchema: pagesSchema(),
	}
	kit.RegisterMCPTool(srv, tool, pagesEndpoint(paths, ExtractPages, "kept"), kit.DecodeArgs[pagesReq]())
}

// --- pdf_split ---

type splitReq struct {
	Input  string `json:"input"`
	OutDir string `json:"out_dir"`
	Pages  string `json:"pages"`
}

func registerSplitTool(srv *mcp.Server, paths horosafe.Resolver) {
	tool := &mcp.Tool{
		Name:        "pdf_split",
		Description: "Write each selected page (default: all) of a PDF to its own file.",
		InputSchema: kit.InputSchema(map[string]any{
			"input":   propInput,
			"out_dir": map[string]any{"type": "string", "description": "Directory for the page files"},
			"pages":   propPages,
		}, []string{"input", "out_dir"}),
	}
	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*splitReq)
		in, err := paths.Resolve(r.Input)
		if err != nil {
			return nil, err
		}
		dir, err := paths.Resolve(r.OutDir)
		if err != nil {
			return nil, err
		}
		files, err := Split(in, dir, r.Pages)
		if err != nil {
			return nil, err
		}
		return map[string]any{"files": files}, nil
	}
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[splitReq]())
}

// --- pdf_protect ---

type protectReq struct {
	Input         string `json:"input"`
	Output        string `json:"output"`
	UserPassword  string `json:"user_password"`
	OwnerPassword string `json:"owner_password"`
}

func registerProtectTool(srv *mcp.Server, paths horosafe.Resolver) {
	tool := &mcp.Tool{
		Name:        "pdf_protect",
		Description: "Encrypt a PDF with AES-256 so it needs a password to open.",
		InputSchema: kit.InputSchema(map[string]any{
			"input":          propInput,
			"output":         propOutput,
			"user_password":  map[string]any{"type": "string", "description": "Password required to open"},
			"owner_password": map[string]any{"type": "string", "description": "Permissions password (default: user password)"},
		}, []string{"input", "output", "user_password"}),
	}
	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*protectReq)
		in, err := paths.Resolve(r.Input)
		if err != nil {
			return nil, err
		}
		out, err := paths.Resolve(r.Output)
		if err != nil {
			return nil, err
		}
		if err := Protect(in, out, r.UserPassword, r.OwnerPassword); err != nil {
			return nil, err
		}
		return map[string]any{"output": out}, nil
	}
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[protectReq]())
}
