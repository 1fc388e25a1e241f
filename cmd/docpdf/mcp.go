package main

import (
	"context"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/docpdf/convert"
	"github.com/hazyhaar/docpdf/horosafe"
	"github.com/hazyhaar/docpdf/pdfops"
)

func cmdMCP(ctx context.Context, a *app, args []string) error {
	flags := newFlagSet(a, "mcp")
	root := flags.String("root", a.cfg.Serve.Root, "directory every tool path is confined to")
	if err := flags.Parse(args); err != nil {
		return err
	}
	absRoot, err := filepath.Abs(*root)
	if err != nil {
		return usagef("root: %v", err)
	}

	srv := newMCPServer(a.orchestrator(ctx), horosafe.Resolver{Root: absRoot})
	a.logger.Info("docpdf: mcp serving on stdio", "root", absRoot)
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func newMCPServer(o *convert.Orchestrator, paths horosafe.Resolver) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "docpdf", Version: version}, nil)
	pdfops.RegisterMCP(srv, paths)
	o.RegisterMCP(srv, paths)
	return srv
}
