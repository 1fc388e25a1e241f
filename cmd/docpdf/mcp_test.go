package main

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/docpdf/convert"
	"github.com/hazyhaar/docpdf/horosafe"
	"github.com/hazyhaar/docpdf/office"
)

func TestMCPServer_Tools(t *testing.T) {
	// WHAT: the stdio server exposes both the pdf_* and the convert_* tools.
	o := convert.New(convert.Config{TempDir: t.TempDir(), Logger: quietLogger}, office.Availability{})
	defer o.Close()
	srv := newMCPServer(o, horosafe.Resolver{Root: t.TempDir()})

	ctx := context.Background()
	serverT, clientT := mcp.NewInMemoryTransports()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(&mcp.Implementation{Name: "docpdf-test", Version: "0.1.0"}, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer session.Close()

	res, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		t.Fatal(err)
	}
	have := map[string]bool{}
	for _, tool := range res.Tools {
		have[tool.Name] = true
	}
	for _, name := range []string{"pdf_merge", "pdf_split", "pdf_protect", "convert_files", "convert_formats"} {
		if !have[name] {
			t.Errorf("tool %s not registered", name)
		}
	}
}
