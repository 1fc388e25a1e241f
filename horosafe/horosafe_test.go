package horosafe

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestSafePath(t *testing.T) {
	tests := []struct {
		base, input string
		wantErr     bool
	}{
		{"/data/work", "in/report.docx", false},
		{"/data/work", "../etc/passwd", true},
		{"/data/work", "abc/../def", true},
		{"/data/work", "abc/../../outside", true},
		{"/data/work", "notes..v2.txt", false},
		{"/data/work", "/data/work/out.pdf", false},
		{"/data/work", "/data/workshop/out.pdf", true},
		{"/data/work", "/etc/passwd", true},
		{"/data/work", "", true},
	}
	for _, tt := range tests {
		_, err := SafePath(tt.base, tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("SafePath(%q, %q) error=%v, wantErr=%v", tt.base, tt.input, err, tt.wantErr)
		}
	}
}

func TestSafePath_Result(t *testing.T) {
	got, err := SafePath("/data/work", "in/./a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join("/data/work", "in", "a.pdf") {
		t.Fatalf("got %q", got)
	}
}

func TestResolver(t *testing.T) {
	r := Resolver{Root: "/srv/docs"}
	if _, err := r.Resolve("../x"); !errors.Is(err, ErrPathTraversal) {
		t.Fatalf("err = %v, want ErrPathTraversal", err)
	}
	paths, err := r.ResolveAll([]string{"a.txt", "sub/b.png"})
	if err != nil {
		t.Fatal(err)
	}
	if paths[1] != filepath.Join("/srv/docs", "sub", "b.png") {
		t.Fatalf("paths = %v", paths)
	}
	if _, err := r.ResolveAll([]string{"ok.txt", "/elsewhere"}); !errors.Is(err, ErrPathTraversal) {
		t.Fatalf("err = %v, want ErrPathTraversal", err)
	}

	var open Resolver
	abs, err := open.Resolve("rel.txt")
	if err != nil || !filepath.IsAbs(abs) {
		t.Fatalf("unconfined Resolve = %q, %v", abs, err)
	}
}

func TestValidateIdentifier(t *testing.T) {
	if err := ValidateIdentifier("job_0190a1b2-c3d4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateIdentifier("../etc/passwd"); err == nil {
		t.Fatal("expected error for path traversal chars")
	}
	if err := ValidateIdentifier(""); err == nil {
		t.Fatal("expected error for empty identifier")
	}
	if err := ValidateIdentifier("has spaces"); err == nil {
		t.Fatal("expected error for spaces")
	}
	long := strings.Repeat("a", 257)
	if err := ValidateIdentifier(long); err == nil {
		t.Fatal("expected error for long identifier")
	}
}

func TestLimitedReadAll(t *testing.T) {
	data := strings.Repeat("x", 100)
	got, err := LimitedReadAll(strings.NewReader(data), 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("expected 100 bytes, got %d", len(got))
	}

	_, err = LimitedReadAll(strings.NewReader(data), 50)
	if err == nil {
		t.Fatal("expected error for oversized read")
	}
}
