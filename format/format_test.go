package format

import (
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		path  string
		class Class
	}{
		{"doc.pdf", ExistingPDF},
		{"DOC.PDF", ExistingPDF},
		{"photo.png", RasterImage},
		{"photo.JPG", RasterImage},
		{"photo.jpeg", RasterImage},
		{"anim.gif", RasterImage},
		{"scan.bmp", RasterImage},
		{"scan.tif", RasterImage},
		{"scan.tiff", RasterImage},
		{"photo.webp", RasterImage},
		{"notes.txt", PlainText},
		{"readme.md", PlainText},
		{"letter.rtf", RichText},
		{"page.html", HTML},
		{"page.htm", HTML},
		{"logo.svg", VectorSVG},
		{"report.doc", OfficeWord},
		{"report.docx", OfficeWord},
		{"sheet.xls", OfficeExcel},
		{"sheet.xlsx", OfficeExcel},
		{"deck.ppt", OfficePowerPoint},
		{"deck.pptx", OfficePowerPoint},
		{"text.odt", ODFText},
		{"calc.ods", ODFSpreadsheet},
		{"show.odp", ODFPresentation},
		{"/a/b.c/archive.zip", Unsupported},
		{"noext", Unsupported},
		{"", Unsupported},
		{".hidden", Unsupported},
	}

	for _, tt := range tests {
		if got := Classify(tt.path); got != tt.class {
			t.Errorf("Classify(%q) = %q, want %q", tt.path, got, tt.class)
		}
	}
}

func TestClassify_Consistent(t *testing.T) {
	// WHAT: every table extension classifies identically on repeated calls.
	// WHY: the dialog filter and dispatch read the same table; drift between
	// two calls would let them disagree.
	for _, ext := range Supported() {
		first := Classify("file" + ext)
		if first == Unsupported {
			t.Errorf("supported extension %q classified as unsupported", ext)
		}
		for i := 0; i < 3; i++ {
			if got := Classify("FILE" + strings.ToUpper(ext)); got != first {
				t.Fatalf("Classify(%q) inconsistent: %q vs %q", ext, got, first)
			}
		}
	}
}

func TestClassPredicates(t *testing.T) {
	for _, c := range Classes() {
		if c.IsOffice() && c.Drawable() {
			t.Errorf("%s is both office and drawable", c)
		}
	}
	if !ODFText.IsOffice() || !ODFText.IsODF() {
		t.Error("odf_text must be office and ODF")
	}
	if OfficeWord.IsODF() {
		t.Error("office_word is not ODF")
	}
	if HTML.Drawable() || ExistingPDF.Drawable() {
		t.Error("html and pdf are not drawn on the canvas")
	}
	if Unsupported.IsOffice() || Unsupported.Drawable() {
		t.Error("unsupported has no conversion path")
	}
}

func TestFileFilter(t *testing.T) {
	filters := FileFilter()
	if filters[0].Name != "All supported" {
		t.Fatalf("first filter = %q", filters[0].Name)
	}
	if len(filters[0].Patterns) != len(Supported()) {
		t.Fatalf("all-supported has %d patterns, want %d", len(filters[0].Patterns), len(Supported()))
	}

	// Every grouped pattern must classify as supported.
	seen := 0
	for _, f := range filters[1:] {
		for _, p := range f.Patterns {
			seen++
			if Classify("x"+strings.TrimPrefix(p, "*")) == Unsupported {
				t.Errorf("filter %q pattern %q is not classified", f.Name, p)
			}
		}
	}
	if seen != len(Supported()) {
		t.Errorf("grouped filters cover %d extensions, want %d", seen, len(Supported()))
	}
}
