package canvas

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"utf8", []byte("héllo"), "héllo"},
		{"utf8 bom", []byte("\xEF\xBB\xBFhi"), "hi"},
		{"utf16le bom", []byte{0xFF, 0xFE, 'h', 0, 'i', 0}, "hi"},
		{"utf16be bom", []byte{0xFE, 0xFF, 0, 'h', 0, 'i'}, "hi"},
		{"cp1252 fallback", []byte{'c', 'a', 'f', 0xE9}, "café"},
		{"cp1252 euro", []byte{0x80}, "€"},
	}
	for _, tt := range tests {
		got, err := Decode(tt.in, "windows-1252")
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestDecode_UnknownFallback(t *testing.T) {
	if _, err := Decode([]byte{0xE9}, "no-such-charset"); err == nil {
		t.Fatal("expected error for unknown fallback encoding")
	}
}

func TestLayout_Pagination(t *testing.T) {
	// WHAT: pagination is a pure function of line capacity.
	// WHY: identical input must always yield identical page breaks.
	cv := New(Config{})
	per := cv.LinesPerPage()
	if per < 10 {
		t.Fatalf("LinesPerPage = %d, suspiciously small", per)
	}

	lines := make([]string, per+1)
	for i := range lines {
		lines[i] = "line"
	}
	pages := cv.Layout(strings.Join(lines, "\n"))
	if len(pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(pages))
	}
	if len(pages[0]) != per || len(pages[1]) != 1 {
		t.Fatalf("page sizes = %d,%d want %d,1", len(pages[0]), len(pages[1]), per)
	}

	again := cv.Layout(strings.Join(lines, "\n"))
	if len(again) != len(pages) || len(again[0]) != len(pages[0]) {
		t.Fatal("layout not deterministic")
	}
}

func TestLayout_Wrap(t *testing.T) {
	cv := New(Config{})
	long := strings.Repeat("word ", 200)
	pages := cv.Layout(long)

	_, _, aw, _ := cv.area()
	total := 0
	for _, p := range pages {
		for _, l := range p {
			total++
			if w := cv.pdf.GetStringWidth(l); w > aw+0.01 {
				t.Fatalf("line %q is %v wide, area is %v", l, w, aw)
			}
		}
	}
	if total < 2 {
		t.Fatalf("expected the paragraph to wrap, got %d line(s)", total)
	}
}

func TestLayout_EmptyAndTrailing(t *testing.T) {
	cv := New(Config{})
	if pages := cv.Layout(""); len(pages) != 1 || len(pages[0]) != 0 {
		t.Fatalf("empty text = %v, want one empty page", pages)
	}
	pages := cv.Layout("a\r\nb\n\n\n")
	if len(pages) != 1 || len(pages[0]) != 2 {
		t.Fatalf("got %q, want [a b]", pages)
	}
}

func TestNormalize(t *testing.T) {
	cv := New(Config{TabWidth: 2})
	got := cv.normalize("a\tb\r\nc\x00d\fe\uFEFF")
	if got != "a  b\ncd\ne" {
		t.Fatalf("normalize = %q", got)
	}
}

func TestAddText_EmptyGivesOnePage(t *testing.T) {
	cv := New(Config{})
	n, err := cv.AddText("")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || cv.PageCount() != 1 {
		t.Fatalf("pages = %d/%d, want 1", n, cv.PageCount())
	}
}

func TestAddTextFile_NonLatin(t *testing.T) {
	// WHAT: text outside the core font code page does not fail the file.
	path := filepath.Join(t.TempDir(), "mixed.txt")
	os.WriteFile(path, []byte("Grüße 日本語 ok\n"), 0o644)

	cv := New(Config{})
	if _, err := cv.AddTextFile(path); err != nil {
		t.Fatal(err)
	}
	if err := cv.WriteFile(filepath.Join(t.TempDir(), "out.pdf")); err != nil {
		t.Fatal(err)
	}
}

func TestAddTextFile_Missing(t *testing.T) {
	cv := New(Config{})
	_, err := cv.AddTextFile(filepath.Join(t.TempDir(), "nope.txt"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not-exist", err)
	}
	if cv.PageCount() != 0 {
		t.Fatal("page added for missing file")
	}
}

func TestStripRTF(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"paragraphs", `{\rtf1\ansi{\fonttbl{\f0 Times;}}\f0 Hello\par World}`, "Hello\nWorld"},
		{"hex escape", `{\rtf1\ansi caf\'e9}`, "café"},
		{"code page", `{\rtf1\ansi\ansicpg1251 \'cf\'f0\'e8}`, "При"},
		{"unicode skips fallback", `{\rtf1\uc1 \u8364?}`, "€"},
		{"unicode fallback count", `{\rtf1\uc2 \u8364??x}`, "€x"},
		{"negative unicode", `{\rtf1 \u-3913?}`, "\uf0b7"},
		{"ignorable destination", `{\rtf1{\*\generator Riched20;}Text}`, "Text"},
		{"info group", `{\rtf1{\info{\author me}}Body}`, "Body"},
		{"literals", `{\rtf1 a\{b\}c\\d}`, `a{b}c\d`},
		{"tab", `{\rtf1 a\tab b}`, "a\tb"},
		{"raw newlines ignored", "{\\rtf1 one\r\ntwo}", "onetwo"},
		{"nonbreaking space", `{\rtf1 a\~b}`, "a b"},
		{"raw 8-bit bytes", "{\\rtf1\\ansi \x80 \x93q\x94}", "€ “q”"},
		{"raw bytes in code page", "{\\rtf1\\ansi\\ansicpg1251 \xcf\xf0\xe8}", "При"},
	}
	for _, tt := range tests {
		got, err := StripRTF([]byte(tt.in))
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestStripRTF_NotRTF(t *testing.T) {
	if _, err := StripRTF([]byte("plain text")); !errors.Is(err, ErrNotRTF) {
		t.Fatalf("err = %v, want ErrNotRTF", err)
	}
}

func TestAddRTFFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "a.rtf")
	bad := filepath.Join(dir, "b.rtf")
	os.WriteFile(good, []byte(`{\rtf1\ansi Hello\par World}`), 0o644)
	os.WriteFile(bad, []byte("not rtf at all"), 0o644)

	cv := New(Config{})
	if n, err := cv.AddRTFFile(good); err != nil || n != 1 {
		t.Fatalf("AddRTFFile = %d, %v", n, err)
	}
	if _, err := cv.AddRTFFile(bad); !errors.Is(err, ErrNotRTF) {
		t.Fatalf("err = %v, want ErrNotRTF", err)
	}
	if cv.PageCount() != 1 {
		t.Fatalf("PageCount = %d, want 1", cv.PageCount())
	}
}
