package office

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/docpdf/format"
)

// fakeSoffice writes a shell script that mimics soffice --convert-to pdf.
func fakeSoffice(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script converter")
	}
	path := filepath.Join(t.TempDir(), "soffice")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

const convertingScript = `
outdir=""
src=""
while [ $# -gt 0 ]; do
  case "$1" in
    --outdir) outdir="$2"; shift ;;
    -*) ;;
    *) src="$1" ;;
  esac
  shift
done
name=$(basename "$src")
printf '%%PDF-1.4 fake\n' > "$outdir/${name%.*}.pdf"
`

func writeDoc(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte("doc"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPlan(t *testing.T) {
	tests := []struct {
		class format.Class
		want  string
	}{
		{format.OfficeWord, "word,libreoffice"},
		{format.OfficeExcel, "excel,libreoffice"},
		{format.OfficePowerPoint, "powerpoint,libreoffice"},
		{format.ODFText, "libreoffice"},
		{format.ODFSpreadsheet, "libreoffice"},
		{format.ODFPresentation, "libreoffice"},
		{format.HTML, ""},
	}
	for _, tt := range tests {
		if got := strings.Join(Plan(tt.class), ","); got != tt.want {
			t.Errorf("Plan(%s) = %q, want %q", tt.class, got, tt.want)
		}
	}
}

func TestAvailability(t *testing.T) {
	var none Availability
	if none.Any() || none.CanConvert(format.OfficeWord) {
		t.Fatal("empty availability should convert nothing")
	}
	word := Availability{Word: true}
	if !word.CanConvert(format.OfficeWord) || word.CanConvert(format.ODFText) {
		t.Fatal("word-only availability: wrong CanConvert")
	}
	lo := Availability{LibreOfficePath: "/usr/bin/soffice"}
	if !lo.CanConvert(format.ODFPresentation) || !lo.CanConvert(format.OfficeExcel) {
		t.Fatal("libreoffice should cover every office class")
	}
	if len(lo.Statuses()) != 4 {
		t.Fatalf("Statuses() = %d entries", len(lo.Statuses()))
	}
}

func TestFindLibreOffice_Configured(t *testing.T) {
	exe := fakeSoffice(t, "exit 0")
	if p, ok := FindLibreOffice(exe); !ok || p != exe {
		t.Fatalf("FindLibreOffice(%q) = %q, %v", exe, p, ok)
	}
	if _, ok := FindLibreOffice(filepath.Join(t.TempDir(), "missing")); ok {
		t.Fatal("missing configured path reported available")
	}
}

func TestProbe_ConfiguredPath(t *testing.T) {
	exe := fakeSoffice(t, "exit 0")
	a := Probe(context.Background(), ProbeConfig{LibreOfficePath: exe, DisableNative: true})
	if a.LibreOfficePath != exe {
		t.Fatalf("LibreOfficePath = %q", a.LibreOfficePath)
	}
	if a.Word || a.Excel || a.PowerPoint {
		t.Fatal("native converters reported with DisableNative")
	}
}

func TestChain_Unavailable(t *testing.T) {
	// WHAT: nothing installed means ErrUnavailable and no attempts.
	chain := NewChain(ChainConfig{ScratchDir: t.TempDir()})
	src := writeDoc(t, "a.docx")
	out, err := chain.Convert(context.Background(), src, format.OfficeWord, filepath.Join(t.TempDir(), "a.pdf"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if len(out.Attempts) != 0 {
		t.Fatalf("attempts = %v", out.Attempts)
	}
	if !strings.Contains(err.Error(), "word") || !strings.Contains(err.Error(), "libreoffice") {
		t.Fatalf("error should name missing converters: %v", err)
	}
}

func TestChain_NotOffice(t *testing.T) {
	chain := NewChain(ChainConfig{})
	if _, err := chain.Convert(context.Background(), "a.png", format.RasterImage, "a.pdf"); err == nil {
		t.Fatal("expected error for non-office class")
	}
}

func TestChain_SofficeConverts(t *testing.T) {
	exe := fakeSoffice(t, convertingScript)
	chain := NewChain(ChainConfig{
		Availability: Availability{LibreOfficePath: exe},
		ScratchDir:   t.TempDir(),
	})

	src := writeDoc(t, "notes.odt")
	dst := filepath.Join(t.TempDir(), "notes.pdf")
	out, err := chain.Convert(context.Background(), src, format.ODFText, dst)
	if err != nil {
		t.Fatal(err)
	}
	if out.Via != ViaLibreOffice {
		t.Fatalf("Via = %q", out.Via)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "%PDF-") {
		t.Fatalf("dst = %q", data)
	}
}

func TestChain_NativeFailureFallsBack(t *testing.T) {
	// WHAT: a failing native converter falls through to LibreOffice.
	// WHY: Via must name the converter that actually produced the file.
	exe := fakeSoffice(t, convertingScript)
	chain := NewChain(ChainConfig{
		Availability: Availability{Word: true, LibreOfficePath: exe},
		ScratchDir:   t.TempDir(),
		Converters: map[string]Converter{
			ViaWord: ConverterFunc(func(ctx context.Context, src, dst string) error {
				os.WriteFile(dst, []byte("partial"), 0o644)
				return errors.New("word crashed")
			}),
		},
	})

	dst := filepath.Join(t.TempDir(), "a.pdf")
	out, err := chain.Convert(context.Background(), writeDoc(t, "a.docx"), format.OfficeWord, dst)
	if err != nil {
		t.Fatal(err)
	}
	if out.Via != ViaLibreOffice {
		t.Fatalf("Via = %q, want libreoffice", out.Via)
	}
	if len(out.Attempts) != 2 || out.Attempts[0].Error == "" || out.Attempts[1].Error != "" {
		t.Fatalf("attempts = %+v", out.Attempts)
	}
}

func TestChain_WordMissingUsesLibreOffice(t *testing.T) {
	// WHAT: a Word file with Word absent goes straight to LibreOffice.
	// WHY: an unavailable step is skipped, not attempted and failed.
	exe := fakeSoffice(t, convertingScript)
	chain := NewChain(ChainConfig{
		Availability: Availability{Word: false, LibreOfficePath: exe},
		ScratchDir:   t.TempDir(),
		Converters: map[string]Converter{
			ViaWord: ConverterFunc(func(ctx context.Context, src, dst string) error {
				t.Fatal("word converter invoked while unavailable")
				return nil
			}),
		},
	})

	dst := filepath.Join(t.TempDir(), "report.pdf")
	out, err := chain.Convert(context.Background(), writeDoc(t, "report.docx"), format.OfficeWord, dst)
	if err != nil {
		t.Fatal(err)
	}
	if out.Via != ViaLibreOffice {
		t.Fatalf("Via = %q, want libreoffice", out.Via)
	}
	if len(out.Attempts) != 1 || out.Attempts[0].Converter != ViaLibreOffice {
		t.Fatalf("attempts = %+v", out.Attempts)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatal(err)
	}
}

func TestChain_NativeSuccessStopsChain(t *testing.T) {
	called := false
	chain := NewChain(ChainConfig{
		Availability: Availability{Excel: true, LibreOfficePath: "/unused"},
		Converters: map[string]Converter{
			ViaExcel: ConverterFunc(func(ctx context.Context, src, dst string) error {
				return os.WriteFile(dst, []byte("%PDF-1.4"), 0o644)
			}),
			ViaLibreOffice: ConverterFunc(func(ctx context.Context, src, dst string) error {
				called = true
				return nil
			}),
		},
	})
	out, err := chain.Convert(context.Background(), "book.xlsx", format.OfficeExcel, filepath.Join(t.TempDir(), "b.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if out.Via != ViaExcel || called {
		t.Fatalf("Via = %q, libreoffice called = %v", out.Via, called)
	}
}

func TestChain_EmptyOutputIsFailure(t *testing.T) {
	chain := NewChain(ChainConfig{
		Availability: Availability{PowerPoint: true},
		Converters: map[string]Converter{
			ViaPowerPoint: ConverterFunc(func(ctx context.Context, src, dst string) error {
				return nil // claims success, writes nothing
			}),
		},
	})
	_, err := chain.Convert(context.Background(), "deck.pptx", format.OfficePowerPoint, filepath.Join(t.TempDir(), "d.pdf"))
	if err == nil || errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want conversion failure", err)
	}
}

func TestSoffice_Timeout(t *testing.T) {
	// WHAT: a hung soffice is killed and reported as ErrTimeout.
	exe := fakeSoffice(t, "exec sleep 10")
	chain := NewChain(ChainConfig{
		Availability: Availability{LibreOfficePath: exe},
		Timeout:      200 * time.Millisecond,
		ScratchDir:   t.TempDir(),
	})

	start := time.Now()
	_, err := chain.Convert(context.Background(), writeDoc(t, "slow.ods"), format.ODFSpreadsheet, filepath.Join(t.TempDir(), "s.pdf"))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout took %s", elapsed)
	}
}

func TestSoffice_TimeoutKillsChildren(t *testing.T) {
	// WHAT: on timeout the processes soffice spawned die with it.
	// WHY: soffice.bin runs as a grandchild; left alive it keeps converting
	// after its private profile directory is gone.
	mark := filepath.Join(t.TempDir(), "finished")
	exe := fakeSoffice(t, "(sleep 2; touch '"+mark+"') &\nwait")
	s := &Soffice{Path: exe, Timeout: 200 * time.Millisecond, ScratchDir: t.TempDir()}

	err := s.Convert(context.Background(), writeDoc(t, "slow.odt"), filepath.Join(t.TempDir(), "s.pdf"))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	time.Sleep(3 * time.Second)
	if _, err := os.Stat(mark); err == nil {
		t.Fatal("child of timed-out soffice kept running")
	}
}

func TestSoffice_NonZeroExit(t *testing.T) {
	exe := fakeSoffice(t, "echo 'Error: source file could not be loaded' >&2; exit 1")
	s := &Soffice{Path: exe, Timeout: 5 * time.Second, ScratchDir: t.TempDir()}
	err := s.Convert(context.Background(), writeDoc(t, "x.odp"), filepath.Join(t.TempDir(), "x.pdf"))
	if err == nil || !strings.Contains(err.Error(), "could not be loaded") {
		t.Fatalf("err = %v", err)
	}
}

func TestSoffice_NoOutput(t *testing.T) {
	exe := fakeSoffice(t, "exit 0")
	s := &Soffice{Path: exe, Timeout: 5 * time.Second, ScratchDir: t.TempDir()}
	err := s.Convert(context.Background(), writeDoc(t, "x.odt"), filepath.Join(t.TempDir(), "x.pdf"))
	if err == nil || !strings.Contains(err.Error(), "no PDF produced") {
		t.Fatalf("err = %v", err)
	}
}

func TestSoffice_PrivateDirsRemoved(t *testing.T) {
	scratch := t.TempDir()
	exe := fakeSoffice(t, convertingScript)
	s := &Soffice{Path: exe, Timeout: 5 * time.Second, ScratchDir: scratch}
	if err := s.Convert(context.Background(), writeDoc(t, "x.odt"), filepath.Join(t.TempDir(), "x.pdf")); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(scratch)
	if len(entries) != 0 {
		t.Fatalf("scratch not cleaned: %v", entries)
	}
}

func TestNative_NotWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("COM available")
	}
	if err := probeCOM(progWord); !errors.Is(err, errNotWindows) {
		t.Fatalf("err = %v", err)
	}
}
