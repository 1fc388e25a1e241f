// Package office converts word-processor, spreadsheet and presentation files
// to PDF through whatever office software is installed: Microsoft Office via
// COM automation on Windows, and LibreOffice in headless mode everywhere.
//
// Availability is probed once with Probe and passed to NewChain as an
// immutable value. A Chain tries converters in a fixed preference order per
// document family and falls through on absence or failure.
package office

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/hazyhaar/docpdf/format"
)

var (
	// ErrUnavailable is returned when no converter exists for a document.
	ErrUnavailable = errors.New("office: no converter available")

	// ErrTimeout is returned when a converter exceeds its time limit.
	ErrTimeout = errors.New("office: converter timed out")
)

// Converter names used in Outcome.Via and Attempt.Converter.
const (
	ViaWord        = "word"
	ViaExcel       = "excel"
	ViaPowerPoint  = "powerpoint"
	ViaLibreOffice = "libreoffice"
)

// Availability records which converters exist on this machine.
type Availability struct {
	LibreOfficePath string `json:"libreoffice_path,omitempty"`
	Word            bool   `json:"word"`
	Excel           bool   `json:"excel"`
	PowerPoint      bool   `json:"powerpoint"`
}

// LibreOffice reports whether a LibreOffice executable was found.
func (a Availability) LibreOffice() bool { return a.LibreOfficePath != "" }

// Any reports whether at least one converter exists.
func (a Availability) Any() bool {
	return a.LibreOffice() || a.Word || a.Excel || a.PowerPoint
}

// CanConvert reports whether some converter in the chain for class exists.
func (a Availability) CanConvert(class format.Class) bool {
	for _, name := range Plan(class) {
		if a.has(name) {
			return true
		}
	}
	return false
}

func (a Availability) has(name string) bool {
	switch name {
	case ViaWord:
		return a.Word
	case ViaExcel:
		return a.Excel
	case ViaPowerPoint:
		return a.PowerPoint
	case ViaLibreOffice:
		return a.LibreOffice()
	}
	return false
}

// Status describes one converter for display.
type Status struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// Statuses lists every converter in a stable order.
func (a Availability) Statuses() []Status {
	return []Status{
		{Name: ViaWord, Available: a.Word, Detail: "Word.Application (COM)"},
		{Name: ViaExcel, Available: a.Excel, Detail: "Excel.Application (COM)"},
		{Name: ViaPowerPoint, Available: a.PowerPoint, Detail: "PowerPoint.Application (COM)"},
		{Name: ViaLibreOffice, Available: a.LibreOffice(), Detail: a.LibreOfficePath},
	}
}

// Plan returns the converter preference order for class. Non-office classes
// have an empty plan.
func Plan(class format.Class) []string {
	switch class {
	case format.OfficeWord:
		return []string{ViaWord, ViaLibreOffice}
	case format.OfficeExcel:
		return []string{ViaExcel, ViaLibreOffice}
	case format.OfficePowerPoint:
		return []string{ViaPowerPoint, ViaLibreOffice}
	case format.ODFText, format.ODFSpreadsheet, format.ODFPresentation:
		return []string{ViaLibreOffice}
	}
	return nil
}

// ProbeConfig configures Probe.
type ProbeConfig struct {
	// LibreOfficePath overrides discovery. When set and missing, LibreOffice
	// is reported unavailable.
	LibreOfficePath string

	// DisableNative skips the COM probes.
	DisableNative bool

	Logger *slog.Logger
}

func (c *ProbeConfig) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Probe detects installed converters. COM probes start and quit each Office
// application once, so Probe may take a few seconds on Windows.
func Probe(ctx context.Context, cfg ProbeConfig) Availability {
	cfg.defaults()
	log := cfg.Logger

	var a Availability
	if p, ok := FindLibreOffice(cfg.LibreOfficePath); ok {
		a.LibreOfficePath = p
	}

	if runtime.GOOS == "windows" && !cfg.DisableNative {
		probe := func(progID string) bool {
			if ctx.Err() != nil {
				return false
			}
			err := probeCOM(progID)
			if err != nil {
				log.Debug("office: com probe failed", "prog_id", progID, "error", err)
			}
			return err == nil
		}
		a.Word = probe(progWord)
		a.Excel = probe(progExcel)
		a.PowerPoint = probe(progPowerPoint)
	}

	log.Info("office: converters probed",
		"libreoffice", a.LibreOfficePath, "word", a.Word,
		"excel", a.Excel, "powerpoint", a.PowerPoint)
	return a
}

// FindLibreOffice locates the soffice executable: the configured path if
// given, else PATH, else the usual install locations.
func FindLibreOffice(configured string) (string, bool) {
	if configured != "" {
		if isExecutable(configured) {
			return configured, true
		}
		return "", false
	}
	for _, name := range []string{"soffice", "libreoffice"} {
		if p, err := exec.LookPath(name); err == nil {
			return p, true
		}
	}
	for _, pattern := range wellKnownPaths() {
		matches, _ := filepath.Glob(pattern)
		for _, m := range matches {
			if isExecutable(m) {
				return m, true
			}
		}
	}
	return "", false
}

func wellKnownPaths() []string {
	switch runtime.GOOS {
	case "windows":
		var out []string
		for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)", "ProgramW6432"} {
			if dir := os.Getenv(env); dir != "" {
				out = append(out, filepath.Join(dir, "LibreOffice*", "program", "soffice.exe"))
			}
		}
		return out
	case "darwin":
		return []string{"/Applications/LibreOffice.app/Contents/MacOS/soffice"}
	default:
		return []string{
			"/usr/lib/libreoffice/program/soffice",
			"/usr/lib64/libreoffice/program/soffice",
			"/opt/libreoffice*/program/soffice",
			"/snap/bin/libreoffice",
			"/var/lib/flatpak/exports/bin/org.libreoffice.LibreOffice",
		}
	}
}

func isExecutable(p string) bool {
	st, err := os.Stat(p)
	if err != nil || st.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return st.Mode()&0o111 != 0
}
