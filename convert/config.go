package convert

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/hazyhaar/docpdf/canvas"
	"github.com/hazyhaar/docpdf/format"
	"github.com/hazyhaar/docpdf/htmlpdf"
	"github.com/hazyhaar/docpdf/office"
)

// Config configures an Orchestrator.
type Config struct {
	// TempDir is the parent of per-job scratch directories. Default: os.TempDir().
	TempDir string `yaml:"temp_dir"`

	// Canvas sets page geometry and text rendering for drawn content.
	Canvas canvas.Config `yaml:"canvas"`

	// HTML configures the headless browser renderer.
	HTML htmlpdf.Config `yaml:"html"`

	// NoHTMLTextFallback disables drawing HTML as text when the browser
	// is unavailable or fails.
	NoHTMLTextFallback bool `yaml:"no_html_text_fallback"`

	// OfficeTimeout bounds one LibreOffice run. Default: 120s.
	OfficeTimeout time.Duration `yaml:"office_timeout"`

	// Placeholders adds a labelled page for unsupported files in single mode.
	// These pages never count as a successful conversion.
	Placeholders bool `yaml:"placeholders"`

	// Collision is the default separate-mode policy. Default: rename.
	Collision Collision `yaml:"collision"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
	if c.OfficeTimeout <= 0 {
		c.OfficeTimeout = 120 * time.Second
	}
	if c.Collision == "" {
		c.Collision = CollisionRename
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Canvas.Logger == nil {
		c.Canvas.Logger = c.Logger
	}
	if c.HTML.Logger == nil {
		c.HTML.Logger = c.Logger
	}
}

// HTMLRenderer prints an HTML file to PDF. *htmlpdf.Renderer implements it.
type HTMLRenderer interface {
	Available() bool
	Render(ctx context.Context, src, dst string) error
}

// OfficeConverter converts office documents. *office.Chain implements it.
type OfficeConverter interface {
	Availability() office.Availability
	Convert(ctx context.Context, src string, class format.Class, dst string) (*office.Outcome, error)
}

// Recorder stores finished reports. Errors are logged, never returned to
// the caller of Run.
type Recorder interface {
	Record(ctx context.Context, r *Report) error
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder records every finished job.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.rec = r }
}

// WithHTMLRenderer replaces the default go-rod renderer.
func WithHTMLRenderer(r HTMLRenderer) Option {
	return func(o *Orchestrator) { o.html = r }
}

// WithOfficeConverter replaces the default office fallback chain.
func WithOfficeConverter(c OfficeConverter) Option {
	return func(o *Orchestrator) { o.office = c }
}
