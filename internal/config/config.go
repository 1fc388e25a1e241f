// Package config loads the docpdf YAML configuration file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/docpdf/canvas"
	"github.com/hazyhaar/docpdf/convert"
	"github.com/hazyhaar/docpdf/htmlpdf"
	"github.com/hazyhaar/docpdf/office"
	"github.com/hazyhaar/docpdf/shield"
)

// EnvPath names the environment variable holding the config file path.
const EnvPath = "DOCPDF_CONFIG"

// Config is the top-level docpdf configuration.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	TempDir  string        `yaml:"temp_dir"`
	Page     PageConfig    `yaml:"page"`
	Text     TextConfig    `yaml:"text"`
	HTML     HTMLConfig    `yaml:"html"`
	Office   OfficeConfig  `yaml:"office"`
	Output   OutputConfig  `yaml:"output"`
	Journal  JournalConfig `yaml:"journal"`
	Serve    ServeConfig   `yaml:"serve"`
}

// PageConfig sets the geometry of drawn pages.
type PageConfig struct {
	Size      string  `yaml:"size"`   // A3 | A4 | A5 | Letter | Legal
	Landscape bool    `yaml:"landscape"`
	Margin    float64 `yaml:"margin"` // points
}

// TextConfig controls plain text, RTF and HTML-as-text rendering.
type TextConfig struct {
	FontFamily       string  `yaml:"font_family"` // Courier | Helvetica | Times
	FontSize         float64 `yaml:"font_size"`
	LineSpacing      float64 `yaml:"line_spacing"`
	FallbackEncoding string  `yaml:"fallback_encoding"`
	TabWidth         int     `yaml:"tab_width"`
}

// HTMLConfig controls the headless browser.
type HTMLConfig struct {
	Browser      string        `yaml:"browser"` // binary path; empty = search PATH
	Remote       string        `yaml:"remote"`  // DevTools websocket URL
	Sanitize     bool          `yaml:"sanitize"`
	TextFallback *bool         `yaml:"text_fallback"`
	Timeout      time.Duration `yaml:"timeout"`
}

// OfficeConfig controls office document conversion.
type OfficeConfig struct {
	LibreOffice   string        `yaml:"libreoffice"` // soffice path; empty = discover
	DisableNative bool          `yaml:"disable_native"`
	Timeout       time.Duration `yaml:"timeout"`
}

// OutputConfig controls the assembler.
type OutputConfig struct {
	Collision    string `yaml:"collision"` // rename | overwrite | error
	Placeholders bool   `yaml:"placeholders"`
}

// JournalConfig controls the conversion history database.
type JournalConfig struct {
	Path          string `yaml:"path"`
	Disabled      bool   `yaml:"disabled"`
	RetentionDays int    `yaml:"retention_days"` // 0 keeps every job
}

// ServeConfig controls the HTTP API.
type ServeConfig struct {
	Addr      string                 `yaml:"addr"`
	Root      string                 `yaml:"root"` // every API path is confined here
	RateLimit shield.RateLimitConfig `yaml:"rate_limit"`
}

// Load reads path, or the file named by $DOCPDF_CONFIG when path is empty.
// Without either, the defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// Default returns the configuration used without a file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
	if c.Page.Size == "" {
		c.Page.Size = "A4"
	}
	if c.Page.Margin <= 0 {
		c.Page.Margin = 36
	}
	if c.Text.FontFamily == "" {
		c.Text.FontFamily = "Courier"
	}
	if c.Text.FontSize <= 0 {
		c.Text.FontSize = 10
	}
	if c.Text.LineSpacing <= 0 {
		c.Text.LineSpacing = 1.2
	}
	if c.Text.FallbackEncoding == "" {
		c.Text.FallbackEncoding = "windows-1252"
	}
	if c.Text.TabWidth <= 0 {
		c.Text.TabWidth = 4
	}
	if c.HTML.TextFallback == nil {
		on := true
		c.HTML.TextFallback = &on
	}
	if c.HTML.Timeout <= 0 {
		c.HTML.Timeout = 60 * time.Second
	}
	if c.Office.Timeout <= 0 {
		c.Office.Timeout = 120 * time.Second
	}
	if c.Output.Collision == "" {
		c.Output.Collision = string(convert.CollisionRename)
	}
	if c.Journal.Path == "" {
		c.Journal.Path = defaultJournalPath()
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = "127.0.0.1:8765"
	}
	if c.Serve.Root == "" {
		if wd, err := os.Getwd(); err == nil {
			c.Serve.Root = wd
		}
	}
}

func defaultJournalPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "docpdf", "journal.db")
}

// pageSizes maps page size names to paper inches for the browser.
var pageSizes = map[string][2]float64{
	"a3":     {11.69, 16.54},
	"a4":     {8.27, 11.69},
	"a5":     {5.83, 8.27},
	"letter": {8.5, 11},
	"legal":  {8.5, 14},
}

// Validate rejects values no component can use.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, ok := pageSizes[strings.ToLower(c.Page.Size)]; !ok {
		return fmt.Errorf("page.size %q: want A3, A4, A5, Letter or Legal", c.Page.Size)
	}
	switch strings.ToLower(c.Text.FontFamily) {
	case "courier", "helvetica", "arial", "times":
	default:
		return fmt.Errorf("text.font_family %q: want Courier, Helvetica or Times", c.Text.FontFamily)
	}
	if _, err := canvas.Decode([]byte{0xff}, c.Text.FallbackEncoding); err != nil {
		return fmt.Errorf("text.fallback_encoding: %w", err)
	}
	switch convert.Collision(c.Output.Collision) {
	case convert.CollisionRename, convert.CollisionOverwrite, convert.CollisionError:
	default:
		return fmt.Errorf("output.collision %q: want rename, overwrite or error", c.Output.Collision)
	}
	return nil
}

// ParseLevel maps debug, info, warn and error to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log_level %q: want debug, info, warn or error", s)
}

// Convert builds the orchestrator configuration.
func (c *Config) Convert(logger *slog.Logger) convert.Config {
	paper := pageSizes[strings.ToLower(c.Page.Size)]
	return convert.Config{
		TempDir: c.TempDir,
		Canvas: canvas.Config{
			PageSize:         c.Page.Size,
			Landscape:        c.Page.Landscape,
			Margin:           c.Page.Margin,
			FontFamily:       c.Text.FontFamily,
			FontSize:         c.Text.FontSize,
			LineSpacing:      c.Text.LineSpacing,
			FallbackEncoding: c.Text.FallbackEncoding,
			TabWidth:         c.Text.TabWidth,
			Logger:           logger,
		},
		HTML: htmlpdf.Config{
			BrowserPath: c.HTML.Browser,
			RemoteURL:   c.HTML.Remote,
			Sanitize:    c.HTML.Sanitize,
			PaperWidth:  paper[0],
			PaperHeight: paper[1],
			Landscape:   c.Page.Landscape,
			Timeout:     c.HTML.Timeout,
			Logger:      logger,
		},
		NoHTMLTextFallback: c.HTML.TextFallback != nil && !*c.HTML.TextFallback,
		OfficeTimeout:      c.Office.Timeout,
		Placeholders:       c.Output.Placeholders,
		Collision:          convert.Collision(c.Output.Collision),
		Logger:             logger,
	}
}

// Probe builds the office probe configuration.
func (c *Config) Probe(logger *slog.Logger) office.ProbeConfig {
	return office.ProbeConfig{
		LibreOfficePath: c.Office.LibreOffice,
		DisableNative:   c.Office.DisableNative,
		Logger:          logger,
	}
}
