package canvas

import "log/slog"

// Config configures page geometry and text rendering.
type Config struct {
	// PageSize is a gofpdf standard size: A3, A4, A5, Letter, Legal (default: A4).
	PageSize string `json:"page_size" yaml:"page_size"`

	// Landscape switches the page orientation.
	Landscape bool `json:"landscape" yaml:"landscape"`

	// Margin in points on every side (default: 36).
	Margin float64 `json:"margin" yaml:"margin"`

	// FontFamily is a PDF core font: Courier, Helvetica or Times (default: Courier).
	FontFamily string `json:"font_family" yaml:"font_family"`

	// FontSize in points (default: 10).
	FontSize float64 `json:"font_size" yaml:"font_size"`

	// LineSpacing is the line height as a multiple of FontSize (default: 1.2).
	LineSpacing float64 `json:"line_spacing" yaml:"line_spacing"`

	// FallbackEncoding decodes text files that are not valid UTF-8
	// (default: windows-1252). See Decode for accepted names.
	FallbackEncoding string `json:"fallback_encoding" yaml:"fallback_encoding"`

	// TabWidth is the number of spaces a tab expands to (default: 4).
	TabWidth int `json:"tab_width" yaml:"tab_width"`

	// Logger for debug messages.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.PageSize == "" {
		c.PageSize = "A4"
	}
	if c.Margin <= 0 {
		c.Margin = 36
	}
	if c.FontFamily == "" {
		c.FontFamily = "Courier"
	}
	if c.FontSize <= 0 {
		c.FontSize = 10
	}
	if c.LineSpacing <= 0 {
		c.LineSpacing = 1.2
	}
	if c.FallbackEncoding == "" {
		c.FallbackEncoding = "windows-1252"
	}
	if c.TabWidth <= 0 {
		c.TabWidth = 4
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
