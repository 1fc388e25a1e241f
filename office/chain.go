package office

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hazyhaar/docpdf/format"
)

// Converter turns one office document into a PDF at dst.
type Converter interface {
	Convert(ctx context.Context, src, dst string) error
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(ctx context.Context, src, dst string) error

func (f ConverterFunc) Convert(ctx context.Context, src, dst string) error { return f(ctx, src, dst) }

// ChainConfig configures a Chain.
type ChainConfig struct {
	// Availability is the result of Probe.
	Availability Availability

	// Timeout bounds one LibreOffice run. Default: 120s.
	Timeout time.Duration

	// ScratchDir holds private profiles and output directories. Default: os.TempDir().
	ScratchDir string

	// Converters replaces the default converter for a name (ViaWord,
	// ViaExcel, ViaPowerPoint, ViaLibreOffice). Availability still decides
	// whether the step runs.
	Converters map[string]Converter

	Logger *slog.Logger
}

func (c *ChainConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	if c.ScratchDir == "" {
		c.ScratchDir = os.TempDir()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Attempt records one converter invocation.
type Attempt struct {
	Converter string        `json:"converter"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// Outcome describes a successful conversion.
type Outcome struct {
	// Via names the converter that produced the file.
	Via      string    `json:"via"`
	Attempts []Attempt `json:"attempts"`
}

// Chain runs the per-family fallback order.
type Chain struct {
	cfg        ChainConfig
	converters map[string]Converter
}

// NewChain builds a Chain from an immutable Availability.
func NewChain(cfg ChainConfig) *Chain {
	cfg.defaults()
	convs := map[string]Converter{
		ViaWord:       nativeWord(cfg.ScratchDir),
		ViaExcel:      nativeExcel(cfg.ScratchDir),
		ViaPowerPoint: nativePowerPoint(cfg.ScratchDir),
		ViaLibreOffice: &Soffice{
			Path:       cfg.Availability.LibreOfficePath,
			Timeout:    cfg.Timeout,
			ScratchDir: cfg.ScratchDir,
		},
	}
	for name, c := range cfg.Converters {
		convs[name] = c
	}
	return &Chain{cfg: cfg, converters: convs}
}

// Availability returns the probed converters the chain was built with.
func (c *Chain) Availability() Availability { return c.cfg.Availability }

// Convert converts src of the given class into dst, trying each available
// converter in order. The returned Outcome lists every attempt, also on
// failure. When nothing could even be attempted the error wraps
// ErrUnavailable; when the last attempt timed out it wraps ErrTimeout.
func (c *Chain) Convert(ctx context.Context, src string, class format.Class, dst string) (*Outcome, error) {
	plan := Plan(class)
	if len(plan) == 0 {
		return nil, fmt.Errorf("office: %s is not an office format", class)
	}
	log := c.cfg.Logger
	out := &Outcome{}

	var missing []string
	var lastErr error
	for _, name := range plan {
		if !c.cfg.Availability.has(name) {
			missing = append(missing, name)
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}

		start := time.Now()
		err := c.converters[name].Convert(ctx, src, dst)
		if err == nil {
			err = checkOutput(dst)
		}
		att := Attempt{Converter: name, Duration: time.Since(start)}
		if err != nil {
			att.Error = err.Error()
		}
		out.Attempts = append(out.Attempts, att)

		if err == nil {
			out.Via = name
			log.Debug("office: converted", "src", src, "via", name, "duration", att.Duration)
			return out, nil
		}
		os.Remove(dst)
		lastErr = err
		log.Warn("office: converter failed, trying next", "src", src, "via", name, "error", err)
	}

	if lastErr == nil {
		return out, fmt.Errorf("%w for %s (missing: %s)", ErrUnavailable, class, strings.Join(missing, ", "))
	}
	tried := make([]string, len(out.Attempts))
	for i, a := range out.Attempts {
		tried[i] = a.Converter
	}
	msg := "tried: " + strings.Join(tried, ", ")
	if len(missing) > 0 {
		msg += "; missing: " + strings.Join(missing, ", ")
	}
	return out, fmt.Errorf("office: all converters failed (%s): %w", msg, lastErr)
}

func checkOutput(dst string) error {
	st, err := os.Stat(dst)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("converter reported success but wrote no file")
		}
		return err
	}
	if st.Size() == 0 {
		return fmt.Errorf("converter wrote an empty file")
	}
	return nil
}
