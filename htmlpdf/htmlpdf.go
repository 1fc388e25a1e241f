// Package htmlpdf renders HTML files to PDF with headless Chrome driven by
// go-rod, and converts HTML to Markdown text when no browser can be used.
//
// The browser is launched lazily on the first Render and reused until Close,
// so a job converting many HTML files pays the startup cost once. No browser
// is ever downloaded: the binary comes from Config or the usual install
// locations, and Render returns ErrUnavailable when none is found.
package htmlpdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// ErrUnavailable is returned when no Chrome/Chromium binary is known.
var ErrUnavailable = errors.New("htmlpdf: no browser available")

// Config configures the renderer.
type Config struct {
	// BrowserPath is the Chrome/Chromium executable. When set, no other
	// location is tried. Empty = search PATH and well-known locations.
	BrowserPath string `yaml:"browser_path"`

	// RemoteURL is the DevTools WebSocket URL of an already running browser.
	// Takes precedence over BrowserPath.
	RemoteURL string `yaml:"remote_url"`

	// Sanitize strips scripts and active content before rendering.
	Sanitize bool `yaml:"sanitize"`

	// PaperWidth and PaperHeight in inches (default: A4, 8.27 x 11.69).
	PaperWidth  float64 `yaml:"paper_width"`
	PaperHeight float64 `yaml:"paper_height"`

	// Landscape prints in landscape orientation.
	Landscape bool `yaml:"landscape"`

	// Timeout bounds one file's load and print. Default: 60s.
	Timeout time.Duration `yaml:"timeout"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.PaperWidth <= 0 {
		c.PaperWidth = 8.27
	}
	if c.PaperHeight <= 0 {
		c.PaperHeight = 11.69
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Renderer prints HTML files to PDF. Safe for concurrent use; pages are
// rendered one at a time.
type Renderer struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// New creates a Renderer. No process is started until Render.
func New(cfg Config) *Renderer {
	cfg.defaults()
	return &Renderer{cfg: cfg}
}

// Available reports whether a browser can be reached without launching it.
func (r *Renderer) Available() bool {
	if r.cfg.RemoteURL != "" {
		return true
	}
	_, ok := r.binary()
	return ok
}

// BrowserPath returns the browser binary that Render would launch.
func (r *Renderer) BrowserPath() string {
	if r.cfg.RemoteURL != "" {
		return r.cfg.RemoteURL
	}
	p, _ := r.binary()
	return p
}

func (r *Renderer) binary() (string, bool) {
	if r.cfg.BrowserPath != "" {
		if st, err := os.Stat(r.cfg.BrowserPath); err == nil && !st.IsDir() {
			return r.cfg.BrowserPath, true
		}
		return "", false
	}
	return launcher.LookPath()
}

// Render prints the HTML file src into the PDF file dst. Relative links in
// src (images, stylesheets) resolve against its directory.
func (r *Renderer) Render(ctx context.Context, src, dst string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := r.browserLocked()
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(src)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	page, err := b.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return fmt.Errorf("htmlpdf: create page: %w", err)
	}
	defer page.Close()
	page = page.Context(ctx)

	if r.cfg.Sanitize {
		raw, err := os.ReadFile(abs)
		if err != nil {
			return err
		}
		doc, err := Sanitize(string(raw), fileURL(filepath.Dir(abs))+"/")
		if err != nil {
			return fmt.Errorf("htmlpdf: sanitize: %w", err)
		}
		if err := page.SetDocumentContent(doc); err != nil {
			return fmt.Errorf("htmlpdf: load %s: %w", filepath.Base(src), err)
		}
	} else {
		if err := page.Navigate(fileURL(abs)); err != nil {
			return fmt.Errorf("htmlpdf: navigate %s: %w", filepath.Base(src), err)
		}
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("htmlpdf: wait load %s: %w", filepath.Base(src), err)
	}

	w, h := r.cfg.PaperWidth, r.cfg.PaperHeight
	stream, err := page.PDF(&proto.PagePrintToPDF{
		Landscape:       r.cfg.Landscape,
		PrintBackground: true,
		PaperWidth:      &w,
		PaperHeight:     &h,
	})
	if err != nil {
		return fmt.Errorf("htmlpdf: print %s: %w", filepath.Base(src), err)
	}
	defer stream.Close()

	if err := writeStream(dst, stream); err != nil {
		return fmt.Errorf("htmlpdf: write %s: %w", filepath.Base(dst), err)
	}
	r.cfg.Logger.Debug("htmlpdf: rendered", "src", src, "dst", dst)
	return nil
}

func writeStream(dst string, rd io.Reader) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rd); err != nil {
		f.Close()
		os.Remove(dst)
		return err
	}
	return f.Close()
}

// browserLocked returns the running browser, launching it on first use.
func (r *Renderer) browserLocked() (*rod.Browser, error) {
	if r.closed {
		return nil, fmt.Errorf("htmlpdf: renderer is closed")
	}
	if r.browser != nil {
		return r.browser, nil
	}
	log := r.cfg.Logger

	wsURL := r.cfg.RemoteURL
	if wsURL == "" {
		bin, ok := r.binary()
		if !ok {
			return nil, ErrUnavailable
		}
		l := launcher.New().Bin(bin).Headless(true).Set("disable-gpu")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("htmlpdf: launch %s: %w", bin, err)
		}
		wsURL = u
		r.lnch = l
		log.Info("htmlpdf: launched browser", "bin", bin)
	} else {
		log.Info("htmlpdf: connecting to remote browser", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		r.cleanupLocked()
		return nil, fmt.Errorf("htmlpdf: connect: %w", err)
	}
	r.browser = b
	return b, nil
}

// Close shuts the browser down. Render fails afterwards.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.cleanupLocked()
	return nil
}

func (r *Renderer) cleanupLocked() {
	if r.browser != nil {
		r.browser.Close()
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Kill()
		r.lnch.Cleanup()
		r.lnch = nil
	}
}

// fileURL converts an absolute path into a file:// URL.
func fileURL(abs string) string {
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}
