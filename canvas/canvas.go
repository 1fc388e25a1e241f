// Package canvas draws images, text, RTF and SVG onto a shared PDF page
// surface backed by gofpdf.
//
// Every Add* method decodes and lays out its input completely before the
// first page is added, so an unreadable file never leaves a partial page on
// the canvas. Pages are appended in call order.
//
// Usage:
//
//	cv := canvas.New(canvas.Config{})
//	if _, err := cv.AddImage("scan.png"); err != nil { ... }
//	if _, err := cv.AddTextFile("notes.txt"); err != nil { ... }
//	err := cv.WriteFile("out.pdf")
package canvas

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"
)

// ErrEmpty is returned by WriteFile when no page was drawn.
var ErrEmpty = errors.New("canvas: no pages")

// ErrClosed is returned when a canvas is used after WriteFile.
var ErrClosed = errors.New("canvas: already written")

// Canvas is an in-progress PDF document. It is not safe for concurrent use.
type Canvas struct {
	cfg    Config
	pdf    *gofpdf.Fpdf
	tr     func(string) string
	pageW  float64
	pageH  float64
	seq    int
	closed bool
}

// New creates an empty canvas.
func New(cfg Config) *Canvas {
	cfg.defaults()

	orientation := "P"
	if cfg.Landscape {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "pt", cfg.PageSize, "")
	pdf.SetMargins(cfg.Margin, cfg.Margin, cfg.Margin)
	pdf.SetAutoPageBreak(false, cfg.Margin)
	pdf.SetCreator("docpdf", false)
	pdf.SetFont(cfg.FontFamily, "", cfg.FontSize)

	w, h := pdf.GetPageSize()
	return &Canvas{
		cfg:   cfg,
		pdf:   pdf,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		pageW: w,
		pageH: h,
	}
}

// PageCount returns the number of pages drawn so far.
func (c *Canvas) PageCount() int {
	return c.pdf.PageCount()
}

// Err returns the sticky gofpdf error, if any. Once set, the canvas cannot
// produce output.
func (c *Canvas) Err() error {
	return c.pdf.Error()
}

// area returns the drawable rectangle inside the margins.
func (c *Canvas) area() (x, y, w, h float64) {
	m := c.cfg.Margin
	return m, m, c.pageW - 2*m, c.pageH - 2*m
}

func (c *Canvas) check() error {
	if c.closed {
		return ErrClosed
	}
	return c.pdf.Error()
}

// AddImage draws the image at path on one page, or one page per frame for
// animated GIFs. It returns the number of pages added.
func (c *Canvas) AddImage(path string) (int, error) {
	if err := c.check(); err != nil {
		return 0, err
	}

	frames, err := LoadFrames(path)
	if err != nil {
		return 0, err
	}

	// Encode every frame before touching the document.
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	encoded := make([][]byte, len(frames))
	for i, fr := range frames {
		var buf bytes.Buffer
		if err := enc.Encode(&buf, fr); err != nil {
			return 0, fmt.Errorf("encode frame %d of %s: %w", i, filepath.Base(path), err)
		}
		encoded[i] = buf.Bytes()
	}

	ax, ay, aw, ah := c.area()
	opts := gofpdf.ImageOptions{ImageType: "png"}
	for i, data := range encoded {
		c.seq++
		name := fmt.Sprintf("img%d", c.seq)
		c.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))

		b := frames[i].Bounds()
		w, h := Fit(float64(b.Dx()), float64(b.Dy()), aw, ah)
		c.pdf.AddPage()
		c.pdf.ImageOptions(name, ax+(aw-w)/2, ay+(ah-h)/2, w, h, false, opts, 0, "")
	}

	c.cfg.Logger.Debug("canvas: image drawn", "path", path, "pages", len(encoded))
	return len(encoded), c.pdf.Error()
}

// Fit scales a srcW×srcH box uniformly to the largest size that fits inside
// boxW×boxH.
func Fit(srcW, srcH, boxW, boxH float64) (w, h float64) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0
	}
	scale := boxW / srcW
	if s := boxH / srcH; s < scale {
		scale = s
	}
	return srcW * scale, srcH * scale
}

// AddTextFile reads path (UTF-8 or the configured fallback encoding) and
// draws it as paginated text.
func (c *Canvas) AddTextFile(path string) (int, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	text, err := Decode(data, c.cfg.FallbackEncoding)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return c.AddText(text)
}

// AddRTFFile strips RTF markup from path and draws the remaining text.
func (c *Canvas) AddRTFFile(path string) (int, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	text, err := StripRTF(data)
	if err != nil {
		return 0, fmt.Errorf("rtf %s: %w", filepath.Base(path), err)
	}
	return c.AddText(text)
}

// AddText wraps and paginates text. Empty text yields one blank page.
func (c *Canvas) AddText(text string) (int, error) {
	if err := c.check(); err != nil {
		return 0, err
	}

	pages := c.Layout(text)
	ax, ay, _, _ := c.area()
	lineH := c.lineHeight()
	for _, lines := range pages {
		c.pdf.AddPage()
		for i, line := range lines {
			if line == "" {
				continue
			}
			c.pdf.Text(ax, ay+c.cfg.FontSize+float64(i)*lineH, line)
		}
	}
	return len(pages), c.pdf.Error()
}

// AddPlaceholder draws a page carrying a short centered label, used to
// record files that were seen but produced no content.
func (c *Canvas) AddPlaceholder(label string) error {
	if err := c.check(); err != nil {
		return err
	}
	ax, ay, aw, ah := c.area()
	c.pdf.AddPage()
	c.pdf.SetDrawColor(160, 160, 160)
	c.pdf.SetLineWidth(1)
	c.pdf.Rect(ax, ay, aw, ah, "D")
	c.pdf.SetXY(ax, ay+ah/2-c.cfg.FontSize)
	c.pdf.MultiCell(aw, c.lineHeight(), c.tr(label), "", "C", false)
	c.pdf.SetDrawColor(0, 0, 0)
	return c.pdf.Error()
}

// WriteFile writes the document to path. The canvas cannot be used afterwards.
func (c *Canvas) WriteFile(path string) error {
	if err := c.check(); err != nil {
		return err
	}
	if c.PageCount() == 0 {
		return ErrEmpty
	}
	c.closed = true
	return c.pdf.OutputFileAndClose(path)
}
