package canvas

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

// ErrNotSVG is returned when a file has no <svg> root element.
var ErrNotSVG = errors.New("not an SVG document")

// svgSkipped elements never draw directly.
var svgSkipped = map[string]bool{
	"defs": true, "clipPath": true, "mask": true, "symbol": true,
	"pattern": true, "marker": true, "metadata": true, "title": true,
	"desc": true, "style": true, "script": true, "textPath": true,
	"linearGradient": true, "radialGradient": true, "foreignObject": true,
	"filter": true,
}

type paint struct {
	none    bool
	r, g, b int
}

type svgStyle struct {
	fill        paint
	stroke      paint
	strokeWidth float64
	hidden      bool
}

// svgText is a run of text drawn in the canvas core font at its anchor.
type svgText struct {
	at   point
	size float64
	fill paint
	body string
}

type svgShape struct {
	segs        []segment
	fill        paint
	stroke      paint
	strokeWidth float64
}

// Drawing is a parsed SVG document in user units.
type Drawing struct {
	// MinX, MinY, Width and Height describe the visible extent.
	MinX, MinY    float64
	Width, Height float64
	shapes        []svgShape
	texts         []svgText
}

// Shapes returns the number of drawable shapes.
func (d *Drawing) Shapes() int { return len(d.shapes) }

// Texts returns the number of text runs.
func (d *Drawing) Texts() int { return len(d.texts) }

// Degenerate reports whether the extent has no area.
func (d *Drawing) Degenerate() bool {
	return !(d.Width > 0 && d.Height > 0) || math.IsInf(d.Width, 0) || math.IsInf(d.Height, 0)
}

// ParseSVG reads an SVG document. The extent comes from the root viewBox,
// then from width/height, then from the bounding box of the shapes.
func ParseSVG(r io.Reader) (*Drawing, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.CharsetReader = charset.NewReaderLabel

	type frame struct {
		m     matrix
		style svgStyle
	}
	var (
		d      Drawing
		stack  []frame
		skip   int
		rooted bool
		sized  bool

		txt      *svgText // open <text> element
		txtDepth int
	)
	cur := frame{m: identity, style: svgStyle{strokeWidth: 1, stroke: paint{none: true}}}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("svg: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if skip > 0 || svgSkipped[name] {
				skip++
				continue
			}
			attrs := attrMap(t.Attr)

			if !rooted {
				if name != "svg" {
					return nil, ErrNotSVG
				}
				rooted = true
				d.MinX, d.MinY, d.Width, d.Height, sized = rootExtent(attrs)
			}

			stack = append(stack, cur)
			next := frame{m: cur.m, style: applyStyle(cur.style, attrs)}
			if tr, ok := attrs["transform"]; ok {
				next.m = cur.m.mul(parseTransform(tr))
			}
			cur = next
			if cur.style.hidden {
				continue
			}
			if name == "text" && txt == nil {
				size, ok := parseLength(attrs["font-size"])
				if !ok || size <= 0 {
					size = 16
				}
				txt = &svgText{
					at:   cur.m.apply(point{attrFloat(attrs, "x"), attrFloat(attrs, "y")}),
					size: size * cur.m.scale(),
					fill: cur.style.fill,
				}
				txtDepth = len(stack)
			}
			if segs := shapeSegments(name, attrs); len(segs) > 0 {
				d.shapes = append(d.shapes, svgShape{
					segs:        transformSegments(segs, cur.m),
					fill:        cur.style.fill,
					stroke:      cur.style.stroke,
					strokeWidth: cur.style.strokeWidth * cur.m.scale(),
				})
			}

		case xml.CharData:
			if txt != nil && skip == 0 {
				txt.body += string(t)
			}

		case xml.EndElement:
			if skip > 0 {
				skip--
				continue
			}
			if txt != nil && len(stack) == txtDepth {
				if body := strings.Join(strings.Fields(txt.body), " "); body != "" {
					txt.body = body
					d.texts = append(d.texts, *txt)
				}
				txt = nil
			}
			if n := len(stack); n > 0 {
				cur = stack[n-1]
				stack = stack[:n-1]
			}
		}
	}

	if !rooted {
		return nil, ErrNotSVG
	}
	if !sized {
		d.MinX, d.MinY, d.Width, d.Height = d.bounds()
	}
	return &d, nil
}

func attrMap(attrs []xml.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name.Local] = strings.TrimSpace(a.Value)
	}
	if style, ok := m["style"]; ok {
		for _, decl := range strings.Split(style, ";") {
			k, v, ok := strings.Cut(decl, ":")
			if ok {
				m[strings.TrimSpace(k)] = strings.TrimSpace(v)
			}
		}
	}
	return m
}

func rootExtent(attrs map[string]string) (minX, minY, w, h float64, ok bool) {
	if vb, found := attrs["viewBox"]; found {
		if v := parseNumberList(vb); len(v) == 4 {
			return v[0], v[1], v[2], v[3], true
		}
	}
	w, okW := parseLength(attrs["width"])
	h, okH := parseLength(attrs["height"])
	if okW && okH {
		return 0, 0, w, h, true
	}
	return 0, 0, 0, 0, false
}

// parseLength converts an absolute SVG length to user units (CSS px).
// Percentages and font-relative units are not resolvable here.
func parseLength(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	units := map[string]float64{
		"px": 1, "pt": 96.0 / 72, "pc": 16, "mm": 96 / 25.4, "cm": 96 / 2.54, "in": 96,
	}
	factor := 1.0
	for suffix, f := range units {
		if strings.HasSuffix(s, suffix) {
			s, factor = strings.TrimSpace(strings.TrimSuffix(s, suffix)), f
			break
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v * factor, true
}

func attrFloat(attrs map[string]string, key string) float64 {
	v, _ := parseLength(attrs[key])
	return v
}

func applyStyle(s svgStyle, attrs map[string]string) svgStyle {
	if v, ok := attrs["fill"]; ok {
		s.fill = parsePaint(v, s.fill)
	}
	if v, ok := attrs["stroke"]; ok {
		s.stroke = parsePaint(v, s.stroke)
	}
	if v, ok := parseLength(attrs["stroke-width"]); ok && v >= 0 {
		s.strokeWidth = v
	}
	if attrs["display"] == "none" || attrs["visibility"] == "hidden" {
		s.hidden = true
	}
	return s
}

var namedColors = map[string][3]int{
	"black": {0, 0, 0}, "white": {255, 255, 255}, "red": {255, 0, 0},
	"green": {0, 128, 0}, "lime": {0, 255, 0}, "blue": {0, 0, 255},
	"yellow": {255, 255, 0}, "orange": {255, 165, 0}, "purple": {128, 0, 128},
	"gray": {128, 128, 128}, "grey": {128, 128, 128}, "silver": {192, 192, 192},
	"navy": {0, 0, 128}, "teal": {0, 128, 128}, "maroon": {128, 0, 0},
	"olive": {128, 128, 0}, "aqua": {0, 255, 255}, "fuchsia": {255, 0, 255},
}

// parsePaint understands none, #rgb, #rrggbb, rgb(...) and basic color
// names. Gradients and other references are drawn in mid gray.
func parsePaint(v string, inherited paint) paint {
	v = strings.ToLower(strings.TrimSpace(v))
	switch {
	case v == "" || v == "inherit":
		return inherited
	case v == "none" || v == "transparent":
		return paint{none: true}
	case v == "currentcolor":
		return paint{}
	case strings.HasPrefix(v, "url("):
		return paint{r: 128, g: 128, b: 128}
	case strings.HasPrefix(v, "#"):
		hex := v[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 {
			return paint{}
		}
		n, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return paint{}
		}
		return paint{r: int(n >> 16 & 0xff), g: int(n >> 8 & 0xff), b: int(n & 0xff)}
	case strings.HasPrefix(v, "rgb(") && strings.HasSuffix(v, ")"):
		parts := parseNumberList(v[4 : len(v)-1])
		if len(parts) < 3 {
			return paint{}
		}
		clamp := func(f float64) int { return int(math.Max(0, math.Min(255, f))) }
		return paint{r: clamp(parts[0]), g: clamp(parts[1]), b: clamp(parts[2])}
	}
	if c, ok := namedColors[v]; ok {
		return paint{r: c[0], g: c[1], b: c[2]}
	}
	return paint{}
}

func shapeSegments(name string, attrs map[string]string) []segment {
	switch name {
	case "path":
		// Keep what parsed before any malformed command.
		segs, _ := parsePath(attrs["d"])
		return segs
	case "rect":
		x, y := attrFloat(attrs, "x"), attrFloat(attrs, "y")
		w, h := attrFloat(attrs, "width"), attrFloat(attrs, "height")
		if w <= 0 || h <= 0 {
			return nil
		}
		return polyPath([]float64{x, y, x + w, y, x + w, y + h, x, y + h}, true)
	case "circle":
		r := attrFloat(attrs, "r")
		if r <= 0 {
			return nil
		}
		return ellipsePath(attrFloat(attrs, "cx"), attrFloat(attrs, "cy"), r, r)
	case "ellipse":
		rx, ry := attrFloat(attrs, "rx"), attrFloat(attrs, "ry")
		if rx <= 0 || ry <= 0 {
			return nil
		}
		return ellipsePath(attrFloat(attrs, "cx"), attrFloat(attrs, "cy"), rx, ry)
	case "line":
		return polyPath([]float64{
			attrFloat(attrs, "x1"), attrFloat(attrs, "y1"),
			attrFloat(attrs, "x2"), attrFloat(attrs, "y2"),
		}, false)
	case "polyline":
		return polyPath(parseNumberList(attrs["points"]), false)
	case "polygon":
		return polyPath(parseNumberList(attrs["points"]), true)
	}
	return nil
}

func (d *Drawing) bounds() (minX, minY, w, h float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, sh := range d.shapes {
		for _, s := range sh.segs {
			n := 1
			switch s.Op {
			case 'C':
				n = 3
			case 'Z':
				n = 0
			}
			for _, p := range s.Pts[:n] {
				minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
				minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
			}
		}
	}
	for _, tx := range d.texts {
		minX, maxX = math.Min(minX, tx.at.X), math.Max(maxX, tx.at.X)
		minY, maxY = math.Min(minY, tx.at.Y-tx.size), math.Max(maxY, tx.at.Y)
	}
	if math.IsInf(minX, 1) {
		return 0, 0, 0, 0
	}
	return minX, minY, maxX - minX, maxY - minY
}

// AddSVGFile draws the SVG at path on one page, scaled uniformly to fit the
// margins and centered. A document without a drawable extent still yields a
// page, carrying a diagnostic label instead of the drawing.
func (c *Canvas) AddSVGFile(path string) (int, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	d, err := ParseSVG(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	if d.Degenerate() {
		c.cfg.Logger.Warn("canvas: svg has no drawable extent", "path", path,
			"width", d.Width, "height", d.Height)
		label := fmt.Sprintf("%s\n\nSVG has no drawable extent (%gx%g)",
			filepath.Base(path), d.Width, d.Height)
		if err := c.AddPlaceholder(label); err != nil {
			return 0, err
		}
		return 1, nil
	}

	c.DrawSVG(d)
	c.cfg.Logger.Debug("canvas: svg drawn", "path", path, "shapes", d.Shapes(), "texts", d.Texts())
	return 1, c.pdf.Error()
}

// DrawSVG adds one page holding d. d must not be degenerate.
func (c *Canvas) DrawSVG(d *Drawing) {
	ax, ay, aw, ah := c.area()
	w, h := Fit(d.Width, d.Height, aw, ah)
	scale := w / d.Width
	ox, oy := ax+(aw-w)/2, ay+(ah-h)/2
	place := func(p point) (float64, float64) {
		return ox + (p.X-d.MinX)*scale, oy + (p.Y-d.MinY)*scale
	}

	c.pdf.AddPage()
	for _, sh := range d.shapes {
		style := ""
		if !sh.fill.none {
			style += "F"
			c.pdf.SetFillColor(sh.fill.r, sh.fill.g, sh.fill.b)
		}
		if !sh.stroke.none && sh.strokeWidth > 0 {
			style += "D"
			c.pdf.SetDrawColor(sh.stroke.r, sh.stroke.g, sh.stroke.b)
			c.pdf.SetLineWidth(sh.strokeWidth * scale)
		}
		if style == "" {
			continue
		}

		open := false
		for _, s := range sh.segs {
			switch s.Op {
			case 'M':
				c.pdf.MoveTo(place(s.Pts[0]))
				open = true
			case 'L':
				if !open {
					continue
				}
				c.pdf.LineTo(place(s.Pts[0]))
			case 'C':
				if !open {
					continue
				}
				x0, y0 := place(s.Pts[0])
				x1, y1 := place(s.Pts[1])
				x2, y2 := place(s.Pts[2])
				c.pdf.CurveBezierCubicTo(x0, y0, x1, y1, x2, y2)
			case 'Z':
				if open {
					c.pdf.ClosePath()
				}
			}
		}
		if open {
			c.pdf.DrawPath(style)
		}
	}

	// Text keeps its anchor and size; SVG fonts map to the core font.
	for _, tx := range d.texts {
		if tx.fill.none || tx.size*scale <= 0 {
			continue
		}
		c.pdf.SetTextColor(tx.fill.r, tx.fill.g, tx.fill.b)
		c.pdf.SetFontSize(tx.size * scale)
		x, y := place(tx.at)
		c.pdf.Text(x, y, c.tr(tx.body))
	}

	c.pdf.SetDrawColor(0, 0, 0)
	c.pdf.SetFillColor(0, 0, 0)
	c.pdf.SetTextColor(0, 0, 0)
	c.pdf.SetFontSize(c.cfg.FontSize)
	c.pdf.SetLineWidth(1)
}
