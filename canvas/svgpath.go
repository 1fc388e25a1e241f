package canvas

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type point struct{ X, Y float64 }

// segment is one absolute path operation. Quadratic curves and arcs are
// converted to cubic Béziers, so only M, L, C and Z remain.
type segment struct {
	Op  byte
	Pts [3]point
}

// matrix is an SVG affine transform [a b c d e f].
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

func (m matrix) apply(p point) point {
	return point{m[0]*p.X + m[2]*p.Y + m[4], m[1]*p.X + m[3]*p.Y + m[5]}
}

// mul returns m×n: n is applied first.
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[2]*n[1],
		m[1]*n[0] + m[3]*n[1],
		m[0]*n[2] + m[2]*n[3],
		m[1]*n[2] + m[3]*n[3],
		m[0]*n[4] + m[2]*n[5] + m[4],
		m[1]*n[4] + m[3]*n[5] + m[5],
	}
}

// scale is the mean linear scale factor, used for stroke widths.
func (m matrix) scale() float64 {
	return math.Sqrt(math.Abs(m[0]*m[3] - m[1]*m[2]))
}

func transformSegments(segs []segment, m matrix) []segment {
	if m == identity {
		return segs
	}
	out := make([]segment, len(segs))
	for i, s := range segs {
		out[i] = s
		for j := range s.Pts {
			out[i].Pts[j] = m.apply(s.Pts[j])
		}
	}
	return out
}

// parseTransform parses an SVG transform list. Unknown functions are ignored.
func parseTransform(s string) matrix {
	m := identity
	for {
		s = strings.TrimLeft(s, " \t\r\n,")
		open := strings.IndexByte(s, '(')
		if open < 0 {
			return m
		}
		end := strings.IndexByte(s[open:], ')')
		if end < 0 {
			return m
		}
		name := strings.TrimSpace(s[:open])
		args := parseNumberList(s[open+1 : open+end])
		s = s[open+end+1:]

		var t matrix
		switch {
		case name == "matrix" && len(args) == 6:
			copy(t[:], args)
		case name == "translate" && len(args) >= 1:
			ty := 0.0
			if len(args) > 1 {
				ty = args[1]
			}
			t = matrix{1, 0, 0, 1, args[0], ty}
		case name == "scale" && len(args) >= 1:
			sy := args[0]
			if len(args) > 1 {
				sy = args[1]
			}
			t = matrix{args[0], 0, 0, sy, 0, 0}
		case name == "rotate" && len(args) >= 1:
			a := args[0] * math.Pi / 180
			cos, sin := math.Cos(a), math.Sin(a)
			t = matrix{cos, sin, -sin, cos, 0, 0}
			if len(args) == 3 {
				t = matrix{1, 0, 0, 1, args[1], args[2]}.mul(t).mul(matrix{1, 0, 0, 1, -args[1], -args[2]})
			}
		case name == "skewX" && len(args) == 1:
			t = matrix{1, 0, math.Tan(args[0] * math.Pi / 180), 1, 0, 0}
		case name == "skewY" && len(args) == 1:
			t = matrix{1, math.Tan(args[0] * math.Pi / 180), 0, 1, 0, 0}
		default:
			continue
		}
		m = m.mul(t)
	}
}

func parseNumberList(s string) []float64 {
	sc := pathScanner{s: s}
	var out []float64
	for {
		v, ok := sc.number()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

// pathScanner tokenizes SVG path data and number lists.
type pathScanner struct {
	s   string
	pos int
}

func (sc *pathScanner) skipSep() {
	for sc.pos < len(sc.s) {
		switch sc.s[sc.pos] {
		case ' ', '\t', '\r', '\n', ',':
			sc.pos++
		default:
			return
		}
	}
}

// command returns the next command letter, if one is next.
func (sc *pathScanner) command() (byte, bool) {
	sc.skipSep()
	if sc.pos >= len(sc.s) {
		return 0, false
	}
	c := sc.s[sc.pos]
	if isASCIILetter(c) && c != 'e' && c != 'E' {
		sc.pos++
		return c, true
	}
	return 0, false
}

func (sc *pathScanner) number() (float64, bool) {
	sc.skipSep()
	start := sc.pos
	i := sc.pos
	if i < len(sc.s) && (sc.s[i] == '+' || sc.s[i] == '-') {
		i++
	}
	digits, dot := 0, false
	for i < len(sc.s) {
		c := sc.s[i]
		if c >= '0' && c <= '9' {
			digits++
		} else if c == '.' && !dot {
			dot = true
		} else {
			break
		}
		i++
	}
	if digits == 0 {
		return 0, false
	}
	if i < len(sc.s) && (sc.s[i] == 'e' || sc.s[i] == 'E') {
		j := i + 1
		if j < len(sc.s) && (sc.s[j] == '+' || sc.s[j] == '-') {
			j++
		}
		k := j
		for k < len(sc.s) && sc.s[k] >= '0' && sc.s[k] <= '9' {
			k++
		}
		if k > j {
			i = k
		}
	}
	v, err := strconv.ParseFloat(sc.s[start:i], 64)
	if err != nil {
		return 0, false
	}
	sc.pos = i
	return v, true
}

// flag reads an arc flag, which may be packed without separators ("011").
func (sc *pathScanner) flag() (bool, bool) {
	sc.skipSep()
	if sc.pos >= len(sc.s) {
		return false, false
	}
	switch sc.s[sc.pos] {
	case '0':
		sc.pos++
		return false, true
	case '1':
		sc.pos++
		return true, true
	}
	return false, false
}

func (sc *pathScanner) numbers(n int) ([]float64, bool) {
	out := make([]float64, n)
	for i := range out {
		v, ok := sc.number()
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// parsePath converts SVG path data into absolute segments. Parsing stops at
// the first malformed command; the segments read so far are kept, as SVG
// renderers do.
func parsePath(d string) ([]segment, error) {
	sc := pathScanner{s: d}
	var (
		segs       []segment
		cur, start point
		lastCtrl   point
		lastCmd    byte
		cmd        byte
	)

	for {
		if c, ok := sc.command(); ok {
			cmd = c
		} else {
			sc.skipSep()
			if sc.pos >= len(sc.s) {
				return segs, nil
			}
			if cmd == 0 || cmd == 'z' || cmd == 'Z' {
				return segs, fmt.Errorf("path data: unexpected %q at offset %d", sc.s[sc.pos], sc.pos)
			}
			// Implicit repetition; a moveto repeats as lineto.
			if cmd == 'M' {
				cmd = 'L'
			} else if cmd == 'm' {
				cmd = 'l'
			}
		}

		rel := cmd >= 'a' && cmd <= 'z'
		abs := func(x, y float64) point {
			if rel {
				return point{cur.X + x, cur.Y + y}
			}
			return point{x, y}
		}
		bad := func() ([]segment, error) {
			return segs, fmt.Errorf("path data: malformed %q command at offset %d", cmd, sc.pos)
		}

		switch cmd | 0x20 {
		case 'm':
			a, ok := sc.numbers(2)
			if !ok {
				return bad()
			}
			cur = abs(a[0], a[1])
			start = cur
			segs = append(segs, segment{Op: 'M', Pts: [3]point{cur}})
		case 'l':
			a, ok := sc.numbers(2)
			if !ok {
				return bad()
			}
			cur = abs(a[0], a[1])
			segs = append(segs, segment{Op: 'L', Pts: [3]point{cur}})
		case 'h':
			v, ok := sc.number()
			if !ok {
				return bad()
			}
			if rel {
				cur.X += v
			} else {
				cur.X = v
			}
			segs = append(segs, segment{Op: 'L', Pts: [3]point{cur}})
		case 'v':
			v, ok := sc.number()
			if !ok {
				return bad()
			}
			if rel {
				cur.Y += v
			} else {
				cur.Y = v
			}
			segs = append(segs, segment{Op: 'L', Pts: [3]point{cur}})
		case 'c':
			a, ok := sc.numbers(6)
			if !ok {
				return bad()
			}
			c1, c2, end := abs(a[0], a[1]), abs(a[2], a[3]), abs(a[4], a[5])
			segs = append(segs, segment{Op: 'C', Pts: [3]point{c1, c2, end}})
			lastCtrl, cur = c2, end
		case 's':
			a, ok := sc.numbers(4)
			if !ok {
				return bad()
			}
			c1 := cur
			if l := lastCmd | 0x20; l == 'c' || l == 's' {
				c1 = point{2*cur.X - lastCtrl.X, 2*cur.Y - lastCtrl.Y}
			}
			c2, end := abs(a[0], a[1]), abs(a[2], a[3])
			segs = append(segs, segment{Op: 'C', Pts: [3]point{c1, c2, end}})
			lastCtrl, cur = c2, end
		case 'q':
			a, ok := sc.numbers(4)
			if !ok {
				return bad()
			}
			q, end := abs(a[0], a[1]), abs(a[2], a[3])
			segs = append(segs, quadToCubic(cur, q, end))
			lastCtrl, cur = q, end
		case 't':
			a, ok := sc.numbers(2)
			if !ok {
				return bad()
			}
			q := cur
			if l := lastCmd | 0x20; l == 'q' || l == 't' {
				q = point{2*cur.X - lastCtrl.X, 2*cur.Y - lastCtrl.Y}
			}
			end := abs(a[0], a[1])
			segs = append(segs, quadToCubic(cur, q, end))
			lastCtrl, cur = q, end
		case 'a':
			r, ok := sc.numbers(3)
			if !ok {
				return bad()
			}
			large, ok1 := sc.flag()
			sweep, ok2 := sc.flag()
			e, ok3 := sc.numbers(2)
			if !ok1 || !ok2 || !ok3 {
				return bad()
			}
			end := abs(e[0], e[1])
			segs = append(segs, arcToCubics(cur, r[0], r[1], r[2], large, sweep, end)...)
			cur = end
		case 'z':
			segs = append(segs, segment{Op: 'Z'})
			cur = start
		default:
			return segs, fmt.Errorf("path data: unknown command %q", cmd)
		}
		lastCmd = cmd
	}
}

func quadToCubic(p0, q, p1 point) segment {
	c1 := point{p0.X + 2.0/3*(q.X-p0.X), p0.Y + 2.0/3*(q.Y-p0.Y)}
	c2 := point{p1.X + 2.0/3*(q.X-p1.X), p1.Y + 2.0/3*(q.Y-p1.Y)}
	return segment{Op: 'C', Pts: [3]point{c1, c2, p1}}
}

// arcToCubics approximates an SVG elliptical arc with cubic Béziers, one per
// quarter turn at most, using the endpoint-to-center conversion of the SVG
// implementation notes.
func arcToCubics(p1 point, rx, ry, phiDeg float64, large, sweep bool, p2 point) []segment {
	if p1 == p2 {
		return nil
	}
	rx, ry = math.Abs(rx), math.Abs(ry)
	if rx == 0 || ry == 0 {
		return []segment{{Op: 'L', Pts: [3]point{p2}}}
	}

	phi := phiDeg * math.Pi / 180
	cos, sin := math.Cos(phi), math.Sin(phi)
	dx, dy := (p1.X-p2.X)/2, (p1.Y-p2.Y)/2
	x1p := cos*dx + sin*dy
	y1p := -sin*dx + cos*dy

	if l := x1p*x1p/(rx*rx) + y1p*y1p/(ry*ry); l > 1 {
		rx *= math.Sqrt(l)
		ry *= math.Sqrt(l)
	}

	num := rx*rx*ry*ry - rx*rx*y1p*y1p - ry*ry*x1p*x1p
	den := rx*rx*y1p*y1p + ry*ry*x1p*x1p
	coef := 0.0
	if den != 0 && num > 0 {
		coef = math.Sqrt(num / den)
	}
	if large == sweep {
		coef = -coef
	}
	cxp := coef * rx * y1p / ry
	cyp := -coef * ry * x1p / rx
	cx := cos*cxp - sin*cyp + (p1.X+p2.X)/2
	cy := sin*cxp + cos*cyp + (p1.Y+p2.Y)/2

	angle := func(ux, uy, vx, vy float64) float64 {
		return math.Atan2(ux*vy-uy*vx, ux*vx+uy*vy)
	}
	theta := angle(1, 0, (x1p-cxp)/rx, (y1p-cyp)/ry)
	delta := angle((x1p-cxp)/rx, (y1p-cyp)/ry, (-x1p-cxp)/rx, (-y1p-cyp)/ry)
	if !sweep && delta > 0 {
		delta -= 2 * math.Pi
	} else if sweep && delta < 0 {
		delta += 2 * math.Pi
	}

	n := int(math.Ceil(math.Abs(delta) / (math.Pi / 2)))
	if n < 1 {
		n = 1
	}
	step := delta / float64(n)
	k := 4.0 / 3 * math.Tan(step/4)

	mapUnit := func(ux, uy float64) point {
		return point{
			cx + rx*ux*cos - ry*uy*sin,
			cy + rx*ux*sin + ry*uy*cos,
		}
	}

	segs := make([]segment, 0, n)
	for i := 0; i < n; i++ {
		a1 := theta + float64(i)*step
		a2 := a1 + step
		c1x, c1y := math.Cos(a1), math.Sin(a1)
		c2x, c2y := math.Cos(a2), math.Sin(a2)
		segs = append(segs, segment{Op: 'C', Pts: [3]point{
			mapUnit(c1x-k*c1y, c1y+k*c1x),
			mapUnit(c2x+k*c2y, c2y-k*c2x),
			mapUnit(c2x, c2y),
		}})
	}
	// Land exactly on the requested endpoint.
	segs[n-1].Pts[2] = p2
	return segs
}

// ellipsePath returns a closed ellipse as four cubic Béziers.
func ellipsePath(cx, cy, rx, ry float64) []segment {
	const k = 0.5522847498
	return []segment{
		{Op: 'M', Pts: [3]point{{cx + rx, cy}}},
		{Op: 'C', Pts: [3]point{{cx + rx, cy + k*ry}, {cx + k*rx, cy + ry}, {cx, cy + ry}}},
		{Op: 'C', Pts: [3]point{{cx - k*rx, cy + ry}, {cx - rx, cy + k*ry}, {cx - rx, cy}}},
		{Op: 'C', Pts: [3]point{{cx - rx, cy - k*ry}, {cx - k*rx, cy - ry}, {cx, cy - ry}}},
		{Op: 'C', Pts: [3]point{{cx + k*rx, cy - ry}, {cx + rx, cy - k*ry}, {cx + rx, cy}}},
		{Op: 'Z'},
	}
}

func polyPath(points []float64, closed bool) []segment {
	if len(points) < 4 {
		return nil
	}
	segs := []segment{{Op: 'M', Pts: [3]point{{points[0], points[1]}}}}
	for i := 2; i+1 < len(points); i += 2 {
		segs = append(segs, segment{Op: 'L', Pts: [3]point{{points[i], points[i+1]}}})
	}
	if closed {
		segs = append(segs, segment{Op: 'Z'})
	}
	return segs
}
