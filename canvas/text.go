package canvas

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
	xunicode "golang.org/x/text/encoding/unicode"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Decode converts raw file bytes to a string. A byte-order mark selects
// UTF-8 or UTF-16; otherwise valid UTF-8 is used as is and anything else is
// decoded with the fallback encoding (a WHATWG label such as windows-1252,
// iso-8859-15, koi8-r). Single-byte fallbacks never fail.
func Decode(data []byte, fallback string) (string, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		data = data[len(bomUTF8):]
	case bytes.HasPrefix(data, bomUTF16LE):
		out, err := xunicode.UTF16(xunicode.LittleEndian, xunicode.ExpectBOM).NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("utf-16le: %w", err)
		}
		return string(out), nil
	case bytes.HasPrefix(data, bomUTF16BE):
		out, err := xunicode.UTF16(xunicode.BigEndian, xunicode.ExpectBOM).NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("utf-16be: %w", err)
		}
		return string(out), nil
	}

	if utf8.Valid(data) {
		return string(data), nil
	}

	enc, err := htmlindex.Get(fallback)
	if err != nil {
		return "", fmt.Errorf("fallback encoding %q: %w", fallback, err)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", fallback, err)
	}
	return string(out), nil
}

func (c *Canvas) lineHeight() float64 {
	return c.cfg.FontSize * c.cfg.LineSpacing
}

// LinesPerPage is the number of text lines that fit between the margins.
func (c *Canvas) LinesPerPage() int {
	_, _, _, ah := c.area()
	n := int(math.Floor((ah-c.cfg.FontSize)/c.lineHeight())) + 1
	if n < 1 {
		n = 1
	}
	return n
}

// Layout wraps text to the page width using the configured font metrics and
// splits the lines into pages. Lines are returned in the code page used by
// the core fonts. The result always holds at least one (possibly empty) page.
func (c *Canvas) Layout(text string) [][]string {
	_, _, aw, _ := c.area()

	text = c.normalize(text)
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		enc := c.tr(para)
		if strings.TrimSpace(enc) == "" {
			lines = append(lines, "")
			continue
		}
		for _, l := range c.pdf.SplitLines([]byte(enc), aw) {
			lines = append(lines, strings.TrimRight(string(l), " "))
		}
	}

	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	return paginate(lines, c.LinesPerPage())
}

// normalize unifies line endings, expands tabs and drops control characters.
func (c *Canvas) normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\f", "\n")
	tab := strings.Repeat(" ", c.cfg.TabWidth)

	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n':
			sb.WriteRune(r)
		case r == '\t':
			sb.WriteString(tab)
		case r == ' ':
			sb.WriteByte(' ')
		case unicode.IsControl(r), r == '\uFEFF':
			// dropped
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func paginate(lines []string, perPage int) [][]string {
	if len(lines) == 0 {
		return [][]string{{}}
	}
	var pages [][]string
	for start := 0; start < len(lines); start += perPage {
		end := start + perPage
		if end > len(lines) {
			end = len(lines)
		}
		pages = append(pages, lines[start:end])
	}
	return pages
}
