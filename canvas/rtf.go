package canvas

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// ErrNotRTF is returned when the input does not start with an RTF header.
var ErrNotRTF = errors.New("not an RTF document")

// rtfSkipped lists destinations whose content is never visible text.
var rtfSkipped = map[string]bool{
	"fonttbl": true, "colortbl": true, "stylesheet": true, "info": true,
	"pict": true, "shppict": true, "nonshppict": true, "object": true,
	"objdata": true, "fldinst": true, "header": true, "headerl": true,
	"headerr": true, "headerf": true, "footer": true, "footerl": true,
	"footerr": true, "footerf": true, "listtable": true,
	"listoverridetable": true, "rsidtbl": true, "generator": true,
	"xmlnstbl": true, "themedata": true, "colorschememapping": true,
	"latentstyles": true, "datastore": true, "filetbl": true, "revtbl": true,
	"pgdsctbl": true, "author": true, "operator": true, "title": true,
	"subject": true, "keywords": true, "comment": true, "doccomm": true,
	"company": true, "creatim": true, "revtim": true, "printim": true,
	"buptim": true, "template": true, "userprops": true, "falt": true,
	"panose": true, "fontemb": true, "fontfile": true, "bkmkstart": true,
	"bkmkend": true, "mmathPr": true, "wgrffmtfilter": true,
}

var rtfSpecials = map[string]string{
	"par": "\n", "line": "\n", "sect": "\n\n", "page": "\n\n", "row": "\n",
	"tab": "\t", "cell": "\t",
	"emdash": "—", "endash": "–", "bullet": "•",
	"lquote": "‘", "rquote": "’", "ldblquote": "“", "rdblquote": "”",
	"emspace": " ", "enspace": " ", "qmspace": " ",
}

type rtfGroup struct {
	skip bool
	uc   int // fallback characters following \uN
}

type rtfStripper struct {
	src     []byte
	pos     int
	cur     rtfGroup
	stack   []rtfGroup
	out     strings.Builder
	pending []byte // \'hh bytes awaiting code-page decoding
	skipN   int    // \uN fallback characters still to drop
	dec     *encoding.Decoder
}

// StripRTF returns the visible text of an RTF document.
func StripRTF(data []byte) (string, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte(`{\rtf`)) {
		return "", ErrNotRTF
	}
	s := &rtfStripper{
		src: trimmed,
		cur: rtfGroup{uc: 1},
		dec: charmap.Windows1252.NewDecoder(),
	}
	s.run()
	return strings.TrimSpace(s.out.String()), nil
}

func (s *rtfStripper) run() {
	for s.pos < len(s.src) {
		ch := s.src[s.pos]
		switch ch {
		case '{':
			s.flush()
			s.stack = append(s.stack, s.cur)
			s.skipN = 0
			s.pos++
		case '}':
			s.flush()
			if n := len(s.stack); n > 0 {
				s.cur = s.stack[n-1]
				s.stack = s.stack[:n-1]
			}
			s.skipN = 0
			s.pos++
		case '\\':
			s.pos++
			s.control()
		case '\r', '\n':
			s.pos++
		default:
			s.pos++
			if s.consumeFallback() {
				continue
			}
			if ch >= 0x80 {
				// 8-bit text is in the document code page, like \'hh.
				if !s.cur.skip {
					s.pending = append(s.pending, ch)
				}
				continue
			}
			s.flush()
			s.emit(string(ch))
		}
	}
	s.flush()
}

func (s *rtfStripper) control() {
	if s.pos >= len(s.src) {
		return
	}
	c := s.src[s.pos]
	switch {
	case c == '\\' || c == '{' || c == '}':
		s.pos++
		if s.consumeFallback() {
			return
		}
		s.flush()
		s.emit(string(c))
	case c == '\'':
		s.pos++
		if s.pos+2 > len(s.src) {
			s.pos = len(s.src)
			return
		}
		v, err := strconv.ParseUint(string(s.src[s.pos:s.pos+2]), 16, 8)
		s.pos += 2
		if err != nil || s.consumeFallback() {
			return
		}
		if !s.cur.skip {
			s.pending = append(s.pending, byte(v))
		}
	case c == '*':
		s.pos++
		s.cur.skip = true
	case c == '~':
		s.pos++
		s.flush()
		s.emit(" ")
	case c == '_':
		s.pos++
		s.flush()
		s.emit("-")
	case c == '\n' || c == '\r':
		s.pos++
		s.flush()
		s.emit("\n")
	case isASCIILetter(c):
		s.word()
	default:
		// \- optional hyphen, \: index subentry and other control symbols
		s.pos++
	}
}

func (s *rtfStripper) word() {
	start := s.pos
	for s.pos < len(s.src) && isASCIILetter(s.src[s.pos]) {
		s.pos++
	}
	name := string(s.src[start:s.pos])

	pstart := s.pos
	if s.pos < len(s.src) && s.src[s.pos] == '-' {
		s.pos++
	}
	for s.pos < len(s.src) && s.src[s.pos] >= '0' && s.src[s.pos] <= '9' {
		s.pos++
	}
	param, err := strconv.Atoi(string(s.src[pstart:s.pos]))
	hasParam := err == nil

	if s.pos < len(s.src) && s.src[s.pos] == ' ' {
		s.pos++
	}

	if rtfSkipped[name] {
		s.cur.skip = true
		return
	}

	switch name {
	case "u":
		if !hasParam {
			return
		}
		if param < 0 {
			param += 65536
		}
		s.flush()
		s.emit(string(rune(param)))
		s.skipN = s.cur.uc
	case "uc":
		if hasParam && param >= 0 {
			s.cur.uc = param
		}
	case "ansicpg":
		if !hasParam {
			return
		}
		if enc, err := htmlindex.Get("windows-" + strconv.Itoa(param)); err == nil {
			s.flush()
			s.dec = enc.NewDecoder()
		}
	default:
		if text, ok := rtfSpecials[name]; ok {
			s.flush()
			s.emit(text)
		}
	}
}

// consumeFallback drops one character that follows a \uN escape.
func (s *rtfStripper) consumeFallback() bool {
	if s.skipN > 0 {
		s.skipN--
		return true
	}
	return false
}

func (s *rtfStripper) emit(text string) {
	if s.cur.skip {
		return
	}
	s.out.WriteString(text)
}

func (s *rtfStripper) flush() {
	if len(s.pending) == 0 {
		return
	}
	if out, err := s.dec.Bytes(s.pending); err == nil {
		s.emit(string(out))
	}
	s.pending = s.pending[:0]
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
