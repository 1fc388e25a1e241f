// Package pagerange parses user page selections such as "1,3,5-7".
//
// The same parser backs page deletion, extraction and splitting; callers
// differ only in how they use the returned index set.
package pagerange

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalid is wrapped by every parse error.
var ErrInvalid = errors.New("invalid page range")

type parseError struct {
	msg string
}

func (e *parseError) Error() string { return e.msg }
func (e *parseError) Unwrap() error { return ErrInvalid }

func errorf(format string, args ...any) error {
	return &parseError{msg: fmt.Sprintf(format, args...)}
}

// Parse converts spec into sorted, deduplicated, zero-based page indices.
// Pages in spec are 1-based and bounded by totalPages.
func Parse(spec string, totalPages int) ([]int, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, errorf("range specification is empty")
	}

	set := make(map[int]struct{})
	for _, tok := range strings.Split(spec, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}

		lo, hi, isRange, err := parseToken(tok)
		if err != nil {
			return nil, err
		}

		if !isRange {
			if lo < 1 || lo > totalPages {
				return nil, errorf("page %d out of bounds (document has %d pages)", lo, totalPages)
			}
			set[lo-1] = struct{}{}
			continue
		}

		if lo > hi || lo < 1 || hi > totalPages {
			return nil, errorf("invalid range %q (document has %d pages)", tok, totalPages)
		}
		for p := lo; p <= hi; p++ {
			set[p-1] = struct{}{}
		}
	}

	if len(set) == 0 {
		return nil, errorf("no valid pages specified")
	}

	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}

func parseToken(tok string) (lo, hi int, isRange bool, err error) {
	left, right, found := strings.Cut(tok, "-")
	if !found {
		n, err := strconv.Atoi(tok)
		if err != nil {
			return 0, 0, false, errorf("invalid page token %q", tok)
		}
		return n, n, false, nil
	}

	lo, err1 := strconv.Atoi(strings.TrimSpace(left))
	hi, err2 := strconv.Atoi(strings.TrimSpace(right))
	if err1 != nil || err2 != nil {
		return 0, 0, false, errorf("invalid page token %q", tok)
	}
	return lo, hi, true, nil
}

// Selection converts zero-based indices into 1-based page numbers as strings,
// the selection form expected by pdfcpu.
func Selection(indices []int) []string {
	sel := make([]string, len(indices))
	for i, idx := range indices {
		sel[i] = strconv.Itoa(idx + 1)
	}
	return sel
}

// Complement returns the zero-based indices in [0,total) not present in indices.
func Complement(indices []int, total int) []int {
	drop := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		drop[i] = struct{}{}
	}
	var keep []int
	for i := 0; i < total; i++ {
		if _, ok := drop[i]; !ok {
			keep = append(keep, i)
		}
	}
	return keep
}
