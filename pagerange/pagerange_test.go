package pagerange

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		spec  string
		total int
		want  []int
	}{
		{"1,3,5-7", 10, []int{0, 2, 4, 5, 6}},
		{"1", 1, []int{0}},
		{" 2 , 4 - 5 ", 5, []int{1, 3, 4}},
		{"5-7,6,1-2", 10, []int{0, 1, 4, 5, 6}},
		{"3-3", 3, []int{2}},
		{"1,,2", 2, []int{0, 1}},
		{"10,1", 10, []int{0, 9}},
	}
	for _, tt := range tests {
		got, err := Parse(tt.spec, tt.total)
		if err != nil {
			t.Errorf("Parse(%q, %d): %v", tt.spec, tt.total, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Parse(%q, %d) = %v, want %v", tt.spec, tt.total, got, tt.want)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		spec    string
		total   int
		wantMsg string
	}{
		{"", 10, "range specification is empty"},
		{"   ", 10, "range specification is empty"},
		{"abc", 10, `invalid page token "abc"`},
		{"1,x", 10, `invalid page token "x"`},
		{"-3", 10, `invalid page token "-3"`},
		{"1-2-3", 10, `invalid page token "1-2-3"`},
		{"11", 10, "page 11 out of bounds (document has 10 pages)"},
		{"0", 10, "page 0 out of bounds"},
		{"5-3", 10, `invalid range "5-3"`},
		{"8-12", 10, `invalid range "8-12" (document has 10 pages)`},
		{"0-2", 10, `invalid range "0-2"`},
		{",", 10, "no valid pages specified"},
		{" , , ", 10, "no valid pages specified"},
	}
	for _, tt := range tests {
		_, err := Parse(tt.spec, tt.total)
		if err == nil {
			t.Errorf("Parse(%q): expected error", tt.spec)
			continue
		}
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("Parse(%q): error %v does not wrap ErrInvalid", tt.spec, err)
		}
		if !strings.Contains(err.Error(), tt.wantMsg) {
			t.Errorf("Parse(%q) error = %q, want it to contain %q", tt.spec, err, tt.wantMsg)
		}
	}
}

func TestParse_ValidationOrder(t *testing.T) {
	// WHAT: the first offending token determines the error.
	// WHY: users fix one token at a time; the message must name it.
	_, err := Parse("abc,99", 10)
	if err == nil || !strings.Contains(err.Error(), "abc") {
		t.Fatalf("expected token error first, got %v", err)
	}
	_, err = Parse("99,abc", 10)
	if err == nil || !strings.Contains(err.Error(), "out of bounds") {
		t.Fatalf("expected bounds error first, got %v", err)
	}
}

func TestSelection(t *testing.T) {
	got := Selection([]int{0, 2, 9})
	want := []string{"1", "3", "10"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Selection = %v, want %v", got, want)
	}
}

func TestComplement(t *testing.T) {
	got := Complement([]int{0, 2}, 4)
	if !reflect.DeepEqual(got, []int{1, 3}) {
		t.Fatalf("Complement = %v", got)
	}
	if got := Complement([]int{0, 1}, 2); len(got) != 0 {
		t.Fatalf("Complement of all pages = %v, want empty", got)
	}
}
