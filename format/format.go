// Package format classifies input files into the conversion path they take.
//
// Classification is a pure function of the lowercased file extension. The
// extension table below is the only place that knows which extensions are
// supported: the CLI file filters, the MCP/HTTP format listings and the
// conversion dispatch all read it, so they never disagree.
//
// Usage:
//
//	switch format.Classify("/tmp/report.docx") {
//	case format.OfficeWord:
//		...
//	}
package format

import (
	"path/filepath"
	"sort"
	"strings"
)

// Class identifies how a file must be handled.
type Class string

const (
	ExistingPDF      Class = "existing_pdf"
	RasterImage      Class = "raster_image"
	PlainText        Class = "plain_text"
	RichText         Class = "rich_text"
	HTML             Class = "html"
	VectorSVG        Class = "vector_svg"
	OfficeWord       Class = "office_word"
	OfficeExcel      Class = "office_excel"
	OfficePowerPoint Class = "office_powerpoint"
	ODFText          Class = "odf_text"
	ODFSpreadsheet   Class = "odf_spreadsheet"
	ODFPresentation  Class = "odf_presentation"
	Unsupported      Class = "unsupported"
)

// table maps lowercased extensions (with dot) to their class.
var table = map[string]Class{
	".pdf": ExistingPDF,

	".png":  RasterImage,
	".jpg":  RasterImage,
	".jpeg": RasterImage,
	".gif":  RasterImage,
	".bmp":  RasterImage,
	".tif":  RasterImage,
	".tiff": RasterImage,
	".webp": RasterImage,

	".txt":  PlainText,
	".text": PlainText,
	".log":  PlainText,
	".md":   PlainText,
	".csv":  PlainText,

	".rtf": RichText,

	".html":  HTML,
	".htm":   HTML,
	".xhtml": HTML,

	".svg": VectorSVG,

	".doc":  OfficeWord,
	".docx": OfficeWord,
	".docm": OfficeWord,
	".dot":  OfficeWord,
	".dotx": OfficeWord,

	".xls":  OfficeExcel,
	".xlsx": OfficeExcel,
	".xlsm": OfficeExcel,

	".ppt":  OfficePowerPoint,
	".pptx": OfficePowerPoint,
	".pptm": OfficePowerPoint,
	".pps":  OfficePowerPoint,
	".ppsx": OfficePowerPoint,

	".odt": ODFText,
	".ods": ODFSpreadsheet,
	".odp": ODFPresentation,
}

// Classify returns the class of path based on its extension.
// Unknown or missing extensions map to Unsupported.
func Classify(path string) Class {
	ext := strings.ToLower(filepath.Ext(path))
	if c, ok := table[ext]; ok {
		return c
	}
	return Unsupported
}

// IsOffice reports whether the class goes through the office fallback chain.
func (c Class) IsOffice() bool {
	switch c {
	case OfficeWord, OfficeExcel, OfficePowerPoint, ODFText, ODFSpreadsheet, ODFPresentation:
		return true
	}
	return false
}

// IsODF reports whether the class is an OpenDocument format.
func (c Class) IsODF() bool {
	return c == ODFText || c == ODFSpreadsheet || c == ODFPresentation
}

// Drawable reports whether the class is drawn directly onto a shared canvas.
func (c Class) Drawable() bool {
	switch c {
	case RasterImage, PlainText, RichText, VectorSVG:
		return true
	}
	return false
}

// Classes returns every supported class in a stable order (Unsupported excluded).
func Classes() []Class {
	return []Class{
		ExistingPDF, RasterImage, PlainText, RichText, HTML, VectorSVG,
		OfficeWord, OfficeExcel, OfficePowerPoint,
		ODFText, ODFSpreadsheet, ODFPresentation,
	}
}

// Extensions returns the sorted extensions (with dot) mapped to c.
func Extensions(c Class) []string {
	var exts []string
	for ext, cl := range table {
		if cl == c {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}

// Supported returns every supported extension (with dot), sorted.
func Supported() []string {
	exts := make([]string, 0, len(table))
	for ext := range table {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Filter is a named group of glob patterns for a file picker.
type Filter struct {
	Name     string   `json:"name"`
	Patterns []string `json:"patterns"`
}

// FileFilter returns file-picker filters grouped by family, preceded by an
// "All supported" entry. Patterns are derived from the extension table.
func FileFilter() []Filter {
	groups := []struct {
		name    string
		classes []Class
	}{
		{"PDF documents", []Class{ExistingPDF}},
		{"Images", []Class{RasterImage, VectorSVG}},
		{"Text documents", []Class{PlainText, RichText}},
		{"Web pages", []Class{HTML}},
		{"Office documents", []Class{OfficeWord, OfficeExcel, OfficePowerPoint}},
		{"OpenDocument", []Class{ODFText, ODFSpreadsheet, ODFPresentation}},
	}

	all := Filter{Name: "All supported"}
	for _, ext := range Supported() {
		all.Patterns = append(all.Patterns, "*"+ext)
	}

	filters := []Filter{all}
	for _, g := range groups {
		f := Filter{Name: g.name}
		for _, c := range g.classes {
			for _, ext := range Extensions(c) {
				f.Patterns = append(f.Patterns, "*"+ext)
			}
		}
		filters = append(filters, f)
	}
	return filters
}
