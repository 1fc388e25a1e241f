package convert

import (
	"github.com/hazyhaar/docpdf/format"
	"github.com/hazyhaar/docpdf/office"
)

// Handler names reported by Formats and Plan.
const (
	HandlerCopy    = "copy"
	HandlerCanvas  = "canvas"
	HandlerBrowser = "browser"
	HandlerOffice  = "office"
	HandlerNone    = "none"
)

// FormatInfo describes one supported input class.
type FormatInfo struct {
	Class      format.Class `json:"class"`
	Extensions []string     `json:"extensions"`
	Handler    string       `json:"handler"`
}

// Formats lists every supported class with its extensions.
func Formats() []FormatInfo {
	classes := format.Classes()
	out := make([]FormatInfo, 0, len(classes))
	for _, c := range classes {
		out = append(out, FormatInfo{Class: c, Extensions: format.Extensions(c), Handler: handlerFor(c)})
	}
	return out
}

func handlerFor(c format.Class) string {
	switch {
	case c == format.ExistingPDF:
		return HandlerCopy
	case c.Drawable():
		return HandlerCanvas
	case c == format.HTML:
		return HandlerBrowser
	case c.IsOffice():
		return HandlerOffice
	}
	return HandlerNone
}

// HTMLStatus reports the HTML renderer state.
type HTMLStatus struct {
	Available    bool   `json:"available"`
	Browser      string `json:"browser,omitempty"`
	TextFallback bool   `json:"text_fallback"`
}

// ConverterInfo reports the external converters the orchestrator can use.
type ConverterInfo struct {
	Office []office.Status `json:"office"`
	HTML   HTMLStatus      `json:"html"`
}

// Converters reports converter availability without starting any tool.
func (o *Orchestrator) Converters() ConverterInfo {
	info := ConverterInfo{
		Office: o.office.Availability().Statuses(),
		HTML: HTMLStatus{
			Available:    o.html.Available(),
			TextFallback: !o.cfg.NoHTMLTextFallback,
		},
	}
	if bp, ok := o.html.(interface{ BrowserPath() string }); ok {
		info.HTML.Browser = bp.BrowserPath()
	}
	return info
}

// Planned is the predicted handling of one input.
type Planned struct {
	Path    string       `json:"path"`
	Class   format.Class `json:"class"`
	Handler string       `json:"handler"`
	// Ready is false when the input is unsupported or needs a converter
	// that is not installed.
	Ready bool `json:"ready"`
}

// Plan classifies inputs without converting anything.
func (o *Orchestrator) Plan(inputs []string) []Planned {
	avail := o.office.Availability()
	out := make([]Planned, len(inputs))
	for i, in := range inputs {
		c := format.Classify(in)
		p := Planned{Path: in, Class: c, Handler: handlerFor(c)}
		switch {
		case c == format.Unsupported:
		case c.IsOffice():
			p.Ready = avail.CanConvert(c)
		case c == format.HTML:
			p.Ready = o.html.Available() || !o.cfg.NoHTMLTextFallback
		default:
			p.Ready = true
		}
		out[i] = p
	}
	return out
}
