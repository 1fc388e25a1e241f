// Package convert turns a list of heterogeneous files into PDF output.
//
// Each input is classified by extension and dispatched to a handler: existing
// PDFs are copied verbatim, images, text, RTF and SVG are drawn on a gofpdf
// canvas, HTML is printed by a headless browser and office documents go
// through the office fallback chain. The assembler then writes either one
// merged PDF in input order or one PDF per input.
//
// A failing input never aborts the job. Its failure is recorded in the
// Report and the remaining inputs proceed. Only problems with the job itself
// (invalid request, scratch directory, final write) are returned as errors.
package convert

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hazyhaar/docpdf/canvas"
	"github.com/hazyhaar/docpdf/format"
	"github.com/hazyhaar/docpdf/htmlpdf"
	"github.com/hazyhaar/docpdf/idgen"
	"github.com/hazyhaar/docpdf/office"
	"github.com/hazyhaar/docpdf/pdfops"
)

// Via values for non-office handlers.
const (
	ViaCopy     = "copy"
	ViaCanvas   = "canvas"
	ViaChrome   = "chrome"
	ViaHTMLText = "html-text"
)

// Orchestrator runs conversion jobs. A single Run is sequential; the
// Orchestrator itself holds no per-job state.
type Orchestrator struct {
	cfg    Config
	html   HTMLRenderer
	office OfficeConverter
	rec    Recorder
	owned  io.Closer
}

// New creates an Orchestrator. avail is the result of office.Probe and is
// not re-probed for the lifetime of the Orchestrator.
func New(cfg Config, avail office.Availability, opts ...Option) *Orchestrator {
	cfg.defaults()
	o := &Orchestrator{cfg: cfg}
	for _, opt := range opts {
		opt(o)
	}
	if o.html == nil {
		r := htmlpdf.New(cfg.HTML)
		o.html = r
		o.owned = r
	}
	if o.office == nil {
		o.office = office.NewChain(office.ChainConfig{
			Availability: avail,
			Timeout:      cfg.OfficeTimeout,
			ScratchDir:   cfg.TempDir,
			Logger:       cfg.Logger,
		})
	}
	return o
}

// Close releases the browser started by the default HTML renderer.
func (o *Orchestrator) Close() error {
	if o.owned != nil {
		return o.owned.Close()
	}
	return nil
}

// artifact is the product of one input: either a standalone PDF or content
// to draw on a canvas.
type artifact struct {
	pdf   string
	pages int
	draw  func(cv *canvas.Canvas) (int, error)
}

// job carries the state of one Run.
type job struct {
	Job
	report  *Report
	scratch string
	log     *slog.Logger
}

// Run executes j. The returned Report is non-nil whenever work started, also
// together with an error. ErrNoContent is returned when no input succeeded.
func (o *Orchestrator) Run(ctx context.Context, j Job) (*Report, error) {
	if j.Mode == "" {
		j.Mode = SingleMerged
	}
	if j.Collision == "" {
		j.Collision = o.cfg.Collision
	}
	if err := j.validate(); err != nil {
		return nil, err
	}

	scratch, err := os.MkdirTemp(o.cfg.TempDir, "docpdf-*")
	if err != nil {
		return nil, fmt.Errorf("convert: create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	report := &Report{
		JobID:     idgen.JobID(),
		Mode:      j.Mode,
		Target:    j.Target,
		Results:   make([]Result, len(j.Inputs)),
		StartedAt: time.Now().UTC(),
	}
	for i, in := range j.Inputs {
		report.Results[i] = Result{
			ID:    idgen.ResultID(),
			Index: i,
			Path:  in,
			Class: format.Classify(in),
		}
	}
	st := &job{
		Job:     j,
		report:  report,
		scratch: scratch,
		log:     o.cfg.Logger.With("job_id", report.JobID),
	}
	st.log.Info("convert: job started", "mode", j.Mode, "inputs", len(j.Inputs), "target", j.Target)

	switch j.Mode {
	case SingleMerged:
		err = o.runSingle(ctx, st)
	case SeparatePerFile:
		err = o.runSeparate(ctx, st)
	}

	report.FinishedAt = time.Now().UTC()
	report.tally()
	o.finish(ctx, st, err)
	return report, err
}

func (o *Orchestrator) finish(ctx context.Context, st *job, err error) {
	r := st.report
	attrs := []any{
		"status", r.Status(),
		"succeeded", r.FilesSucceeded,
		"failed", r.FilesFailed,
		"duration", r.FinishedAt.Sub(r.StartedAt),
	}
	if err != nil {
		st.log.Warn("convert: job failed", append(attrs, "error", err)...)
	} else {
		st.log.Info("convert: job finished", append(attrs, "output", r.Output, "pages", r.Pages)...)
	}
	if o.rec == nil {
		return
	}
	if rerr := o.rec.Record(context.WithoutCancel(ctx), r); rerr != nil {
		st.log.Warn("convert: record job", "error", rerr)
	}
}

// canceled marks results from index i on as canceled and returns the
// job-level error.
func (st *job) canceled(ctx context.Context, from int) error {
	for i := from; i < len(st.report.Results); i++ {
		res := &st.report.Results[i]
		res.fail(newError(KindCanceled, res.Path, "job canceled"))
	}
	return fmt.Errorf("convert: job canceled: %w", ctx.Err())
}

// produce converts one input into an artifact. Temporary files of a failed
// input are removed before it returns.
func (o *Orchestrator) produce(ctx context.Context, st *job, res *Result) (*artifact, *Error) {
	path := res.Path
	if res.Class == format.Unsupported {
		ext := strings.ToLower(filepath.Ext(path))
		if ext == "" {
			return nil, newError(KindUnsupportedFormat, path, "unsupported format (no extension)")
		}
		return nil, newError(KindUnsupportedFormat, path, fmt.Sprintf("unsupported format %q", ext))
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fileError(path, err)
	}
	if info.IsDir() {
		return nil, newError(KindIO, path, "is a directory")
	}

	switch class := res.Class; {
	case class == format.ExistingPDF:
		n, err := pdfops.Validate(path)
		if err != nil {
			return nil, fileError(path, err)
		}
		res.Via = ViaCopy
		return &artifact{pdf: path, pages: n}, nil

	case class.Drawable():
		res.Via = ViaCanvas
		return &artifact{draw: drawFunc(class, path)}, nil

	case class == format.HTML:
		return o.produceHTML(ctx, st, res)

	case class.IsOffice():
		tmp := st.tempPDF(res, "office")
		outcome, err := o.office.Convert(ctx, path, class, tmp)
		if err != nil {
			os.Remove(tmp)
			return nil, fileError(path, err)
		}
		n, err := pdfops.Validate(tmp)
		if err != nil {
			os.Remove(tmp)
			return nil, newError(KindRendererFailure, path, fmt.Sprintf("%s produced an unreadable PDF: %v", outcome.Via, err))
		}
		res.Via = outcome.Via
		return &artifact{pdf: tmp, pages: n}, nil
	}
	return nil, newError(KindUnsupportedFormat, path, fmt.Sprintf("no handler for %s", res.Class))
}

func (o *Orchestrator) produceHTML(ctx context.Context, st *job, res *Result) (*artifact, *Error) {
	path := res.Path
	var renderErr error
	if o.html.Available() {
		tmp := st.tempPDF(res, "html")
		renderErr = o.html.Render(ctx, path, tmp)
		if renderErr == nil {
			n, err := pdfops.Validate(tmp)
			if err == nil {
				res.Via = ViaChrome
				return &artifact{pdf: tmp, pages: n}, nil
			}
			renderErr = err
		}
		os.Remove(tmp)
	} else {
		renderErr = htmlpdf.ErrUnavailable
	}

	if o.cfg.NoHTMLTextFallback || ctx.Err() != nil {
		return nil, fileError(path, renderErr)
	}
	text, err := htmlpdf.FileToMarkdown(path)
	if err != nil {
		return nil, fileError(path, err)
	}
	st.log.Warn("convert: html drawn as text", "path", path, "error", renderErr)
	res.Via = ViaHTMLText
	return &artifact{draw: func(cv *canvas.Canvas) (int, error) { return cv.AddText(text) }}, nil
}

func drawFunc(class format.Class, path string) func(cv *canvas.Canvas) (int, error) {
	switch class {
	case format.RasterImage:
		return func(cv *canvas.Canvas) (int, error) { return cv.AddImage(path) }
	case format.RichText:
		return func(cv *canvas.Canvas) (int, error) { return cv.AddRTFFile(path) }
	case format.VectorSVG:
		return func(cv *canvas.Canvas) (int, error) { return cv.AddSVGFile(path) }
	default:
		return func(cv *canvas.Canvas) (int, error) { return cv.AddTextFile(path) }
	}
}

func (st *job) tempPDF(res *Result, kind string) string {
	return filepath.Join(st.scratch, fmt.Sprintf("%04d-%s.pdf", res.Index, kind))
}

func (st *job) succeeded(res *Result, pages int, started time.Time) {
	res.Status = StatusSuccess
	res.Pages = pages
	res.Duration = time.Since(started)
	st.log.Info("convert: file converted", "path", res.Path, "class", res.Class, "via", res.Via, "pages", pages)
}

func (st *job) failed(res *Result, e *Error, started time.Time) {
	res.fail(e)
	res.Duration = time.Since(started)
	st.log.Warn("convert: file failed", "path", res.Path, "class", res.Class, "kind", e.Kind, "error", e.Msg)
}

// baseName is the output stem for an input: report.docx gives report.
func baseName(path string) string {
	b := filepath.Base(path)
	if stem := strings.TrimSuffix(b, filepath.Ext(b)); stem != "" {
		return stem
	}
	return b
}
