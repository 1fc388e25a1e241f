package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/docpdf/canvas"
	"github.com/hazyhaar/docpdf/pdfops"
)

// segment is an open canvas and the results drawn on it.
type segment struct {
	cv      *canvas.Canvas
	members []int
}

// runSingle draws and collects every input in order, then merges the parts
// into Job.Target. Consecutive drawable inputs share one canvas; any
// standalone PDF closes the current canvas so page order follows input order.
func (o *Orchestrator) runSingle(ctx context.Context, st *job) error {
	var (
		parts []string
		seg   *segment
		seq   int
	)
	results := st.report.Results

	// flush writes the open canvas as the next part.
	flush := func() {
		if seg == nil {
			return
		}
		cur := seg
		seg = nil
		if cur.cv.PageCount() == 0 {
			return
		}
		seq++
		part := filepath.Join(st.scratch, fmt.Sprintf("canvas-%04d.pdf", seq))
		if err := cur.cv.WriteFile(part); err != nil {
			os.Remove(part)
			st.abandon(cur, err)
			return
		}
		parts = append(parts, part)
	}
	open := func() *segment {
		if seg == nil {
			seg = &segment{cv: canvas.New(o.cfg.Canvas)}
		}
		return seg
	}

	for i := range results {
		if ctx.Err() != nil {
			return st.canceled(ctx, i)
		}
		res := &results[i]
		started := time.Now()

		art, ferr := o.produce(ctx, st, res)
		if ferr != nil {
			st.failed(res, ferr, started)
			if ferr.Kind == KindUnsupportedFormat && o.cfg.Placeholders {
				s := open()
				if err := s.cv.AddPlaceholder("Unsupported file: " + filepath.Base(res.Path)); err != nil && s.cv.Err() != nil {
					st.abandon(s, err)
					seg = nil
				}
			}
			continue
		}

		if art.draw == nil {
			flush()
			parts = append(parts, art.pdf)
			st.succeeded(res, art.pages, started)
			continue
		}

		s := open()
		n, err := art.draw(s.cv)
		if err != nil {
			st.failed(res, fileError(res.Path, err), started)
			if s.cv.Err() != nil {
				st.abandon(s, err)
				seg = nil
			}
			continue
		}
		s.members = append(s.members, i)
		st.succeeded(res, n, started)
	}
	flush()

	st.report.tally()
	if st.report.FilesSucceeded == 0 {
		return ErrNoContent
	}

	target := st.Target
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("convert: create output dir: %w", err)
	}
	if err := pdfops.Merge(parts, target); err != nil {
		return fmt.Errorf("convert: write %s: %w", target, err)
	}
	st.report.Output = target
	if n, err := pdfops.PageCount(target); err == nil {
		st.report.Pages = n
	}
	return nil
}

// abandon discards a canvas whose document is unusable. Every input already
// drawn on it is reported as failed.
func (st *job) abandon(s *segment, cause error) {
	for _, i := range s.members {
		res := &st.report.Results[i]
		res.fail(newError(KindRendererFailure, res.Path, fmt.Sprintf("shared page canvas failed: %v", cause)))
		res.Pages = 0
		st.log.Warn("convert: canvas discarded", "path", res.Path, "error", cause)
	}
	s.members = nil
}

// runSeparate writes one PDF per successful input into the Job.Target
// directory.
func (o *Orchestrator) runSeparate(ctx context.Context, st *job) error {
	dir := st.Target
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("convert: create output dir: %w", err)
	}
	claimed := make(map[string]bool)
	results := st.report.Results

	for i := range results {
		if ctx.Err() != nil {
			st.discard(i)
			return st.canceled(ctx, i)
		}
		res := &results[i]
		started := time.Now()

		art, ferr := o.produce(ctx, st, res)
		if ferr != nil {
			st.failed(res, ferr, started)
			continue
		}

		src, pages := art.pdf, art.pages
		if art.draw != nil {
			cv := canvas.New(o.cfg.Canvas)
			n, err := art.draw(cv)
			if err != nil {
				st.failed(res, fileError(res.Path, err), started)
				continue
			}
			src = st.tempPDF(res, "canvas")
			if err := cv.WriteFile(src); err != nil {
				os.Remove(src)
				st.failed(res, newError(KindRendererFailure, res.Path, err.Error()), started)
				continue
			}
			pages = n
		}

		dest, err := claimName(dir, baseName(res.Path), st.Collision, claimed)
		if err != nil {
			st.failed(res, newError(KindIO, res.Path, err.Error()), started)
			continue
		}
		if err := pdfops.Copy(src, dest); err != nil {
			st.failed(res, fileError(res.Path, err), started)
			continue
		}
		res.Output = dest
		st.report.Pages += pages
		st.succeeded(res, pages, started)
	}
	if ctx.Err() != nil {
		st.discard(len(results))
		return st.canceled(ctx, len(results))
	}

	st.report.tally()
	if st.report.FilesSucceeded == 0 {
		return ErrNoContent
	}
	st.report.Output = dir
	return nil
}

// discard removes the files already written for results before upto and
// marks those results canceled. A canceled job leaves no output behind.
func (st *job) discard(upto int) {
	for i := range st.report.Results[:upto] {
		res := &st.report.Results[i]
		if res.Output == "" {
			continue
		}
		if err := os.Remove(res.Output); err != nil && !errors.Is(err, fs.ErrNotExist) {
			st.log.Warn("convert: remove output of canceled job", "path", res.Output, "error", err)
		}
		res.Pages = 0
		res.fail(newError(KindCanceled, res.Path, "job canceled"))
	}
	st.report.Pages = 0
}

// claimName picks the output path for base in dir under policy. Names
// already handed out in this job are never reused.
func claimName(dir, base string, policy Collision, claimed map[string]bool) (string, error) {
	name := filepath.Join(dir, base+".pdf")
	exists := func(p string) bool {
		_, err := os.Lstat(p)
		return err == nil
	}

	switch policy {
	case CollisionError:
		if claimed[name] || exists(name) {
			return "", fmt.Errorf("output %s already exists", filepath.Base(name))
		}
	case CollisionOverwrite:
		for n := 2; claimed[name]; n++ {
			name = filepath.Join(dir, fmt.Sprintf("%s-%d.pdf", base, n))
		}
	default:
		for n := 2; claimed[name] || exists(name); n++ {
			name = filepath.Join(dir, fmt.Sprintf("%s-%d.pdf", base, n))
		}
	}
	claimed[name] = true
	return name, nil
}
