package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/docpdf/convert"
	"github.com/hazyhaar/docpdf/horosafe"
	"github.com/hazyhaar/docpdf/journal"
	"github.com/hazyhaar/docpdf/pdfops"
)

// cliPaths only makes command-line paths absolute.
var cliPaths horosafe.Resolver

func cmdConvert(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "convert")
	out := fs.String("o", "", "output PDF (default merged.pdf), or directory with -separate (default .)")
	separate := fs.Bool("separate", false, "write one PDF per input file")
	collision := fs.String("collision", "", "with -separate, existing names: rename, overwrite or error")
	placeholders := fs.Bool("placeholders", false, "insert a notice page for unsupported files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return usagef("no input files")
	}

	j := convert.Job{Mode: convert.SingleMerged, Target: *out, Collision: convert.Collision(*collision)}
	if *separate {
		j.Mode = convert.SeparatePerFile
	}
	if j.Target == "" {
		j.Target = "merged.pdf"
		if *separate {
			j.Target = "."
		}
	}
	if *placeholders {
		a.cfg.Output.Placeholders = true
	}

	var err error
	if j.Inputs, err = cliPaths.ResolveAll(fs.Args()); err != nil {
		return usagef("%v", err)
	}
	if j.Target, err = cliPaths.Resolve(j.Target); err != nil {
		return usagef("%v", err)
	}

	report, err := a.orchestrator(ctx).Run(ctx, j)
	if report != nil {
		if perr := a.printJSON(report); perr != nil {
			return perr
		}
	}
	if err != nil {
		return err
	}
	if report.Status() == convert.StatusPartial {
		return errPartial
	}
	return nil
}

func cmdPlan(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "plan")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return usagef("no input files")
	}
	return a.printJSON(a.orchestrator(ctx).Plan(fs.Args()))
}

func cmdMerge(_ context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "merge")
	out := fs.String("o", "", "output PDF")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" || fs.NArg() == 0 {
		return usagef("merge -o out.pdf files...")
	}
	if err := pdfops.Merge(fs.Args(), *out); err != nil {
		return err
	}
	n, err := pdfops.PageCount(*out)
	if err != nil {
		return err
	}
	return a.printJSON(map[string]any{"output": *out, "pages": n})
}

// pageOp parses the flags shared by delete and extract.
func pageOp(a *app, name string, args []string) (in, out, spec string, err error) {
	fs := newFlagSet(a, name)
	o := fs.String("o", "", "output PDF")
	pages := fs.String("pages", "", `1-based page selection, e.g. "1,3-5"`)
	if err := fs.Parse(args); err != nil {
		return "", "", "", err
	}
	if *o == "" || *pages == "" || fs.NArg() != 1 {
		return "", "", "", usagef("%s -pages RANGE -o out.pdf in.pdf", name)
	}
	return fs.Arg(0), *o, *pages, nil
}

func cmdDelete(_ context.Context, a *app, args []string) error {
	in, out, spec, err := pageOp(a, "delete", args)
	if err != nil {
		return err
	}
	n, err := pdfops.DeletePages(in, out, spec)
	if err != nil {
		return err
	}
	return a.printJSON(map[string]any{"output": out, "deleted": n})
}

func cmdExtract(_ context.Context, a *app, args []string) error {
	in, out, spec, err := pageOp(a, "extract", args)
	if err != nil {
		return err
	}
	n, err := pdfops.ExtractPages(in, out, spec)
	if err != nil {
		return err
	}
	return a.printJSON(map[string]any{"output": out, "extracted": n})
}

func cmdSplit(_ context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "split")
	dir := fs.String("d", "", "output directory")
	pages := fs.String("pages", "", "pages to split out (default all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" || fs.NArg() != 1 {
		return usagef("split [-pages RANGE] -d dir in.pdf")
	}
	files, err := pdfops.Split(fs.Arg(0), *dir, *pages)
	if err != nil {
		return err
	}
	return a.printJSON(map[string]any{"files": files})
}

func cmdProtect(_ context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "protect")
	out := fs.String("o", "", "output PDF")
	user := fs.String("user", "", "password required to open the PDF")
	owner := fs.String("owner", "", "permissions password (default: user password)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" || *user == "" || fs.NArg() != 1 {
		return usagef("protect -user PW [-owner PW] -o out.pdf in.pdf")
	}
	if err := pdfops.Protect(fs.Arg(0), *out, *user, *owner); err != nil {
		return err
	}
	return a.printJSON(map[string]any{"output": *out})
}

func cmdPages(_ context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return usagef("pages in.pdf")
	}
	n, err := pdfops.PageCount(args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.stdout, n)
	return err
}

func cmdFormats(_ context.Context, a *app, _ []string) error {
	return a.printJSON(convert.Formats())
}

func cmdProbe(ctx context.Context, a *app, _ []string) error {
	return a.printJSON(a.orchestrator(ctx).Converters())
}

func cmdHistory(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "history")
	jobID := fs.String("job", "", "show one job with its per-file results")
	limit := fs.Int("limit", 20, "number of jobs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	j, err := a.openJournal()
	if err != nil {
		return err
	}
	if j == nil {
		return errors.New("journal is disabled")
	}

	if *jobID == "" {
		jobs, err := j.Jobs(ctx, *limit)
		if err != nil {
			return err
		}
		if jobs == nil {
			jobs = []journal.Job{}
		}
		return a.printJSON(jobs)
	}
	detail, err := jobDetail(ctx, j, *jobID)
	if err != nil {
		return err
	}
	return a.printJSON(detail)
}

type jobView struct {
	*journal.Job
	Duration string           `json:"duration"`
	Results  []journal.Result `json:"results"`
}

func jobDetail(ctx context.Context, j *journal.Journal, id string) (*jobView, error) {
	jb, err := j.Job(ctx, id)
	if err != nil {
		return nil, err
	}
	results, err := j.Results(ctx, id)
	if err != nil {
		return nil, err
	}
	return &jobView{
		Job:      jb,
		Duration: jb.FinishedAt.Sub(jb.StartedAt).Round(time.Millisecond).String(),
		Results:  results,
	}, nil
}
