// Command docpdf converts documents, images, text, HTML, SVG and office
// files to PDF, and edits existing PDFs.
//
// Usage:
//
//	docpdf [-config docpdf.yaml] [-log-level info] <command> [flags] [args]
//
// Commands:
//
//	convert [-o out] [-separate] [-collision rename] [-placeholders] files...
//	plan files...
//	merge -o out.pdf files...
//	delete -pages RANGE -o out.pdf in.pdf
//	extract -pages RANGE -o out.pdf in.pdf
//	split [-pages RANGE] -d dir in.pdf
//	protect -user PW [-owner PW] -o out.pdf in.pdf
//	pages in.pdf
//	formats
//	probe
//	history [-job ID] [-limit N]
//	serve [-addr host:port] [-root dir]
//	mcp [-root dir]
//
// Exit status is 0 on success, 1 when a job fails, 2 on a usage error and
// 3 when a conversion job succeeded only partially.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/docpdf/convert"
	"github.com/hazyhaar/docpdf/internal/config"
	"github.com/hazyhaar/docpdf/journal"
	"github.com/hazyhaar/docpdf/office"
	"github.com/hazyhaar/docpdf/pagerange"
)

var version = "dev"

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
	exitPartial = 3
)

// errPartial makes a command exit with exitPartial after printing its output.
var errPartial = errors.New("partial success")

type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"convert", "convert files to one merged PDF or one PDF per file", cmdConvert},
	{"plan", "show how each file would be converted", cmdPlan},
	{"merge", "concatenate PDFs", cmdMerge},
	{"delete", "remove selected pages from a PDF", cmdDelete},
	{"extract", "keep only selected pages of a PDF", cmdExtract},
	{"split", "write selected pages to one PDF each", cmdSplit},
	{"protect", "encrypt a PDF with a password", cmdProtect},
	{"pages", "print the page count of a PDF", cmdPages},
	{"formats", "list supported input formats", cmdFormats},
	{"probe", "report installed office and HTML converters", cmdProbe},
	{"history", "list recorded conversion jobs", cmdHistory},
	{"serve", "run the HTTP API", cmdServe},
	{"mcp", "run the MCP server on stdio", cmdMCP},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one docpdf invocation and returns its exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("docpdf", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to docpdf.yaml (default $"+config.EnvPath+")")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.Usage = func() { usage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		usage(stderr, fs)
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "docpdf: %v\n", err)
		return exitUsage
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "docpdf: %v\n", err)
		return exitUsage
	}
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))

	name := fs.Arg(0)
	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "docpdf: unknown command %q\n", name)
		usage(stderr, fs)
		return exitUsage
	}

	a := &app{cfg: cfg, logger: logger, stdout: stdout, stderr: stderr}
	defer a.close()

	err = cmd.run(ctx, a, fs.Args()[1:])
	code := exitCode(err)
	switch code {
	case exitOK, exitPartial:
	case exitUsage:
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(stderr, "docpdf %s: %v\n", name, err)
		}
	default:
		logger.Error("docpdf: "+name+" failed", "error", err)
	}
	return code
}

func exitCode(err error) int {
	var ue *usageError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errPartial):
		return exitPartial
	case errors.As(err, &ue), errors.Is(err, flag.ErrHelp),
		errors.Is(err, pagerange.ErrInvalid), errors.Is(err, convert.ErrInvalidJob):
		return exitUsage
	}
	return exitFailure
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, "usage: docpdf [flags] <command> [args]\n\ncommands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-9s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(w, "\nflags:\n")
	fs.PrintDefaults()
}

// app holds what every command shares: configuration, logger, output and
// the lazily opened journal.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer

	journal *journal.Journal
	orch    *convert.Orchestrator
}

// openJournal returns nil without error when the journal is disabled.
func (a *app) openJournal() (*journal.Journal, error) {
	if a.cfg.Journal.Disabled {
		return nil, nil
	}
	if a.journal == nil {
		j, err := journal.Open(a.cfg.Journal.Path, a.logger)
		if err != nil {
			return nil, err
		}
		if _, err := j.Prune(context.Background(), a.cfg.Journal.RetentionDays); err != nil {
			a.logger.Warn("docpdf: journal prune failed", "error", err)
		}
		a.journal = j
	}
	return a.journal, nil
}

// orchestrator probes the office converters once and builds the
// orchestrator. A journal that cannot be opened only disables history.
func (a *app) orchestrator(ctx context.Context) *convert.Orchestrator {
	if a.orch != nil {
		return a.orch
	}
	var opts []convert.Option
	if j, err := a.openJournal(); err != nil {
		a.logger.Warn("docpdf: journal unavailable, history disabled", "path", a.cfg.Journal.Path, "error", err)
	} else if j != nil {
		opts = append(opts, convert.WithRecorder(j))
	}
	avail := office.Probe(ctx, a.cfg.Probe(a.logger))
	a.orch = convert.New(a.cfg.Convert(a.logger), avail, opts...)
	return a.orch
}

func (a *app) close() {
	if a.orch != nil {
		a.orch.Close()
	}
	if a.journal != nil {
		a.journal.Close()
	}
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newFlagSet(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet("docpdf "+name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}
