package main

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/docpdf/convert"
	"github.com/hazyhaar/docpdf/horosafe"
	"github.com/hazyhaar/docpdf/journal"
	"github.com/hazyhaar/docpdf/pagerange"
	"github.com/hazyhaar/docpdf/pdfops"
	"github.com/hazyhaar/docpdf/shield"
)

func cmdServe(ctx context.Context, a *app, args []string) error {
	flags := newFlagSet(a, "serve")
	addr := flags.String("addr", a.cfg.Serve.Addr, "listen address")
	root := flags.String("root", a.cfg.Serve.Root, "directory every API path is confined to")
	if err := flags.Parse(args); err != nil {
		return err
	}
	absRoot, err := filepath.Abs(*root)
	if err != nil {
		return usagef("root: %v", err)
	}

	o := a.orchestrator(ctx)
	s := newServer(o, a.journal, horosafe.Resolver{Root: absRoot}, a.cfg.Serve.RateLimit, a.logger)

	done := make(chan struct{})
	defer close(done)
	s.limiter.StartGC(done)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.logger.Info("docpdf: server starting", "addr", *addr, "root", absRoot, "version", version)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("docpdf: shutting down")
	s.drain.Start()
	// A conversion in flight may run up to the office timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Office.Timeout+30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.logger.Info("docpdf: server stopped")
	return nil
}

// server is the HTTP API. Jobs run one at a time.
type server struct {
	orch    *convert.Orchestrator
	journal *journal.Journal // nil when history is disabled
	paths   horosafe.Resolver
	logger  *slog.Logger
	drain   *shield.Drain
	limiter *shield.RateLimiter

	mu sync.Mutex
}

func newServer(o *convert.Orchestrator, j *journal.Journal, paths horosafe.Resolver, rl shield.RateLimitConfig, logger *slog.Logger) *server {
	if logger == nil {
		logger = slog.Default()
	}
	return &server{
		orch:    o,
		journal: j,
		paths:   paths,
		logger:  logger,
		drain:   shield.NewDrain(logger, "/health"),
		limiter: shield.NewRateLimiter(rl, logger),
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.APIStack(s.logger, s.drain, s.limiter) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok", "version": version})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/formats", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, 200, convert.Formats())
		})
		r.Get("/converters", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, 200, s.orch.Converters())
		})
		r.Post("/plan", s.handlePlan)
		r.Post("/convert", s.handleConvert)
		r.Post("/pdf/{op}", s.handlePDF)
		r.Get("/jobs", s.handleJobs)
		r.Get("/jobs/{jobID}", s.handleJob)
	})
	return r
}

type convertBody struct {
	Inputs    []string `json:"inputs"`
	Mode      string   `json:"mode"`
	Target    string   `json:"target"`
	Collision string   `json:"collision"`
}

func (s *server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var body convertBody
	if !decodeBody(w, r, &body) {
		return
	}
	inputs, err := s.paths.ResolveAll(body.Inputs)
	if err != nil {
		writeError(w, 400, err)
		return
	}
	target, err := s.paths.Resolve(body.Target)
	if err != nil {
		writeError(w, 400, err)
		return
	}

	s.mu.Lock()
	report, err := s.orch.Run(r.Context(), convert.Job{
		Inputs:    inputs,
		Mode:      convert.Mode(body.Mode),
		Target:    target,
		Collision: convert.Collision(body.Collision),
	})
	s.mu.Unlock()

	switch {
	case errors.Is(err, convert.ErrInvalidJob):
		writeError(w, 400, err)
	case errors.Is(err, convert.ErrNoContent) && report != nil:
		writeJSON(w, 422, report)
	case err != nil:
		shield.GetLogger(r.Context()).Error("convert failed", "error", err)
		writeError(w, 500, err)
	default:
		writeJSON(w, 200, report)
	}
}

func (s *server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Inputs []string `json:"inputs"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	inputs, err := s.paths.ResolveAll(body.Inputs)
	if err != nil {
		writeError(w, 400, err)
		return
	}
	writeJSON(w, 200, s.orch.Plan(inputs))
}

type pdfBody struct {
	Input         string   `json:"input"`
	Inputs        []string `json:"inputs"`
	Output        string   `json:"output"`
	Dir           string   `json:"dir"`
	Pages         string   `json:"pages"`
	UserPassword  string   `json:"user_password"`
	OwnerPassword string   `json:"owner_password"`
}

func (s *server) handlePDF(w http.ResponseWriter, r *http.Request) {
	op := chi.URLParam(r, "op")
	var body pdfBody
	if !decodeBody(w, r, &body) {
		return
	}

	s.mu.Lock()
	result, err := s.pdfOp(op, body)
	s.mu.Unlock()

	if err != nil {
		code := pdfStatus(err)
		if code == 500 {
			shield.GetLogger(r.Context()).Error("pdf op failed", "op", op, "error", err)
		}
		writeError(w, code, err)
		return
	}
	writeJSON(w, 200, result)
}

var errUnknownOp = errors.New("unknown operation")

func (s *server) pdfOp(op string, b pdfBody) (map[string]any, error) {
	resolve := func(p, what string) (string, error) {
		if p == "" {
			return "", &usageError{msg: what + " is required"}
		}
		return s.paths.Resolve(p)
	}

	switch op {
	case "merge":
		if len(b.Inputs) == 0 {
			return nil, pdfops.ErrNoInput
		}
		ins, err := s.paths.ResolveAll(b.Inputs)
		if err != nil {
			return nil, err
		}
		out, err := resolve(b.Output, "output")
		if err != nil {
			return nil, err
		}
		if err := pdfops.Merge(ins, out); err != nil {
			return nil, err
		}
		n, err := pdfops.PageCount(out)
		if err != nil {
			return nil, err
		}
		return map[string]any{"output": out, "pages": n}, nil

	case "delete", "extract":
		in, err := resolve(b.Input, "input")
		if err != nil {
			return nil, err
		}
		out, err := resolve(b.Output, "output")
		if err != nil {
			return nil, err
		}
		if op == "delete" {
			n, err := pdfops.DeletePages(in, out, b.Pages)
			if err != nil {
				return nil, err
			}
			return map[string]any{"output": out, "deleted": n}, nil
		}
		n, err := pdfops.ExtractPages(in, out, b.Pages)
		if err != nil {
			return nil, err
		}
		return map[string]any{"output": out, "extracted": n}, nil

	case "split":
		in, err := resolve(b.Input, "input")
		if err != nil {
			return nil, err
		}
		dir, err := resolve(b.Dir, "dir")
		if err != nil {
			return nil, err
		}
		files, err := pdfops.Split(in, dir, b.Pages)
		if err != nil {
			return nil, err
		}
		return map[string]any{"files": files}, nil

	case "protect":
		if b.UserPassword == "" {
			return nil, &usageError{msg: "user_password is required"}
		}
		in, err := resolve(b.Input, "input")
		if err != nil {
			return nil, err
		}
		out, err := resolve(b.Output, "output")
		if err != nil {
			return nil, err
		}
		if err := pdfops.Protect(in, out, b.UserPassword, b.OwnerPassword); err != nil {
			return nil, err
		}
		return map[string]any{"output": out}, nil
	}
	return nil, errUnknownOp
}

func pdfStatus(err error) int {
	var ue *usageError
	switch {
	case errors.Is(err, errUnknownOp):
		return 404
	case errors.As(err, &ue), errors.Is(err, pagerange.ErrInvalid),
		errors.Is(err, pdfops.ErrNoInput), errors.Is(err, horosafe.ErrPathTraversal):
		return 400
	case errors.Is(err, fs.ErrNotExist):
		return 404
	}
	return 500
}

func (s *server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, 503, map[string]string{"error": "journal is disabled"})
		return
	}
	jobs, err := s.journal.Jobs(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, 500, err)
		return
	}
	if jobs == nil {
		jobs = []journal.Job{}
	}
	writeJSON(w, 200, jobs)
}

func (s *server) handleJob(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, 503, map[string]string{"error": "journal is disabled"})
		return
	}
	detail, err := jobDetail(r.Context(), s.journal, chi.URLParam(r, "jobID"))
	if errors.Is(err, journal.ErrNotFound) {
		writeError(w, 404, err)
		return
	}
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, detail)
}

// decodeBody writes a 400 (or 413 past the body limit) and returns false
// when the JSON body cannot be decoded.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return false
	}
	writeError(w, 400, err)
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
