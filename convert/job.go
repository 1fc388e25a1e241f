package convert

import (
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/docpdf/format"
)

// Mode selects the output shape of a job.
type Mode string

const (
	// SingleMerged writes every input into one PDF at Job.Target.
	SingleMerged Mode = "single_merged"
	// SeparatePerFile writes one PDF per input into the directory Job.Target.
	SeparatePerFile Mode = "separate_per_file"
)

// Collision decides what happens when a separate-mode output name is taken.
type Collision string

const (
	// CollisionRename appends a counter: report.pdf, report-2.pdf, ...
	CollisionRename Collision = "rename"
	// CollisionOverwrite replaces files that existed before the job.
	// Two inputs of the same job are still disambiguated.
	CollisionOverwrite Collision = "overwrite"
	// CollisionError fails the colliding input.
	CollisionError Collision = "error"
)

// Job is one conversion request. Inputs order is the page order of a
// merged output.
type Job struct {
	Inputs    []string  `json:"inputs"`
	Mode      Mode      `json:"mode"`
	Target    string    `json:"target"`
	Collision Collision `json:"collision,omitempty"`
}

func (j *Job) validate() error {
	if len(j.Inputs) == 0 {
		return fmt.Errorf("%w: no input files", ErrInvalidJob)
	}
	for i, in := range j.Inputs {
		if strings.TrimSpace(in) == "" {
			return fmt.Errorf("%w: input %d is empty", ErrInvalidJob, i+1)
		}
	}
	if strings.TrimSpace(j.Target) == "" {
		return fmt.Errorf("%w: no output target", ErrInvalidJob)
	}
	switch j.Mode {
	case SingleMerged, SeparatePerFile:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidJob, j.Mode)
	}
	switch j.Collision {
	case CollisionRename, CollisionOverwrite, CollisionError:
	default:
		return fmt.Errorf("%w: unknown collision policy %q", ErrInvalidJob, j.Collision)
	}
	return nil
}

// Status of a file or a whole job.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Result is the outcome for one input file.
type Result struct {
	ID       string        `json:"id"`
	Index    int           `json:"index"`
	Path     string        `json:"path"`
	Class    format.Class  `json:"class"`
	Status   Status        `json:"status"`
	Output   string        `json:"output,omitempty"`
	Pages    int           `json:"pages"`
	Via      string        `json:"via,omitempty"`
	Err      *Error        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

func (r *Result) fail(e *Error) {
	r.Status = StatusFailed
	r.Err = e
	r.Output = ""
}

// Report aggregates a job. FirstError carries only the first failure;
// Results and the journal keep every one.
type Report struct {
	JobID          string    `json:"job_id"`
	Mode           Mode      `json:"mode"`
	Target         string    `json:"target"`
	FilesSucceeded int       `json:"files_succeeded"`
	FilesFailed    int       `json:"files_failed"`
	FirstError     string    `json:"first_error,omitempty"`
	Message        string    `json:"message"`
	Output         string    `json:"output,omitempty"`
	Pages          int       `json:"pages"`
	Results        []Result  `json:"results"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Status derives success, partial or failed from the counts.
func (r *Report) Status() Status {
	switch {
	case r.FilesSucceeded == 0:
		return StatusFailed
	case r.FilesFailed > 0:
		return StatusPartial
	default:
		return StatusSuccess
	}
}

// tally recomputes counts and the summary from Results.
func (r *Report) tally() {
	r.FilesSucceeded, r.FilesFailed, r.FirstError = 0, 0, ""
	for _, res := range r.Results {
		if res.Status == StatusSuccess {
			r.FilesSucceeded++
			continue
		}
		r.FilesFailed++
		if r.FirstError == "" && res.Err != nil {
			r.FirstError = res.Err.Error()
		}
	}

	total := len(r.Results)
	switch r.Status() {
	case StatusSuccess:
		r.Message = fmt.Sprintf("%d file(s) converted", total)
	case StatusPartial:
		r.Message = fmt.Sprintf("%d of %d file(s) converted, %d failed; first error: %s",
			r.FilesSucceeded, total, r.FilesFailed, r.FirstError)
	default:
		r.Message = ErrNoContent.Error()
		if r.FirstError != "" {
			r.Message += "; first error: " + r.FirstError
		}
	}
}
