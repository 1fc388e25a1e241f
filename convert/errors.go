package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/hazyhaar/docpdf/htmlpdf"
	"github.com/hazyhaar/docpdf/office"
)

var (
	// ErrNoContent is returned when no input produced any page. No output
	// file is written in that case.
	ErrNoContent = errors.New("no content could be generated")

	// ErrInvalidJob is returned for jobs rejected before any work starts.
	ErrInvalidJob = errors.New("invalid conversion job")
)

// Kind classifies a per-file failure.
type Kind string

const (
	KindIO                      Kind = "io_error"
	KindUnsupportedFormat       Kind = "unsupported_format"
	KindRendererFailure         Kind = "renderer_failure"
	KindExternalToolTimeout     Kind = "external_tool_timeout"
	KindExternalToolUnavailable Kind = "external_tool_unavailable"
	KindCanceled                Kind = "canceled"
)

// Error is the failure of one input file.
type Error struct {
	Kind Kind   `json:"kind"`
	Path string `json:"path"`
	Msg  string `json:"message"`
	Err  error  `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", filepath.Base(e.Path), e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// fileError wraps err for path, deriving the kind from the error chain.
func fileError(path string, err error) *Error {
	return &Error{Kind: kindOf(err), Path: path, Msg: err.Error(), Err: err}
}

func newError(kind Kind, path, msg string) *Error {
	return &Error{Kind: kind, Path: path, Msg: msg}
}

func kindOf(err error) Kind {
	var pathErr *fs.PathError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, office.ErrTimeout):
		return KindExternalToolTimeout
	case errors.Is(err, office.ErrUnavailable), errors.Is(err, htmlpdf.ErrUnavailable):
		return KindExternalToolUnavailable
	case errors.As(err, &pathErr):
		return KindIO
	default:
		return KindRendererFailure
	}
}
