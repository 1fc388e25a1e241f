// Package horosafe provides the guards docpdf applies to caller-supplied
// input on its HTTP and MCP surfaces: path confinement under a workspace
// root, identifier checks and bounded reads.
package horosafe

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// MaxRequestBody is the default cap for request body reads (1 MiB).
const MaxRequestBody int64 = 1 << 20

// ErrPathTraversal is returned when a user-supplied path escapes its base.
var ErrPathTraversal = errors.New("horosafe: path traversal detected")

// SafePath resolves userInput against base and verifies the result stays
// under base. Relative input is joined to base; absolute input is accepted
// only if it already lies under base. Any ".." path element is rejected
// outright. Returns the cleaned absolute path or ErrPathTraversal.
func SafePath(base, userInput string) (string, error) {
	if userInput == "" {
		return "", fmt.Errorf("horosafe: empty path")
	}
	for _, elem := range strings.FieldsFunc(filepath.ToSlash(userInput), func(r rune) bool { return r == '/' }) {
		if elem == ".." {
			return "", ErrPathTraversal
		}
	}

	root, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	var cleaned string
	if filepath.IsAbs(userInput) {
		cleaned = filepath.Clean(userInput)
	} else {
		cleaned = filepath.Join(root, userInput)
	}
	if cleaned != root && !strings.HasPrefix(cleaned, root+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return cleaned, nil
}

// Resolver confines paths to Root. A zero Resolver only makes paths absolute.
type Resolver struct {
	Root string
}

// Resolve returns the absolute form of p, confined to Root when Root is set.
func (r Resolver) Resolve(p string) (string, error) {
	if r.Root == "" {
		if p == "" {
			return "", fmt.Errorf("horosafe: empty path")
		}
		return filepath.Abs(p)
	}
	return SafePath(r.Root, p)
}

// ResolveAll resolves every path, stopping at the first failure.
func (r Resolver) ResolveAll(paths []string) ([]string, error) {
	out := make([]string, len(paths))
	for i, p := range paths {
		abs, err := r.Resolve(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		out[i] = abs
	}
	return out, nil
}

// ValidateIdentifier rejects identifiers that contain characters unsuitable
// for file names or URL path segments. Allows alphanumeric, underscore,
// hyphen, and dot.
func ValidateIdentifier(s string) error {
	if s == "" {
		return fmt.Errorf("horosafe: identifier must not be empty")
	}
	if len(s) > 256 {
		return fmt.Errorf("horosafe: identifier too long (max 256)")
	}
	for _, r := range s {
		if !isIdentChar(r) {
			return fmt.Errorf("horosafe: invalid character %q in identifier", r)
		}
	}
	return nil
}

// LimitedReadAll reads at most maxBytes from r and fails if there is more.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	lr := io.LimitReader(r, maxBytes+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("horosafe: body exceeds %d bytes", maxBytes)
	}
	return data, nil
}

func isIdentChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}
