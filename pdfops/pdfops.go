// Package pdfops manipulates existing PDF files: page count, merge, delete
// and extract pages, split into single pages, and password protection.
//
// Page selections use the pagerange grammar ("1,3-5") and are validated
// against the document's page count before pdfcpu touches anything. Every
// output is written to a temporary file next to the target and renamed into
// place, so a failed operation never leaves a truncated file behind.
package pdfops

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/hazyhaar/docpdf/pagerange"
)

// ErrNoInput is returned by Merge when no input is given.
var ErrNoInput = errors.New("pdfops: no input files")

func init() {
	api.DisableConfigDir()
}

func conf() *model.Configuration {
	c := model.NewDefaultConfiguration()
	c.ValidationMode = model.ValidationRelaxed
	return c
}

// PageCount returns the number of pages in the PDF at path.
func PageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n, err := api.PageCount(f, conf())
	if err != nil {
		return 0, fmt.Errorf("pdfops: page count %s: %w", filepath.Base(path), err)
	}
	return n, nil
}

// Validate checks that path is a readable PDF with at least one page and
// returns its page count.
func Validate(path string) (int, error) {
	n, err := PageCount(path)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("pdfops: %s has no pages", filepath.Base(path))
	}
	return n, nil
}

// Merge concatenates inputs, in order, into out. A single input is copied.
func Merge(inputs []string, out string) error {
	switch len(inputs) {
	case 0:
		return ErrNoInput
	case 1:
		return Copy(inputs[0], out)
	}
	return writeAtomic(out, func(tmp string) error {
		if err := api.MergeCreateFile(inputs, tmp, false, conf()); err != nil {
			return fmt.Errorf("pdfops: merge: %w", err)
		}
		return nil
	})
}

// Copy writes an identical copy of src to dst through a temporary file.
func Copy(src, dst string) error {
	return writeAtomic(dst, func(tmp string) error { return copyFile(src, tmp) })
}

// DeletePages writes in minus the pages selected by spec to out and returns
// the number of pages removed. Selecting every page is an input error.
func DeletePages(in, out, spec string) (int, error) {
	total, err := PageCount(in)
	if err != nil {
		return 0, err
	}
	pages, err := pagerange.Parse(spec, total)
	if err != nil {
		return 0, err
	}
	if len(pages) == total {
		return 0, fmt.Errorf("%w: cannot delete all %d pages", pagerange.ErrInvalid, total)
	}
	err = writeAtomic(out, func(tmp string) error {
		if err := api.RemovePagesFile(in, tmp, pagerange.Selection(pages), conf()); err != nil {
			return fmt.Errorf("pdfops: delete pages: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}

// ExtractPages writes the pages selected by spec, in document order, to out
// and returns how many were kept.
func ExtractPages(in, out, spec string) (int, error) {
	total, err := PageCount(in)
	if err != nil {
		return 0, err
	}
	pages, err := pagerange.Parse(spec, total)
	if err != nil {
		return 0, err
	}
	err = writeAtomic(out, func(tmp string) error {
		if err := api.TrimFile(in, tmp, pagerange.Selection(pages), conf()); err != nil {
			return fmt.Errorf("pdfops: extract pages: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}

// Split writes each page selected by spec to its own file in outDir, named
// <base>_page_<N>.pdf with N 1-based, and returns the paths in page order.
// An empty spec selects every page. On error, files already written are removed.
func Split(in, outDir, spec string) ([]string, error) {
	total, err := PageCount(in)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(spec) == "" {
		spec = fmt.Sprintf("1-%d", total)
	}
	pages, err := pagerange.Parse(spec, total)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	var written []string
	for _, p := range pages {
		out := filepath.Join(outDir, fmt.Sprintf("%s_page_%d.pdf", base, p+1))
		sel := []string{fmt.Sprint(p + 1)}
		err := writeAtomic(out, func(tmp string) error {
			return api.TrimFile(in, tmp, sel, conf())
		})
		if err != nil {
			for _, w := range written {
				os.Remove(w)
			}
			return nil, fmt.Errorf("pdfops: split page %d: %w", p+1, err)
		}
		written = append(written, out)
	}
	return written, nil
}

// Protect encrypts in with AES-256. The user password is required to open
// the output; the owner password (defaulting to the user password) unlocks
// permissions.
func Protect(in, out, userPW, ownerPW string) error {
	if userPW == "" {
		return fmt.Errorf("pdfops: user password is required")
	}
	if ownerPW == "" {
		ownerPW = userPW
	}
	if _, err := Validate(in); err != nil {
		return err
	}
	return writeAtomic(out, func(tmp string) error {
		c := model.NewAESConfiguration(userPW, ownerPW, 256)
		if err := api.EncryptFile(in, tmp, c); err != nil {
			return fmt.Errorf("pdfops: encrypt: %w", err)
		}
		return nil
	})
}

// writeAtomic lets fn write a temporary file beside out, then renames it
// over out. The temporary file is removed on failure.
func writeAtomic(out string, fn func(tmp string) error) error {
	dir := filepath.Dir(out)
	f, err := os.CreateTemp(dir, "."+filepath.Base(out)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	f.Close()

	if err := fn(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, out); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
