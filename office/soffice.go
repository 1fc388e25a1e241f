package office

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Soffice converts documents with LibreOffice in headless mode. Every run
// gets its own user profile and output directory, so concurrent runs and a
// LibreOffice instance the user has open do not interfere.
type Soffice struct {
	Path       string
	Timeout    time.Duration
	ScratchDir string
}

// Convert runs soffice --convert-to pdf and moves the result to dst.
func (s *Soffice) Convert(ctx context.Context, src, dst string) error {
	if s.Path == "" {
		return ErrUnavailable
	}
	abs, err := filepath.Abs(src)
	if err != nil {
		return err
	}

	priv, err := os.MkdirTemp(s.ScratchDir, "soffice-*")
	if err != nil {
		return fmt.Errorf("libreoffice: private dir: %w", err)
	}
	defer os.RemoveAll(priv)
	outDir := filepath.Join(priv, "out")
	if err := os.Mkdir(outDir, 0o700); err != nil {
		return fmt.Errorf("libreoffice: private dir: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.Path,
		"-env:UserInstallation="+profileURL(filepath.Join(priv, "profile")),
		"--headless", "--invisible", "--norestore", "--nolockcheck",
		"--convert-to", "pdf", "--outdir", outDir, abs)
	killTree(cmd)
	cmd.WaitDelay = 2 * time.Second
	output, err := cmd.CombinedOutput()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("libreoffice: %w after %s", ErrTimeout, s.Timeout)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("libreoffice: %w: %s", err, strings.TrimSpace(string(output)))
	}

	produced, err := findProduced(outDir, abs)
	if err != nil {
		return fmt.Errorf("libreoffice: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}
	return moveFile(produced, dst)
}

func profileURL(dir string) string {
	p := filepath.ToSlash(dir)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}

// findProduced returns the PDF soffice wrote for src. LibreOffice names it
// after the input's base name; any single PDF in outDir is accepted.
func findProduced(outDir, src string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	want := filepath.Join(outDir, base+".pdf")
	if _, err := os.Stat(want); err == nil {
		return want, nil
	}
	matches, _ := filepath.Glob(filepath.Join(outDir, "*.pdf"))
	if len(matches) == 1 {
		return matches[0], nil
	}
	return "", fmt.Errorf("no PDF produced")
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
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
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}
