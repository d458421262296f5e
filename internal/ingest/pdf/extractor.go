// Package pdf extracts plain text from PDF documents with poppler's pdftotext.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultTool is the extraction binary looked up on PATH.
const DefaultTool = "pdftotext"

var (
	// ErrToolNotFound is returned when the extraction binary is not installed.
	ErrToolNotFound = errors.New("pdftotext not found in PATH")

	// ErrNotPDF is returned for uploads without a .pdf extension.
	ErrNotPDF = errors.New("file must have a .pdf extension")
)

// CommandRunner executes an external command with stdin and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Extractor turns PDF bytes into text.
type Extractor struct {
	tool   string
	runner CommandRunner
}

// New returns an extractor running tool (DefaultTool when empty) as a subprocess.
func New(tool string) *Extractor {
	return NewWithRunner(tool, execRunner{})
}

// NewWithRunner returns an extractor using a custom command runner.
func NewWithRunner(tool string, runner CommandRunner) *Extractor {
	if tool == "" {
		tool = DefaultTool
	}
	return &Extractor{tool: tool, runner: runner}
}

// CheckAvailable reports whether the extraction binary can be found.
func (e *Extractor) CheckAvailable() error {
	if _, err := exec.LookPath(e.tool); err != nil {
		return fmt.Errorf("%w: %s", ErrToolNotFound, e.tool)
	}
	return nil
}

// Extract reads a PDF from r and returns the text of all pages in order,
// with layout preserved and page breaks as form feeds.
func (e *Extractor) Extract(ctx context.Context, r io.Reader) (string, error) {
	out, err := e.runner.Run(ctx, r, e.tool, "-layout", "-enc", "UTF-8", "-", "-")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrToolNotFound, e.tool)
		}
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	return string(out), nil
}

// IsPDFFilename reports whether name ends in .pdf, ignoring case.
func IsPDFFilename(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// InstallInstructions describes how to install the extraction tool.
func InstallInstructions() string {
	return "pdftotext is part of poppler: brew install poppler (macOS) or apt install poppler-utils (Debian/Ubuntu)"
}
