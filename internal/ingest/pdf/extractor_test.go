package pdf

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output []byte
	err    error

	name  string
	args  []string
	stdin string
}

func (m *mockRunner) Run(_ context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	data, _ := io.ReadAll(stdin)
	m.stdin = string(data)
	m.name = name
	m.args = args
	return m.output, m.err
}

func TestExtract_WithMockRunner(t *testing.T) {
	runner := &mockRunner{output: []byte("Page one text\n\fPage two text\n")}
	extractor := NewWithRunner("", runner)

	text, err := extractor.Extract(context.Background(), strings.NewReader("%PDF-1.4 fake pdf content"))
	require.NoError(t, err)

	assert.Equal(t, "Page one text\n\fPage two text\n", text)
	assert.Equal(t, DefaultTool, runner.name)
	assert.Equal(t, []string{"-layout", "-enc", "UTF-8", "-", "-"}, runner.args)
	assert.Equal(t, "%PDF-1.4 fake pdf content", runner.stdin)
}

func TestExtract_RunnerError(t *testing.T) {
	extractor := NewWithRunner("", &mockRunner{err: errors.New("Syntax Error: Couldn't find trailer dictionary")})

	_, err := extractor.Extract(context.Background(), strings.NewReader("not a pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext failed")
}

func TestExtract_ToolMissing(t *testing.T) {
	extractor := NewWithRunner("", &mockRunner{err: &exec.Error{Name: "pdftotext", Err: exec.ErrNotFound}})

	_, err := extractor.Extract(context.Background(), strings.NewReader(""))
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestCheckAvailable_UnknownTool(t *testing.T) {
	err := New("definitely-not-a-real-pdf-tool").CheckAvailable()
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestIsPDFFilename(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"paper.pdf", true},
		{"PAPER.PDF", true},
		{"report.Pdf", true},
		{"notes.txt", false},
		{"pdf", false},
		{"archive.pdf.zip", false},
		{"", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsPDFFilename(tc.name))
		})
	}
}

func TestInstallInstructions(t *testing.T) {
	instructions := InstallInstructions()
	assert.Contains(t, instructions, "pdftotext")
	assert.Contains(t, instructions, "brew install poppler")
	assert.Contains(t, instructions, "apt install poppler-utils")
}
