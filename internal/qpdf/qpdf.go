package qpdf

import (
    "context"
    "fmt"
    "strconv"
    "strings"
    "time"

    "github.com/local/pdfmerge/internal/extproc"
)

const toolName = "qpdf"

// Tool invokes the qpdf binary for page counting, page-range
// extraction, concatenation and linearization. All invocations are
// bounded by per-operation timeouts and the caller's context.
type Tool struct {
    bin              string
    countTimeout     time.Duration
    extractTimeout   time.Duration
    assembleTimeout  time.Duration
    linearizeTimeout time.Duration
}

type Options struct {
    Bin              string
    CountTimeout     time.Duration
    ExtractTimeout   time.Duration
    AssembleTimeout  time.Duration
    LinearizeTimeout time.Duration
}

func New(opts Options) *Tool {
    if opts.Bin == "" { opts.Bin = "qpdf" }
    return &Tool{
        bin:              opts.Bin,
        countTimeout:     opts.CountTimeout,
        extractTimeout:   opts.ExtractTimeout,
        assembleTimeout:  opts.AssembleTimeout,
        linearizeTimeout: opts.LinearizeTimeout,
    }
}

// Check verifies the binary is runnable and returns its version line.
func (t *Tool) Check() (string, error) {
    return extproc.CheckBinary(t.bin, "--version")
}

// CountPages returns the authoritative page count of the PDF at path.
func (t *Tool) CountPages(ctx context.Context, path string) (int, error) {
    out, err := extproc.Observed(ctx, t.countTimeout, toolName, "count", t.bin, "--show-npages", path)
    if err != nil {
        return 0, err
    }
    n, err := strconv.Atoi(strings.TrimSpace(string(out)))
    if err != nil {
        return 0, fmt.Errorf("unexpected qpdf page count output %q", strings.TrimSpace(string(out)))
    }
    return n, nil
}

// ExtractRange writes pages start..end (1-based, inclusive) of src to out.
func (t *Tool) ExtractRange(ctx context.Context, src string, start, end int, out string) error {
    _, err := extproc.Observed(ctx, t.extractTimeout, toolName, "extract", t.bin,
        extractArgs(src, start, end, out)...)
    return err
}

// Concat concatenates the given single-range part files, in order, into out.
func (t *Tool) Concat(ctx context.Context, parts []string, out string) error {
    _, err := extproc.Observed(ctx, t.assembleTimeout, toolName, "concat", t.bin,
        concatArgs(parts, out)...)
    return err
}

// Linearize rewrites in as a web-optimized (fast first page) PDF at out.
func (t *Tool) Linearize(ctx context.Context, in, out string) error {
    _, err := extproc.Observed(ctx, t.linearizeTimeout, toolName, "linearize", t.bin,
        "--linearize", in, out)
    return err
}

func extractArgs(src string, start, end int, out string) []string {
    return []string{"--empty", "--pages", src, pageRange(start, end), "--", out}
}

func concatArgs(parts []string, out string) []string {
    args := []string{"--empty", "--pages"}
    for _, p := range parts {
        args = append(args, p, "1-z")
    }
    return append(args, "--", out)
}

func pageRange(start, end int) string {
    if start == end {
        return strconv.Itoa(start)
    }
    return fmt.Sprintf("%d-%d", start, end)
}
