package pdfinfo

import (
    "context"
    "fmt"

    "github.com/pdfcpu/pdfcpu/pkg/api"
)

// Counter counts PDF pages in-process with pdfcpu. It serves as the
// fallback page counter when the qpdf binary is not installed; the
// merge pipeline prefers the external tool so that counting and
// extraction agree on how a borderline file is parsed.
type Counter struct{}

func New() *Counter { return &Counter{} }

// CountPages returns the page count of the PDF at path.
func (c *Counter) CountPages(ctx context.Context, path string) (int, error) {
    if err := ctx.Err(); err != nil {
        return 0, err
    }
    n, err := api.PageCountFile(path)
    if err != nil {
        return 0, fmt.Errorf("pdf page count failed: %w", err)
    }
    return n, nil
}
