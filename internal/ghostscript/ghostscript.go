package ghostscript

import (
    "context"
    "fmt"
    "time"

    "github.com/local/pdfmerge/internal/extproc"
)

const toolName = "ghostscript"

// Tool invokes Ghostscript's pdfwrite device to re-encode an assembled
// document at a requested quality level.
type Tool struct {
    bin     string
    timeout time.Duration
}

type Options struct {
    Bin     string
    Timeout time.Duration
}

func New(opts Options) *Tool {
    if opts.Bin == "" { opts.Bin = "gs" }
    return &Tool{bin: opts.Bin, timeout: opts.Timeout}
}

// Check verifies the binary is runnable and returns its version line.
func (t *Tool) Check() (string, error) {
    return extproc.CheckBinary(t.bin, "--version")
}

// Recompress re-encodes in at the given quality (1..100) and writes out.
func (t *Tool) Recompress(ctx context.Context, in, out string, quality int) error {
    _, err := extproc.Observed(ctx, t.timeout, toolName, "recompress", t.bin,
        recompressArgs(in, out, quality)...)
    return err
}

func recompressArgs(in, out string, quality int) []string {
    p := ParamsForQuality(quality)
    args := []string{
        "-q",
        "-dNOPAUSE",
        "-dBATCH",
        "-dSAFER",
        "-sDEVICE=pdfwrite",
        "-dCompatibilityLevel=1.4",
        "-dDetectDuplicateImages=true",
        "-dCompressFonts=true",
        "-dSubsetFonts=true",
    }
    if p.Downsample {
        args = append(args,
            "-dDownsampleColorImages=true",
            "-dDownsampleGrayImages=true",
            "-dDownsampleMonoImages=true",
            "-dColorImageDownsampleType=/Bicubic",
            "-dGrayImageDownsampleType=/Bicubic",
            fmt.Sprintf("-dColorImageResolution=%d", p.ImageDPI),
            fmt.Sprintf("-dGrayImageResolution=%d", p.ImageDPI),
            fmt.Sprintf("-dMonoImageResolution=%d", monoDPI),
        )
    } else {
        args = append(args,
            "-dDownsampleColorImages=false",
            "-dDownsampleGrayImages=false",
            "-dDownsampleMonoImages=false",
        )
    }
    args = append(args,
        fmt.Sprintf("-dJPEGQ=%d", p.JPEGQuality),
        "-sOutputFile="+out,
        in,
    )
    return args
}
