package ghostscript

import "testing"

func TestParamsForQuality(t *testing.T) {
    tests := []struct {
        quality    int
        dpi        int
        jpeg       int
        downsample bool
    }{
        {1, 72, 20, true},   // below the curve clamps to its bottom
        {10, 72, 20, true},  // bottom of the curve
        {55, 186, 58, true}, // midpoint
        {80, 249, 78, true},
        {99, 297, 94, true},
        {100, 300, 95, false}, // near-lossless: no resampling
    }
    for _, tt := range tests {
        p := ParamsForQuality(tt.quality)
        if p.ImageDPI != tt.dpi || p.JPEGQuality != tt.jpeg || p.Downsample != tt.downsample {
            t.Errorf("ParamsForQuality(%d) = %+v, want dpi=%d jpeg=%d downsample=%v",
                tt.quality, p, tt.dpi, tt.jpeg, tt.downsample)
        }
    }
}

func TestParamsForQualityMonotonic(t *testing.T) {
    prev := ParamsForQuality(1)
    for q := 2; q <= 100; q++ {
        p := ParamsForQuality(q)
        if p.ImageDPI < prev.ImageDPI {
            t.Fatalf("ImageDPI decreases from %d at q=%d to %d at q=%d", prev.ImageDPI, q-1, p.ImageDPI, q)
        }
        if p.JPEGQuality < prev.JPEGQuality {
            t.Fatalf("JPEGQuality decreases from %d at q=%d to %d at q=%d", prev.JPEGQuality, q-1, p.JPEGQuality, q)
        }
        prev = p
    }
}

func TestRecompressArgs(t *testing.T) {
    has := func(args []string, want string) bool {
        for _, a := range args {
            if a == want {
                return true
            }
        }
        return false
    }

    args := recompressArgs("in.pdf", "out.pdf", 50)
    for _, want := range []string{
        "-dSAFER",
        "-sDEVICE=pdfwrite",
        "-dDownsampleColorImages=true",
        "-dColorImageResolution=173",
        "-dGrayImageResolution=173",
        "-dMonoImageResolution=600",
        "-dJPEGQ=53",
        "-sOutputFile=out.pdf",
    } {
        if !has(args, want) {
            t.Errorf("recompressArgs(q=50) missing %q in %v", want, args)
        }
    }
    if args[len(args)-1] != "in.pdf" {
        t.Errorf("input file must be the final argument, got %v", args)
    }

    args = recompressArgs("in.pdf", "out.pdf", 100)
    for _, want := range []string{
        "-dDownsampleColorImages=false",
        "-dDownsampleGrayImages=false",
        "-dDownsampleMonoImages=false",
        "-dJPEGQ=95",
    } {
        if !has(args, want) {
            t.Errorf("recompressArgs(q=100) missing %q in %v", want, args)
        }
    }
    for _, a := range args {
        if a == "-dColorImageResolution=300" {
            t.Error("quality 100 must not set a downsampling resolution")
        }
    }
}
