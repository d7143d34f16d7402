package ghostscript

import "math"

// The quality knob maps onto two pdfwrite parameters: an image
// downsampling resolution cap and a JPEG re-encode quality factor.
// Both grow linearly, and monotonically, with the requested quality.
// Monochrome images keep a fixed high resolution so scanned text stays
// legible at any setting.
const (
    minCurveQuality = 10
    maxQuality      = 100

    minImageDPI = 72
    maxImageDPI = 300
    monoDPI     = 600

    minJPEGQuality = 20
    maxJPEGQuality = 95
)

// Params are the tool-facing encoding parameters for one quality level.
type Params struct {
    ImageDPI    int
    JPEGQuality int
    // Downsample is false only at quality 100: already-small images
    // pass through without destructive resampling.
    Downsample bool
}

// ParamsForQuality maps a 1..100 quality value onto encoding
// parameters. Values below 10 sit on the bottom of the curve.
func ParamsForQuality(quality int) Params {
    q := quality
    if q < minCurveQuality {
        q = minCurveQuality
    }
    if q > maxQuality {
        q = maxQuality
    }
    t := float64(q-minCurveQuality) / float64(maxQuality-minCurveQuality)
    return Params{
        ImageDPI:    int(math.Round(minImageDPI + t*(maxImageDPI-minImageDPI))),
        JPEGQuality: int(math.Round(minJPEGQuality + t*(maxJPEGQuality-minJPEGQuality))),
        Downsample:  quality < maxQuality,
    }
}
