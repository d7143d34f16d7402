package filetype

import (
    "fmt"

    "github.com/gabriel-vasile/mimetype"
    "github.com/rs/zerolog/log"
)

// Detector answers the only file-type question this service asks:
// is an uploaded file really a PDF. Detection uses magic bytes, never
// the client-supplied filename or content type.
type Detector struct{}

// New creates a new file type detector.
func New() *Detector {
    return &Detector{}
}

// Detect returns the MIME type of the file at path based on its content.
func (d *Detector) Detect(path string) (string, error) {
    mtype, err := mimetype.DetectFile(path)
    if err != nil {
        return "", fmt.Errorf("failed to detect file type: %w", err)
    }
    log.Debug().Str("mime", mtype.String()).Str("file", path).Msg("detected file type")
    return mtype.String(), nil
}

// IsPDF reports whether the file at path has a PDF signature.
func (d *Detector) IsPDF(path string) (bool, error) {
    mtype, err := mimetype.DetectFile(path)
    if err != nil {
        return false, fmt.Errorf("failed to detect file type: %w", err)
    }
    return mtype.Is("application/pdf"), nil
}
