package merge

import (
    "fmt"
    "io"
    "os"

    "github.com/rs/zerolog/log"

    "github.com/local/pdfmerge/internal/metrics"
    "github.com/local/pdfmerge/internal/workarea"
)

// PDFSniffer checks a file's magic bytes for a PDF signature.
type PDFSniffer interface {
    IsPDF(path string) (bool, error)
}

// SourceSet is the validated, size-bounded collection of uploaded
// documents for one request, keyed by client-supplied identifier.
// Documents live inside the request's work area and vanish with it.
type SourceSet struct {
    area         *workarea.Area
    sniffer      PDFSniffer
    maxDocs      int
    maxFileBytes int64
    docs         map[string]*SourceDocument
    order        []string
}

func NewSourceSet(area *workarea.Area, sniffer PDFSniffer, maxDocs int, maxFileBytes int64) *SourceSet {
    return &SourceSet{
        area:         area,
        sniffer:      sniffer,
        maxDocs:      maxDocs,
        maxFileBytes: maxFileBytes,
        docs:         map[string]*SourceDocument{},
    }
}

// Add streams one uploaded document into the work area under a
// server-generated filename. Count, size and signature checks all
// happen here, before any external process runs.
func (s *SourceSet) Add(id, filename string, r io.Reader) (*SourceDocument, error) {
    if id == "" {
        return nil, &Error{Kind: KindInvalidLayout, Msg: "empty document identifier"}
    }
    if _, exists := s.docs[id]; exists {
        return nil, &Error{Kind: KindDuplicateDocument, Doc: id, Msg: "document identifier already uploaded"}
    }
    if len(s.docs) >= s.maxDocs {
        return nil, &Error{Kind: KindTooManyDocuments, Doc: id,
            Msg: fmt.Sprintf("at most %d documents per request", s.maxDocs)}
    }

    path := s.area.NewFile("src", ".pdf")
    out, err := os.Create(path)
    if err != nil {
        return nil, &Error{Kind: KindWorkAreaFailure, Doc: id, Err: err}
    }
    // Read one byte past the limit so an oversized upload is detected
    // without buffering the whole body.
    n, err := io.Copy(out, io.LimitReader(r, s.maxFileBytes+1))
    if cerr := out.Close(); err == nil {
        err = cerr
    }
    if err != nil {
        os.Remove(path)
        return nil, &Error{Kind: KindWorkAreaFailure, Doc: id, Err: err}
    }
    if n > s.maxFileBytes {
        os.Remove(path)
        return nil, &Error{Kind: KindDocumentTooLarge, Doc: id,
            Msg: fmt.Sprintf("%s exceeds %d MB", filename, s.maxFileBytes/1024/1024)}
    }

    ok, err := s.sniffer.IsPDF(path)
    if err != nil {
        os.Remove(path)
        return nil, &Error{Kind: KindUnreadableDocument, Doc: id, Err: err}
    }
    if !ok {
        os.Remove(path)
        return nil, &Error{Kind: KindUnreadableDocument, Doc: id,
            Msg: fmt.Sprintf("%s does not look like a PDF", filename)}
    }

    doc := &SourceDocument{ID: id, Name: filename, Size: n, Path: path}
    s.docs[id] = doc
    s.order = append(s.order, id)
    metrics.AddUploadBytes(n)
    log.Debug().Str("doc", id).Str("name", filename).Int64("bytes", n).Msg("source document accepted")
    return doc, nil
}

// Len returns the number of accepted documents.
func (s *SourceSet) Len() int { return len(s.docs) }

// Get returns the document with the given identifier.
func (s *SourceSet) Get(id string) (*SourceDocument, bool) {
    d, ok := s.docs[id]
    return d, ok
}

// Documents returns the accepted documents in upload order.
func (s *SourceSet) Documents() []*SourceDocument {
    out := make([]*SourceDocument, 0, len(s.order))
    for _, id := range s.order {
        out = append(out, s.docs[id])
    }
    return out
}
