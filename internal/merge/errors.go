package merge

import (
    "errors"
    "fmt"
    "strings"
)

// Kind classifies merge failures. The web layer maps kinds onto HTTP
// statuses; nothing downstream ever downgrades one of these to a
// partial result.
type Kind string

const (
    KindTooManyDocuments    Kind = "too_many_documents"
    KindDocumentTooLarge    Kind = "document_too_large"
    KindDuplicateDocument   Kind = "duplicate_document"
    KindUnreadableDocument  Kind = "unreadable_document"
    KindCountTimeout        Kind = "count_timeout"
    KindInvalidLayout       Kind = "invalid_layout"
    KindExtractionFailed    Kind = "extraction_failed"
    KindAssemblyFailed      Kind = "assembly_failed"
    KindRecompressionFailed Kind = "recompression_failed"
    KindWorkAreaFailure     Kind = "work_area_failure"
)

// Error carries enough context to tell the user which document, page
// and stage failed.
type Error struct {
    Kind  Kind
    Doc   string // document identifier, when one is implicated
    Page  int    // 1-based page number, when one is implicated
    Entry int    // 1-based layout entry position, when one is implicated
    Msg   string
    Err   error
}

func (e *Error) Error() string {
    var b strings.Builder
    b.WriteString(string(e.Kind))
    if e.Entry > 0 {
        fmt.Fprintf(&b, " (entry %d)", e.Entry)
    }
    if e.Doc != "" {
        fmt.Fprintf(&b, " doc=%s", e.Doc)
    }
    if e.Page > 0 {
        fmt.Fprintf(&b, " page=%d", e.Page)
    }
    if e.Msg != "" {
        b.WriteString(": ")
        b.WriteString(e.Msg)
    }
    if e.Err != nil {
        b.WriteString(": ")
        b.WriteString(e.Err.Error())
    }
    return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from err, or "" for untyped errors.
func KindOf(err error) Kind {
    var me *Error
    if errors.As(err, &me) {
        return me.Kind
    }
    return ""
}

// UserFacing reports whether the kind describes a problem with the
// caller's input rather than an internal fault.
func (k Kind) UserFacing() bool {
    switch k {
    case KindTooManyDocuments, KindDocumentTooLarge, KindDuplicateDocument,
        KindUnreadableDocument, KindCountTimeout, KindInvalidLayout:
        return true
    }
    return false
}
