package merge

// SourceDocument is one uploaded PDF, owned exclusively by its request.
// The on-disk path uses a server-generated name inside the request's
// work area; the original filename is for display only.
type SourceDocument struct {
    ID   string
    Name string
    Size int64
    Path string
}

// Entry is one element of the client-declared output sequence:
// a 1-based page of one uploaded document.
type Entry struct {
    Doc  string `json:"doc"`
    Page int    `json:"page"`
}

// Layout is the ordered output sequence. Entry order is the exact
// intended page order of the merged document. A nil Layout means the
// legacy whole-document merge: every page of every document in upload
// order.
type Layout []Entry

// Request is one unit of merge work.
type Request struct {
    Sources   *SourceSet
    Layout    Layout
    Quality   int
    Linearize bool
}

// Instruction extracts one contiguous forward page range of one source
// document. The assembler concatenates instruction outputs in slice
// order, which is what preserves the layout's page order.
type Instruction struct {
    Doc   string
    Path  string
    Start int
    End   int
}

// PageCount returns the number of pages the instruction produces.
func (i Instruction) PageCount() int { return i.End - i.Start + 1 }

// CountResult is one document's authoritative page count, or the
// reason it could not be determined.
type CountResult struct {
    Pages int
    Err   error
}
