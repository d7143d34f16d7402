package merge

import (
    "encoding/json"
    "fmt"
)

// ParseLayout decodes the client's ordered list of {doc,page} pairs.
func ParseLayout(data []byte) (Layout, error) {
    var l Layout
    if err := json.Unmarshal(data, &l); err != nil {
        return nil, &Error{Kind: KindInvalidLayout, Msg: "malformed layout", Err: err}
    }
    return l, nil
}

// Validate cross-checks the layout against the source set and the
// authoritative page counts. Validation is all-or-nothing: the first
// violation fails the whole request, because silently dropping entries
// would produce a document the user did not ask for.
func (l Layout) Validate(set *SourceSet, counts map[string]CountResult) error {
    if len(l) == 0 {
        return &Error{Kind: KindInvalidLayout, Msg: "layout is empty"}
    }
    for i, e := range l {
        if _, ok := set.Get(e.Doc); !ok {
            return &Error{Kind: KindInvalidLayout, Entry: i + 1, Doc: e.Doc, Page: e.Page,
                Msg: "layout references a document that was not uploaded"}
        }
        cr, ok := counts[e.Doc]
        if !ok || cr.Err != nil {
            // A document that failed counting invalidates every entry
            // referencing it; surface the counting failure itself.
            if cr.Err != nil {
                return cr.Err
            }
            return &Error{Kind: KindInvalidLayout, Entry: i + 1, Doc: e.Doc,
                Msg: "no page count available for document"}
        }
        if e.Page < 1 || e.Page > cr.Pages {
            return &Error{Kind: KindInvalidLayout, Entry: i + 1, Doc: e.Doc, Page: e.Page,
                Msg: fmt.Sprintf("page out of range (document has %d pages)", cr.Pages)}
        }
    }
    return nil
}

// Instructions groups the layout into extraction instructions. Maximal
// runs of consecutive entries on the same document with page numbers
// increasing by exactly one collapse into a single page-range
// instruction; every other entry becomes a single-page instruction.
// Instruction order is layout order, so concatenating the extracted
// ranges reproduces the layout exactly, duplicates included.
func (l Layout) Instructions(set *SourceSet) []Instruction {
    var out []Instruction
    for _, e := range l {
        doc, _ := set.Get(e.Doc)
        if n := len(out); n > 0 {
            last := &out[n-1]
            if last.Doc == e.Doc && e.Page == last.End+1 {
                last.End = e.Page
                continue
            }
        }
        out = append(out, Instruction{Doc: e.Doc, Path: doc.Path, Start: e.Page, End: e.Page})
    }
    return out
}

// FullLayout builds the legacy whole-document layout: every page of
// every document in upload order.
func FullLayout(docs []*SourceDocument, counts map[string]CountResult) (Layout, error) {
    var l Layout
    for _, d := range docs {
        cr := counts[d.ID]
        if cr.Err != nil {
            return nil, cr.Err
        }
        for p := 1; p <= cr.Pages; p++ {
            l = append(l, Entry{Doc: d.ID, Page: p})
        }
    }
    return l, nil
}
