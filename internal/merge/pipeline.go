package merge

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/local/pdfmerge/internal/extproc"
    "github.com/local/pdfmerge/internal/workarea"
)

// PageCounter returns the authoritative page count of a PDF on disk.
type PageCounter interface {
    CountPages(ctx context.Context, path string) (int, error)
}

// Assembler extracts page ranges and concatenates the extracted parts.
type Assembler interface {
    ExtractRange(ctx context.Context, src string, start, end int, out string) error
    Concat(ctx context.Context, parts []string, out string) error
}

// Recompressor re-encodes an assembled document at a quality level.
type Recompressor interface {
    Recompress(ctx context.Context, in, out string, quality int) error
}

// Linearizer restructures a document for progressive web viewing.
type Linearizer interface {
    Linearize(ctx context.Context, in, out string) error
}

// Pipeline runs one merge request end to end inside its work area:
// count -> validate -> extract -> concatenate -> recompress ->
// optionally linearize. It holds no mutable state across requests;
// concurrent requests share only this read-only configuration.
type Pipeline struct {
    Counter          PageCounter
    Assembler        Assembler
    Recompressor     Recompressor
    Linearizer       Linearizer
    CountConcurrency int
}

// Run executes req and returns the path of the final document inside
// area. Any failure aborts the whole request; there is never a
// partial or reordered output.
func (p *Pipeline) Run(ctx context.Context, area *workarea.Area, req Request) (string, error) {
    start := time.Now()
    docs := req.Sources.Documents()
    if len(docs) == 0 {
        return "", &Error{Kind: KindInvalidLayout, Msg: "no documents uploaded"}
    }

    counts := p.countAll(ctx, docs)
    if err := ctx.Err(); err != nil {
        return "", err
    }

    layout := req.Layout
    if layout == nil {
        full, err := FullLayout(docs, counts)
        if err != nil {
            return "", err
        }
        layout = full
    }

    if err := layout.Validate(req.Sources, counts); err != nil {
        return "", err
    }

    instrs := layout.Instructions(req.Sources)
    parts := make([]string, len(instrs))
    for i, ins := range instrs {
        out := area.NewFile(fmt.Sprintf("part_%03d", i), ".pdf")
        if err := p.Assembler.ExtractRange(ctx, ins.Path, ins.Start, ins.End, out); err != nil {
            if errors.Is(err, context.Canceled) {
                return "", err
            }
            return "", &Error{Kind: KindExtractionFailed, Doc: ins.Doc, Page: ins.Start,
                Msg: fmt.Sprintf("extracting pages %d-%d", ins.Start, ins.End), Err: err}
        }
        parts[i] = out
    }

    assembled := parts[0]
    if len(parts) > 1 {
        assembled = area.NewFile("assembled", ".pdf")
        if err := p.Assembler.Concat(ctx, parts, assembled); err != nil {
            if errors.Is(err, context.Canceled) {
                return "", err
            }
            return "", &Error{Kind: KindAssemblyFailed, Msg: "concatenating extracted parts", Err: err}
        }
    }

    recompressed := area.NewFile("recompressed", ".pdf")
    if err := p.Recompressor.Recompress(ctx, assembled, recompressed, req.Quality); err != nil {
        if errors.Is(err, context.Canceled) {
            return "", err
        }
        return "", &Error{Kind: KindRecompressionFailed,
            Msg: fmt.Sprintf("recompressing at quality %d", req.Quality), Err: err}
    }

    final := recompressed
    if req.Linearize {
        lin := area.NewFile("linearized", ".pdf")
        if err := p.Linearizer.Linearize(ctx, recompressed, lin); err != nil {
            if errors.Is(err, context.Canceled) {
                return "", err
            }
            return "", &Error{Kind: KindRecompressionFailed, Msg: "linearizing output", Err: err}
        }
        final = lin
    }

    log.Info().Int("documents", len(docs)).Int("entries", len(layout)).
        Int("instructions", len(instrs)).Int("quality", req.Quality).
        Bool("linearize", req.Linearize).Dur("duration", time.Since(start)).
        Msg("merge pipeline complete")
    return final, nil
}

// countAll probes every document with bounded parallelism. Probes are
// independent read-only calls; one failure never aborts its siblings.
// The result map is the validation barrier's input.
func (p *Pipeline) countAll(ctx context.Context, docs []*SourceDocument) map[string]CountResult {
    limit := p.CountConcurrency
    if limit <= 0 {
        limit = len(docs)
    }
    sem := make(chan struct{}, limit)
    var wg sync.WaitGroup
    var mu sync.Mutex
    results := make(map[string]CountResult, len(docs))

    for _, d := range docs {
        wg.Add(1)
        go func(d *SourceDocument) {
            defer wg.Done()
            sem <- struct{}{}
            defer func() { <-sem }()

            n, err := p.Counter.CountPages(ctx, d.Path)
            res := CountResult{Pages: n}
            if err != nil {
                res.Err = classifyCountError(d.ID, err)
                log.Warn().Err(err).Str("doc", d.ID).Msg("page count failed")
            }
            mu.Lock()
            results[d.ID] = res
            mu.Unlock()
        }(d)
    }
    wg.Wait()
    return results
}

func classifyCountError(docID string, err error) error {
    if errors.Is(err, context.Canceled) {
        return err
    }
    if extproc.IsTimeout(err) {
        return &Error{Kind: KindCountTimeout, Doc: docID, Err: err}
    }
    return &Error{Kind: KindUnreadableDocument, Doc: docID, Err: err}
}
