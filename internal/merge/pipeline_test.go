package merge

import (
    "context"
    "errors"
    "strings"
    "sync"
    "testing"

    "github.com/local/pdfmerge/internal/extproc"
)

type fakeCounter struct {
    mu    sync.Mutex
    pages map[string]int // keyed by document path
    errs  map[string]error
    calls int
}

func (c *fakeCounter) CountPages(ctx context.Context, path string) (int, error) {
    c.mu.Lock()
    c.calls++
    c.mu.Unlock()
    if err, ok := c.errs[path]; ok {
        return 0, err
    }
    return c.pages[path], nil
}

type extractCall struct {
    src        string
    start, end int
    out        string
}

type fakeAssembler struct {
    extracts   []extractCall
    concats    [][]string
    concatOut  string
    extractErr error
}

func (a *fakeAssembler) ExtractRange(ctx context.Context, src string, start, end int, out string) error {
    if a.extractErr != nil {
        return a.extractErr
    }
    a.extracts = append(a.extracts, extractCall{src: src, start: start, end: end, out: out})
    return nil
}

func (a *fakeAssembler) Concat(ctx context.Context, parts []string, out string) error {
    a.concats = append(a.concats, append([]string(nil), parts...))
    a.concatOut = out
    return nil
}

type fakeRecompressor struct {
    in, out string
    quality int
    err     error
}

func (r *fakeRecompressor) Recompress(ctx context.Context, in, out string, quality int) error {
    r.in, r.out, r.quality = in, out, quality
    return r.err
}

type fakeLinearizer struct {
    in, out string
    called  bool
}

func (l *fakeLinearizer) Linearize(ctx context.Context, in, out string) error {
    l.in, l.out, l.called = in, out, true
    return nil
}

type fixture struct {
    pipeline *Pipeline
    counter  *fakeCounter
    asm      *fakeAssembler
    rec      *fakeRecompressor
    lin      *fakeLinearizer
    set      *SourceSet
}

// newFixture wires a pipeline over fake tools for documents a (3 pages)
// and b (2 pages).
func newFixture(t *testing.T) *fixture {
    t.Helper()
    set := testSet("a", "b")
    counter := &fakeCounter{pages: map[string]int{
        "/work/a.pdf": 3,
        "/work/b.pdf": 2,
    }}
    asm := &fakeAssembler{}
    rec := &fakeRecompressor{}
    lin := &fakeLinearizer{}
    return &fixture{
        pipeline: &Pipeline{
            Counter:          counter,
            Assembler:        asm,
            Recompressor:     rec,
            Linearizer:       lin,
            CountConcurrency: 2,
        },
        counter: counter,
        asm:     asm,
        rec:     rec,
        lin:     lin,
        set:     set,
    }
}

func TestPipelineRunCoalescedLayout(t *testing.T) {
    f := newFixture(t)
    area := testArea(t)

    layout := Layout{
        {Doc: "a", Page: 1}, {Doc: "a", Page: 2},
        {Doc: "b", Page: 1},
        {Doc: "a", Page: 3},
    }
    out, err := f.pipeline.Run(context.Background(), area, Request{
        Sources: f.set,
        Layout:  layout,
        Quality: 75,
    })
    if err != nil {
        t.Fatalf("Run: %v", err)
    }

    want := []extractCall{
        {src: "/work/a.pdf", start: 1, end: 2},
        {src: "/work/b.pdf", start: 1, end: 1},
        {src: "/work/a.pdf", start: 3, end: 3},
    }
    if len(f.asm.extracts) != len(want) {
        t.Fatalf("got %d extract calls, want %d", len(f.asm.extracts), len(want))
    }
    for i, w := range want {
        g := f.asm.extracts[i]
        if g.src != w.src || g.start != w.start || g.end != w.end {
            t.Errorf("extract[%d] = %+v, want src=%s %d-%d", i, g, w.src, w.start, w.end)
        }
    }

    // Concat receives the extracted parts in instruction order.
    if len(f.asm.concats) != 1 {
        t.Fatalf("got %d concat calls, want 1", len(f.asm.concats))
    }
    for i, p := range f.asm.concats[0] {
        if p != f.asm.extracts[i].out {
            t.Errorf("concat part[%d] = %s, want %s", i, p, f.asm.extracts[i].out)
        }
    }

    if f.rec.in != f.asm.concatOut || f.rec.quality != 75 {
        t.Errorf("recompress in=%s quality=%d, want in=%s quality=75", f.rec.in, f.rec.quality, f.asm.concatOut)
    }
    if f.lin.called {
        t.Error("linearize called without being requested")
    }
    if out != f.rec.out {
        t.Errorf("Run returned %s, want recompressed output %s", out, f.rec.out)
    }
    if !strings.HasPrefix(out, area.Path()) {
        t.Errorf("output %s escapes the work area %s", out, area.Path())
    }
}

func TestPipelineRunSingleInstructionSkipsConcat(t *testing.T) {
    f := newFixture(t)
    area := testArea(t)

    _, err := f.pipeline.Run(context.Background(), area, Request{
        Sources: f.set,
        Layout:  Layout{{Doc: "a", Page: 1}, {Doc: "a", Page: 2}, {Doc: "a", Page: 3}},
        Quality: 80,
    })
    if err != nil {
        t.Fatalf("Run: %v", err)
    }
    if len(f.asm.extracts) != 1 {
        t.Fatalf("got %d extract calls, want 1", len(f.asm.extracts))
    }
    if len(f.asm.concats) != 0 {
        t.Error("concat called for a single-instruction layout")
    }
    if f.rec.in != f.asm.extracts[0].out {
        t.Errorf("recompress input = %s, want the single extracted part %s", f.rec.in, f.asm.extracts[0].out)
    }
}

func TestPipelineRunLegacyWholeDocumentMerge(t *testing.T) {
    f := newFixture(t)
    area := testArea(t)

    // A nil layout means every page of every document in upload order.
    _, err := f.pipeline.Run(context.Background(), area, Request{
        Sources: f.set,
        Quality: 80,
    })
    if err != nil {
        t.Fatalf("Run: %v", err)
    }
    want := []extractCall{
        {src: "/work/a.pdf", start: 1, end: 3},
        {src: "/work/b.pdf", start: 1, end: 2},
    }
    if len(f.asm.extracts) != len(want) {
        t.Fatalf("got %d extract calls, want %d", len(f.asm.extracts), len(want))
    }
    for i, w := range want {
        g := f.asm.extracts[i]
        if g.src != w.src || g.start != w.start || g.end != w.end {
            t.Errorf("extract[%d] = %+v, want src=%s %d-%d", i, g, w.src, w.start, w.end)
        }
    }
}

func TestPipelineRunLinearize(t *testing.T) {
    f := newFixture(t)
    area := testArea(t)

    out, err := f.pipeline.Run(context.Background(), area, Request{
        Sources:   f.set,
        Layout:    Layout{{Doc: "b", Page: 1}},
        Quality:   100,
        Linearize: true,
    })
    if err != nil {
        t.Fatalf("Run: %v", err)
    }
    if !f.lin.called {
        t.Fatal("linearize not called")
    }
    if f.lin.in != f.rec.out {
        t.Errorf("linearize input = %s, want recompressed output %s", f.lin.in, f.rec.out)
    }
    if out != f.lin.out {
        t.Errorf("Run returned %s, want linearized output %s", out, f.lin.out)
    }
}

func TestPipelineRunCountFailureAborts(t *testing.T) {
    tests := []struct {
        name string
        err  error
        want Kind
    }{
        {"timeout", &extproc.RunError{Bin: "qpdf", TimedOut: true, Err: context.DeadlineExceeded}, KindCountTimeout},
        {"corrupt", errors.New("qpdf failed: damaged file"), KindUnreadableDocument},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            f := newFixture(t)
            f.counter.errs = map[string]error{"/work/b.pdf": tt.err}
            area := testArea(t)

            _, err := f.pipeline.Run(context.Background(), area, Request{
                Sources: f.set,
                Layout:  Layout{{Doc: "a", Page: 1}, {Doc: "b", Page: 1}},
                Quality: 80,
            })
            if KindOf(err) != tt.want {
                t.Errorf("got %v, want kind %s", err, tt.want)
            }
            if len(f.asm.extracts) != 0 {
                t.Errorf("extraction ran %d time(s) despite a failed count", len(f.asm.extracts))
            }
        })
    }
}

func TestPipelineRunInvalidLayoutAborts(t *testing.T) {
    f := newFixture(t)
    area := testArea(t)

    _, err := f.pipeline.Run(context.Background(), area, Request{
        Sources: f.set,
        Layout:  Layout{{Doc: "a", Page: 1}, {Doc: "b", Page: 99}},
        Quality: 80,
    })
    if KindOf(err) != KindInvalidLayout {
        t.Errorf("got %v, want kind %s", err, KindInvalidLayout)
    }
    if len(f.asm.extracts) != 0 || f.rec.in != "" {
        t.Error("pipeline stages ran despite an invalid layout")
    }
}

func TestPipelineRunExtractionFailure(t *testing.T) {
    f := newFixture(t)
    f.asm.extractErr = errors.New("qpdf failed: object out of range")
    area := testArea(t)

    _, err := f.pipeline.Run(context.Background(), area, Request{
        Sources: f.set,
        Layout:  Layout{{Doc: "a", Page: 2}, {Doc: "a", Page: 3}},
        Quality: 80,
    })
    var me *Error
    if !errors.As(err, &me) || me.Kind != KindExtractionFailed {
        t.Fatalf("got %v, want kind %s", err, KindExtractionFailed)
    }
    if me.Doc != "a" || me.Page != 2 {
        t.Errorf("got doc=%s page=%d, want doc=a page=2", me.Doc, me.Page)
    }
    if f.rec.in != "" {
        t.Error("recompression ran despite a failed extraction")
    }
}

func TestPipelineRunRecompressionFailure(t *testing.T) {
    f := newFixture(t)
    f.rec.err = errors.New("gs failed: ioerror")
    area := testArea(t)

    _, err := f.pipeline.Run(context.Background(), area, Request{
        Sources: f.set,
        Layout:  Layout{{Doc: "a", Page: 1}},
        Quality: 40,
    })
    if KindOf(err) != KindRecompressionFailed {
        t.Errorf("got %v, want kind %s", err, KindRecompressionFailed)
    }
}

func TestPipelineRunCancelled(t *testing.T) {
    f := newFixture(t)
    area := testArea(t)

    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    _, err := f.pipeline.Run(ctx, area, Request{
        Sources: f.set,
        Layout:  Layout{{Doc: "a", Page: 1}},
        Quality: 80,
    })
    if !errors.Is(err, context.Canceled) {
        t.Errorf("got %v, want context.Canceled", err)
    }
    if len(f.asm.extracts) != 0 {
        t.Error("extraction ran after cancellation")
    }
}

func TestPipelineRunNoDocuments(t *testing.T) {
    f := newFixture(t)
    area := testArea(t)

    _, err := f.pipeline.Run(context.Background(), area, Request{
        Sources: NewSourceSet(area, prefixSniffer{}, 10, 1<<20),
        Quality: 80,
    })
    if KindOf(err) != KindInvalidLayout {
        t.Errorf("got %v, want kind %s", err, KindInvalidLayout)
    }
    if f.counter.calls != 0 {
        t.Error("counting ran with no documents")
    }
}
