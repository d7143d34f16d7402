package web

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/local/pdfmerge/internal/extproc"
    "github.com/local/pdfmerge/internal/merge"
    "github.com/local/pdfmerge/internal/metrics"
)

// maxSmallFieldBytes caps non-file form fields (quality, layout, ...).
const maxSmallFieldBytes = 1 << 20

type errorResponse struct {
    Error string `json:"error"`
    Kind  string `json:"kind,omitempty"`
    Doc   string `json:"doc,omitempty"`
    Page  int    `json:"page,omitempty"`
    Entry int    `json:"entry,omitempty"`
}

type npagesResponse struct {
    Pages int `json:"pages"`
}

// handleNPages is the single-document page-count probe. The client UI
// calls it before a document participates in any merge; the merge
// itself recounts server-side regardless of what the client reports.
func (s *Server) handleNPages(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    if _, ok := s.authedUser(r); !ok {
        writeJSONError(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
        return
    }
    r.Body = http.MaxBytesReader(w, r.Body, s.limits.MaxFileBytes+s.limits.BodySlackBytes)

    area, err := s.areas.Acquire()
    if err != nil {
        log.Error().Err(err).Msg("work area acquire failed")
        writeJSONError(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Kind: string(merge.KindWorkAreaFailure)})
        return
    }
    defer area.Release()

    mr, err := r.MultipartReader()
    if err != nil {
        writeJSONError(w, http.StatusBadRequest, errorResponse{Error: "expected multipart/form-data"})
        return
    }

    var path string
    set := merge.NewSourceSet(area, s.sniffer, 1, s.limits.MaxFileBytes)
    for {
        part, perr := mr.NextPart()
        if errors.Is(perr, io.EOF) {
            break
        }
        if perr != nil {
            writeJSONError(w, http.StatusBadRequest, errorResponse{Error: "malformed multipart body"})
            return
        }
        switch part.FormName() {
        case "file":
            doc, aerr := set.Add("probe", part.FileName(), part)
            if aerr != nil {
                s.writeMergeError(w, aerr)
                return
            }
            path = doc.Path
        case "ref":
            ref, rerr := readSmallField(part)
            if rerr != nil {
                writeJSONError(w, http.StatusBadRequest, errorResponse{Error: "invalid ref field"})
                return
            }
            local, rerr := s.resolver.Resolve(r.Context(), ref, area.Path())
            if rerr != nil {
                writeJSONError(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("cannot fetch reference: %v", rerr)})
                return
            }
            if ok, serr := s.sniffer.IsPDF(local); serr != nil || !ok {
                writeJSONError(w, http.StatusBadRequest, errorResponse{Error: "reference does not look like a PDF", Kind: string(merge.KindUnreadableDocument)})
                return
            }
            path = local
        default:
            // tolerate extras on the probe endpoint
        }
    }
    if path == "" {
        writeJSONError(w, http.StatusBadRequest, errorResponse{Error: "missing file or ref"})
        return
    }

    pages, err := s.counter.CountPages(r.Context(), path)
    if err != nil {
        kind := merge.KindUnreadableDocument
        if extproc.IsTimeout(err) {
            kind = merge.KindCountTimeout
        }
        writeJSONError(w, http.StatusBadRequest, errorResponse{Error: "cannot count pages", Kind: string(kind)})
        return
    }
    log.Info().Int("pages", pages).Msg("computed page count")
    w.Header().Set("Content-Type", "application/json")
    _ = json.NewEncoder(w).Encode(npagesResponse{Pages: pages})
}

// handleMerge runs one merge request end to end and streams back the
// final PDF. Every failure path tears down the work area via defer.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    if _, ok := s.authedUser(r); !ok {
        writeJSONError(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
        return
    }
    release, ok := s.limiter.Allow("merge")
    if !ok {
        writeJSONError(w, http.StatusTooManyRequests, errorResponse{Error: "too many concurrent merges"})
        return
    }
    defer release()

    start := time.Now()
    r.Body = http.MaxBytesReader(w, r.Body, s.limits.MaxBodyBytes())

    mr, err := r.MultipartReader()
    if err != nil {
        writeJSONError(w, http.StatusBadRequest, errorResponse{Error: "expected multipart/form-data"})
        return
    }

    area, err := s.areas.Acquire()
    if err != nil {
        log.Error().Err(err).Msg("work area acquire failed")
        metrics.ObserveMerge(string(merge.KindWorkAreaFailure), time.Since(start))
        writeJSONError(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Kind: string(merge.KindWorkAreaFailure)})
        return
    }
    defer area.Release()

    set := merge.NewSourceSet(area, s.sniffer, s.limits.MaxDocuments, s.limits.MaxFileBytes)
    quality := 80
    linearize := false
    var layoutData []byte
    legacySeq := 0

    for {
        part, perr := mr.NextPart()
        if errors.Is(perr, io.EOF) {
            break
        }
        if perr != nil {
            writeJSONError(w, http.StatusBadRequest, errorResponse{Error: "malformed multipart body"})
            return
        }
        name := part.FormName()
        switch {
        case name == "quality":
            v, ferr := readSmallField(part)
            if ferr == nil {
                quality, ferr = strconv.Atoi(strings.TrimSpace(v))
            }
            if ferr != nil {
                writeJSONError(w, http.StatusBadRequest, errorResponse{Error: "invalid quality"})
                return
            }
        case name == "linearize":
            v, ferr := readSmallField(part)
            if ferr != nil {
                writeJSONError(w, http.StatusBadRequest, errorResponse{Error: "invalid linearize"})
                return
            }
            linearize = parseBoolLoose(v)
        case name == "layout":
            v, ferr := readSmallField(part)
            if ferr != nil {
                writeJSONError(w, http.StatusBadRequest, errorResponse{Error: "layout too large"})
                return
            }
            layoutData = []byte(v)
        case strings.HasPrefix(name, "file_"):
            id := strings.TrimPrefix(name, "file_")
            if _, aerr := set.Add(id, part.FileName(), part); aerr != nil {
                s.writeMergeError(w, aerr)
                metrics.ObserveMerge(string(merge.KindOf(aerr)), time.Since(start))
                return
            }
        case name == "files":
            id := fmt.Sprintf("doc_%d", legacySeq)
            legacySeq++
            if _, aerr := set.Add(id, part.FileName(), part); aerr != nil {
                s.writeMergeError(w, aerr)
                metrics.ObserveMerge(string(merge.KindOf(aerr)), time.Since(start))
                return
            }
        default:
            writeJSONError(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unexpected form field: %s", name)})
            return
        }
    }

    if set.Len() == 0 {
        writeJSONError(w, http.StatusBadRequest, errorResponse{Error: "no PDF files uploaded"})
        return
    }
    if quality < 1 || quality > 100 {
        writeJSONError(w, http.StatusBadRequest, errorResponse{Error: "quality must be between 1 and 100"})
        return
    }

    var layout merge.Layout // nil means legacy whole-document merge
    if layoutData != nil {
        layout, err = merge.ParseLayout(layoutData)
        if err != nil {
            s.writeMergeError(w, err)
            metrics.ObserveMerge(string(merge.KindInvalidLayout), time.Since(start))
            return
        }
    }

    outPath, err := s.pipeline.Run(r.Context(), area, merge.Request{
        Sources:   set,
        Layout:    layout,
        Quality:   quality,
        Linearize: linearize,
    })
    if err != nil {
        if errors.Is(err, context.Canceled) {
            log.Warn().Msg("merge aborted: client disconnected")
            metrics.ObserveMerge("cancelled", time.Since(start))
            return
        }
        s.writeMergeError(w, err)
        metrics.ObserveMerge(string(merge.KindOf(err)), time.Since(start))
        return
    }

    f, err := os.Open(outPath)
    if err != nil {
        log.Error().Err(err).Msg("cannot open merged output")
        writeJSONError(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
        metrics.ObserveMerge(string(merge.KindWorkAreaFailure), time.Since(start))
        return
    }
    defer f.Close()
    info, err := f.Stat()
    if err == nil {
        w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
    }
    w.Header().Set("Content-Type", "application/pdf")
    w.Header().Set("Content-Disposition", `attachment; filename="merged.pdf"`)
    if _, err := io.Copy(w, f); err != nil {
        log.Warn().Err(err).Msg("response write interrupted")
        return
    }
    metrics.ObserveMerge("success", time.Since(start))
}

// writeMergeError maps a pipeline error onto an HTTP response. Input
// problems get the full detail; internal faults stay generic.
func (s *Server) writeMergeError(w http.ResponseWriter, err error) {
    kind := merge.KindOf(err)
    var me *merge.Error
    if kind != "" && kind.UserFacing() && errors.As(err, &me) {
        writeJSONError(w, http.StatusBadRequest, errorResponse{
            Error: me.Error(),
            Kind:  string(kind),
            Doc:   me.Doc,
            Page:  me.Page,
            Entry: me.Entry,
        })
        return
    }
    log.Error().Err(err).Str("kind", string(kind)).Msg("merge failed")
    writeJSONError(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Kind: string(kind)})
}

func writeJSONError(w http.ResponseWriter, status int, body errorResponse) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(body)
}

func readSmallField(r io.Reader) (string, error) {
    b, err := io.ReadAll(io.LimitReader(r, maxSmallFieldBytes+1))
    if err != nil {
        return "", err
    }
    if len(b) > maxSmallFieldBytes {
        return "", errors.New("field too large")
    }
    return string(b), nil
}

func parseBoolLoose(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}
