package web

import (
    "encoding/json"
    "html/template"
    "net"
    "net/http"
    "path/filepath"
    "strings"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/local/pdfmerge/internal/config"
    "github.com/local/pdfmerge/internal/fetch"
    "github.com/local/pdfmerge/internal/filetype"
    "github.com/local/pdfmerge/internal/limiter"
    "github.com/local/pdfmerge/internal/merge"
    "github.com/local/pdfmerge/internal/session"
    "github.com/local/pdfmerge/internal/statuscheck"
    "github.com/local/pdfmerge/internal/workarea"
)

// Server is the HTTP surface: dashboard, auth, probe and merge APIs.
// Authentication happens here; the merge pipeline assumes every call
// it receives is already authorized.
type Server struct {
    tpl      *template.Template
    signer   *session.Signer
    creds    session.Credentials
    limiter  *limiter.Limiter
    areas    *workarea.Manager
    pipeline *merge.Pipeline
    counter  merge.PageCounter
    sniffer  *filetype.Detector
    resolver *fetch.Resolver
    checker  *statuscheck.Checker
    limits   config.LimitsConfig
}

type Options struct {
    TemplateDir string
    Signer      *session.Signer
    Credentials session.Credentials
    Limiter     *limiter.Limiter
    Areas       *workarea.Manager
    Pipeline    *merge.Pipeline
    Counter     merge.PageCounter
    Sniffer     *filetype.Detector
    Resolver    *fetch.Resolver
    Checker     *statuscheck.Checker
    Limits      config.LimitsConfig
}

func New(opts Options) *Server {
    dir := opts.TemplateDir
    if dir == "" {
        dir = filepath.Join("web", "templates")
    }
    tpl := template.Must(template.ParseGlob(filepath.Join(dir, "*.html")))
    return &Server{
        tpl:      tpl,
        signer:   opts.Signer,
        creds:    opts.Credentials,
        limiter:  opts.Limiter,
        areas:    opts.Areas,
        pipeline: opts.Pipeline,
        counter:  opts.Counter,
        sniffer:  opts.Sniffer,
        resolver: opts.Resolver,
        checker:  opts.Checker,
        limits:   opts.Limits,
    }
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("/", s.handleIndex)
    mux.HandleFunc("/login", s.handleLogin)
    mux.HandleFunc("/logout", s.handleLogout)
    mux.HandleFunc("/healthz", s.handleHealthz)
    mux.HandleFunc("/healthz/details", s.handleHealthzDetails)
    mux.HandleFunc("/api/npages", s.handleNPages)
    mux.HandleFunc("/api/merge", s.handleMerge)
    mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(filepath.Join("web", "static")))))
}

// authedUser returns the logged-in username from the session cookie.
func (s *Server) authedUser(r *http.Request) (string, bool) {
    c, err := r.Cookie(session.CookieName)
    if err != nil {
        return "", false
    }
    return s.signer.Verify(c.Value, time.Now())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/" {
        http.NotFound(w, r)
        return
    }
    _, authed := s.authedUser(r)
    data := map[string]any{
        "Authed":       authed,
        "LoginError":   r.URL.Query().Get("login_error") != "",
        "MaxDocuments": s.limits.MaxDocuments,
        "MaxFileMB":    s.limits.MaxFileBytes / 1024 / 1024,
    }
    if err := s.tpl.ExecuteTemplate(w, "app.html", data); err != nil {
        log.Error().Err(err).Msg("template render failed")
    }
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    ip := clientIP(r)
    if s.limiter.LockedOut(r.Context(), ip) {
        http.Error(w, "too many failed logins, try again later", http.StatusTooManyRequests)
        return
    }
    if err := r.ParseForm(); err != nil {
        http.Redirect(w, r, "/?login_error=1", http.StatusSeeOther)
        return
    }
    username := r.Form.Get("username")
    if !s.creds.Match(username, r.Form.Get("password")) {
        s.limiter.RecordFailure(r.Context(), ip)
        log.Warn().Str("ip", ip).Msg("login failed")
        http.Redirect(w, r, "/?login_error=1", http.StatusSeeOther)
        return
    }
    s.limiter.ClearFailures(r.Context(), ip)

    token := s.signer.Issue(username, time.Now())
    http.SetCookie(w, &http.Cookie{
        Name:     session.CookieName,
        Value:    token,
        Path:     "/",
        HttpOnly: true,
        SameSite: http.SameSiteLaxMode,
        Secure:   requestIsHTTPS(r),
    })
    log.Info().Str("user", username).Msg("login ok")
    http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    http.SetCookie(w, &http.Cookie{
        Name:     session.CookieName,
        Value:    "",
        Path:     "/",
        HttpOnly: true,
        MaxAge:   -1,
        Secure:   requestIsHTTPS(r),
    })
    http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
    w.WriteHeader(http.StatusOK)
    _, _ = w.Write([]byte("ok"))
}

func (s *Server) handleHealthzDetails(w http.ResponseWriter, r *http.Request) {
    summary := s.checker.Run(r.Context())
    w.Header().Set("Content-Type", "application/json")
    if !summary.OK() {
        w.WriteHeader(http.StatusServiceUnavailable)
    }
    _ = json.NewEncoder(w).Encode(summary)
}

// clientIP prefers the rightmost X-Forwarded-For hop, falling back to
// the connection's remote address.
func clientIP(r *http.Request) string {
    if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
        parts := strings.Split(xff, ",")
        for i := len(parts) - 1; i >= 0; i-- {
            if ip := strings.TrimSpace(parts[i]); ip != "" {
                return ip
            }
        }
    }
    host, _, err := net.SplitHostPort(r.RemoteAddr)
    if err != nil {
        return r.RemoteAddr
    }
    return host
}

func requestIsHTTPS(r *http.Request) bool {
    if r.TLS != nil {
        return true
    }
    proto := r.Header.Get("X-Forwarded-Proto")
    first := strings.TrimSpace(strings.Split(proto, ",")[0])
    return strings.EqualFold(first, "https")
}
