package workarea

import (
    "fmt"
    "os"
    "path/filepath"
    "time"

    "github.com/google/uuid"
    "github.com/rs/zerolog/log"

    "github.com/local/pdfmerge/internal/metrics"
)

const dirPrefix = "req_"

// Manager allocates isolated per-request temporary directories under a
// single root. The root is created once at startup and is read-only
// configuration thereafter; every request gets its own subdirectory.
type Manager struct {
    root string
}

// NewManager ensures the root directory exists and returns a Manager.
func NewManager(root string) (*Manager, error) {
    if err := os.MkdirAll(root, 0o755); err != nil {
        return nil, fmt.Errorf("create work area root: %w", err)
    }
    return &Manager{root: root}, nil
}

// Root returns the configured root directory.
func (m *Manager) Root() string { return m.root }

// Area is one request's exclusive temporary directory. It owns every
// uploaded copy, extraction intermediate and output file for the request
// and must be released on every exit path.
type Area struct {
    id   string
    path string
}

// Acquire creates a fresh, uniquely named directory for one request.
func (m *Manager) Acquire() (*Area, error) {
    id := uuid.NewString()
    path := filepath.Join(m.root, dirPrefix+id)
    if err := os.Mkdir(path, 0o700); err != nil {
        return nil, fmt.Errorf("create work area: %w", err)
    }
    metrics.WorkAreaAcquired()
    log.Debug().Str("work_area", id).Msg("work area acquired")
    return &Area{id: id, path: path}, nil
}

// ID returns the area's unique identifier.
func (a *Area) ID() string { return a.id }

// Path returns the absolute path of the area's directory.
func (a *Area) Path() string { return a.path }

// File returns the path for a named file inside the area. The name is
// always server-generated; client-supplied filenames never reach here.
func (a *Area) File(name string) string {
    return filepath.Join(a.path, name)
}

// NewFile returns a path for a fresh uniquely named file with the given
// prefix and extension.
func (a *Area) NewFile(prefix, ext string) string {
    return filepath.Join(a.path, fmt.Sprintf("%s_%s%s", prefix, uuid.NewString(), ext))
}

// Release recursively removes the area. Safe to call more than once.
func (a *Area) Release() {
    if a.path == "" {
        return
    }
    if err := os.RemoveAll(a.path); err != nil {
        log.Error().Err(err).Str("work_area", a.id).Msg("work area release failed")
        return
    }
    a.path = ""
    metrics.WorkAreaReleased()
    log.Debug().Str("work_area", a.id).Msg("work area released")
}

// CleanupStale removes request directories older than maxAge. This is a
// safety net for directories orphaned by a crash; normal operation
// releases every area via defer.
func (m *Manager) CleanupStale(maxAge time.Duration) {
    entries, err := os.ReadDir(m.root)
    if err != nil {
        return
    }
    now := time.Now()
    for _, e := range entries {
        if !e.IsDir() || len(e.Name()) <= len(dirPrefix) || e.Name()[:len(dirPrefix)] != dirPrefix {
            continue
        }
        info, err := e.Info()
        if err != nil {
            continue
        }
        if now.Sub(info.ModTime()) >= maxAge {
            p := filepath.Join(m.root, e.Name())
            if err := os.RemoveAll(p); err == nil {
                log.Warn().Str("dir", e.Name()).Msg("removed stale work area")
            }
        }
    }
}

// SweepLoop runs CleanupStale every interval until stop is closed.
func (m *Manager) SweepLoop(interval, maxAge time.Duration, stop <-chan struct{}) {
    ticker := time.NewTicker(interval)
    defer ticker.Stop()
    for {
        select {
        case <-stop:
            return
        case <-ticker.C:
            m.CleanupStale(maxAge)
        }
    }
}
