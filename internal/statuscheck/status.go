package statuscheck

import (
    "context"
    "os"
    "path/filepath"
)

// VersionChecker models an external tool that can report its version.
type VersionChecker interface {
    Check() (string, error)
}

// RedisPinger models the minimal Redis capability we need for status checks.
type RedisPinger interface {
    Ping(ctx context.Context) error
    HasBackend() bool
}

// Checker aggregates readiness checks for everything a merge depends on.
type Checker struct {
    qpdf        VersionChecker
    ghostscript VersionChecker
    workRoot    string
    redis       RedisPinger
}

// Options configures the Checker.
type Options struct {
    QPDF        VersionChecker
    Ghostscript VersionChecker
    WorkRoot    string
    Redis       RedisPinger
}

// Status represents the readiness of a subsystem.
type Status struct {
    OK      bool   `json:"ok"`
    Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
    QPDF        Status `json:"qpdf"`
    Ghostscript Status `json:"ghostscript"`
    WorkArea    Status `json:"work_area"`
    Redis       Status `json:"redis"`
}

// OK reports whether every required subsystem is ready.
func (s Summary) OK() bool {
    return s.QPDF.OK && s.Ghostscript.OK && s.WorkArea.OK && s.Redis.OK
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
    return &Checker{
        qpdf:        opts.QPDF,
        ghostscript: opts.Ghostscript,
        workRoot:    opts.WorkRoot,
        redis:       opts.Redis,
    }
}

// Run performs all checks and returns the summary.
func (c *Checker) Run(ctx context.Context) Summary {
    var s Summary
    s.QPDF = checkTool(c.qpdf)
    s.Ghostscript = checkTool(c.ghostscript)
    s.WorkArea = c.checkWorkArea()
    s.Redis = c.checkRedis(ctx)
    return s
}

func checkTool(t VersionChecker) Status {
    if t == nil {
        return Status{OK: false, Message: "not configured"}
    }
    v, err := t.Check()
    if err != nil {
        return Status{OK: false, Message: err.Error()}
    }
    return Status{OK: true, Message: v}
}

func (c *Checker) checkWorkArea() Status {
    probe := filepath.Join(c.workRoot, ".probe")
    if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
        return Status{OK: false, Message: err.Error()}
    }
    os.Remove(probe)
    return Status{OK: true, Message: c.workRoot}
}

func (c *Checker) checkRedis(ctx context.Context) Status {
    if c.redis == nil || !c.redis.HasBackend() {
        return Status{OK: true, Message: "not configured (login lockout disabled)"}
    }
    if err := c.redis.Ping(ctx); err != nil {
        return Status{OK: false, Message: err.Error()}
    }
    return Status{OK: true, Message: "connected"}
}
