package extproc

import (
    "bytes"
    "context"
    "errors"
    "fmt"
    "os/exec"
    "strings"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/local/pdfmerge/internal/metrics"
)

// RunError describes a failed external tool invocation.
type RunError struct {
    Bin      string
    Args     []string
    Stderr   string
    TimedOut bool
    Err      error
}

func (e *RunError) Error() string {
    if e.TimedOut {
        return fmt.Sprintf("%s timed out", e.Bin)
    }
    msg := e.Stderr
    if msg == "" {
        msg = e.Err.Error()
    }
    return fmt.Sprintf("%s failed: %s", e.Bin, msg)
}

func (e *RunError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a tool invocation that hit its deadline.
func IsTimeout(err error) bool {
    var re *RunError
    if errors.As(err, &re) {
        return re.TimedOut
    }
    return errors.Is(err, context.DeadlineExceeded)
}

// Run executes bin with args, bounded by timeout (if > 0) and by ctx.
// The process is killed when either fires. Returns captured stdout.
// A cancelled parent context surfaces as ctx.Err() so callers can tell
// client aborts apart from tool failures.
func Run(ctx context.Context, timeout time.Duration, bin string, args ...string) ([]byte, error) {
    if timeout > 0 {
        var cancel context.CancelFunc
        ctx, cancel = context.WithTimeout(ctx, timeout)
        defer cancel()
    }

    start := time.Now()
    cmd := exec.CommandContext(ctx, bin, args...)
    var stdout, stderr bytes.Buffer
    cmd.Stdout = &stdout
    cmd.Stderr = &stderr

    err := cmd.Run()
    dur := time.Since(start)
    if err == nil {
        log.Debug().Str("bin", bin).Dur("duration", dur).Msg("tool invocation ok")
        return stdout.Bytes(), nil
    }

    if errors.Is(ctx.Err(), context.Canceled) {
        log.Warn().Str("bin", bin).Dur("duration", dur).Msg("tool invocation cancelled")
        return nil, ctx.Err()
    }

    re := &RunError{
        Bin:      bin,
        Args:     args,
        Stderr:   strings.TrimSpace(stderr.String()),
        TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
        Err:      err,
    }
    log.Error().Str("bin", bin).Str("stderr", re.Stderr).Bool("timed_out", re.TimedOut).
        Dur("duration", dur).Msg("tool invocation failed")
    return nil, re
}

// Observed wraps Run with a tool/op metrics observation.
func Observed(ctx context.Context, timeout time.Duration, tool, op, bin string, args ...string) ([]byte, error) {
    start := time.Now()
    out, err := Run(ctx, timeout, bin, args...)
    result := "ok"
    if err != nil {
        result = "error"
        if IsTimeout(err) {
            result = "timeout"
        }
    }
    metrics.ObserveTool(tool, op, result, time.Since(start))
    return out, err
}

// CheckBinary verifies bin is runnable by invoking it with versionArg
// and returns the first line of its output.
func CheckBinary(bin, versionArg string) (string, error) {
    out, err := exec.Command(bin, versionArg).CombinedOutput()
    if err != nil {
        return "", fmt.Errorf("%s not available: %w", bin, err)
    }
    line := strings.TrimSpace(string(out))
    if i := strings.IndexByte(line, '\n'); i >= 0 {
        line = line[:i]
    }
    return line, nil
}
