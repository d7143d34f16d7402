package limiter

import (
    "context"
    "fmt"
    "strings"
    "sync"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// Limiter combines a local in-process inflight cap for merge work with
// an optional Redis-backed login lockout. Without a Redis URL the
// inflight cap still works; lockout is simply disabled.
type Limiter struct {
    rdb          *redis.Client
    maxInflight  int
    lockoutAfter int
    baseBackoff  time.Duration
    maxBackoff   time.Duration
    mu           sync.Mutex
    sem          map[string]chan struct{}
}

type Options struct {
    RedisURL     string
    MaxInflight  int
    LockoutAfter int
    BaseBackoff  time.Duration
    MaxBackoff   time.Duration
}

func New(opts Options) (*Limiter, error) {
    if opts.MaxInflight <= 0 { opts.MaxInflight = 4 }
    if opts.LockoutAfter <= 0 { opts.LockoutAfter = 5 }
    if opts.BaseBackoff <= 0 { opts.BaseBackoff = 30 * time.Second }
    if opts.MaxBackoff <= 0 { opts.MaxBackoff = 15 * time.Minute }

    l := &Limiter{
        maxInflight:  opts.MaxInflight,
        lockoutAfter: opts.LockoutAfter,
        baseBackoff:  opts.BaseBackoff,
        maxBackoff:   opts.MaxBackoff,
        sem:          map[string]chan struct{}{},
    }
    if opts.RedisURL != "" {
        ro, err := redis.ParseURL(opts.RedisURL)
        if err != nil { return nil, err }
        c := redis.NewClient(ro)
        if err := c.Ping(context.Background()).Err(); err != nil { return nil, err }
        l.rdb = c
    }
    return l, nil
}

// Allow tries to reserve a local in-process slot for key.
// Returns a release function and true if allowed; otherwise nil,false.
func (l *Limiter) Allow(key string) (func(), bool) {
    l.mu.Lock()
    ch, ok := l.sem[key]
    if !ok {
        ch = make(chan struct{}, l.maxInflight)
        l.sem[key] = ch
    }
    l.mu.Unlock()
    select {
    case ch <- struct{}{}:
        return func() { <-ch }, true
    default:
        return func() {}, false
    }
}

func (l *Limiter) key(ip string) string {
    return fmt.Sprintf("login_fail:%s", strings.ToLower(ip))
}

// LockedOut reports whether ip is in a login cooldown window.
func (l *Limiter) LockedOut(ctx context.Context, ip string) bool {
    if l.rdb == nil { return false }
    ts, err := l.rdb.Get(ctx, l.key(ip)+":until").Int64()
    if err != nil { return false }
    return time.Now().Unix() < ts
}

// RecordFailure increments the failure count for ip and, past the
// threshold, opens a cooldown that doubles per extra failure up to the
// configured maximum.
func (l *Limiter) RecordFailure(ctx context.Context, ip string) {
    if l.rdb == nil { return }
    k := l.key(ip)
    n, err := l.rdb.Incr(ctx, k).Result()
    if err != nil { return }
    _ = l.rdb.Expire(ctx, k, l.maxBackoff*2).Err()
    if n < int64(l.lockoutAfter) { return }
    over := n - int64(l.lockoutAfter)
    if over > 16 { over = 16 }
    d := l.baseBackoff * (1 << over)
    if d > l.maxBackoff { d = l.maxBackoff }
    until := time.Now().Add(d).Unix()
    _ = l.rdb.Set(ctx, k+":until", until, d).Err()
}

// ClearFailures resets the failure state for ip after a successful login.
func (l *Limiter) ClearFailures(ctx context.Context, ip string) {
    if l.rdb == nil { return }
    k := l.key(ip)
    _ = l.rdb.Del(ctx, k, k+":until").Err()
}

// Ping checks the Redis backend, if configured.
func (l *Limiter) Ping(ctx context.Context) error {
    if l.rdb == nil { return nil }
    return l.rdb.Ping(ctx).Err()
}

// HasBackend reports whether a Redis lockout backend is configured.
func (l *Limiter) HasBackend() bool { return l.rdb != nil }

func (l *Limiter) Close() error {
    if l.rdb == nil { return nil }
    return l.rdb.Close()
}
