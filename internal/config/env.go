package config

import (
    "os"
    "path/filepath"
    "strconv"
    "strings"
    "time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level      string
    Pretty     bool
    File       string
    MaxSizeMB  int
    MaxBackups int
    MaxAgeDays int
    Compress   bool
}

// AxiomConfig holds Axiom log forwarding configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// ServerConfig defines HTTP server behavior.
type ServerConfig struct {
    Port            string
    ShutdownTimeout time.Duration
}

// AuthConfig defines the single-user login and session signing.
type AuthConfig struct {
    Username      string
    Password      string
    PasswordHash  string // bcrypt hash; takes precedence over Password when set
    SessionSecret string
    SessionTTL    time.Duration
}

// LimitsConfig bounds uploads and concurrent work.
type LimitsConfig struct {
    MaxDocuments        int
    MaxFileBytes        int64
    BodySlackBytes      int64
    MaxConcurrentMerges int
}

// MaxBodyBytes is the request body cap derived from the per-file limits.
func (l LimitsConfig) MaxBodyBytes() int64 {
    return int64(l.MaxDocuments)*l.MaxFileBytes + l.BodySlackBytes
}

// ToolsConfig defines external tool binaries and per-stage timeouts.
type ToolsConfig struct {
    QPDFBin           string
    GhostscriptBin    string
    CountTimeout      time.Duration
    CountConcurrency  int
    ExtractTimeout    time.Duration
    AssembleTimeout   time.Duration
    RecompressTimeout time.Duration
    LinearizeTimeout  time.Duration
}

// WorkAreaConfig defines the temp root and stale-directory sweeping.
type WorkAreaConfig struct {
    Root          string
    StaleAfter    time.Duration
    SweepInterval time.Duration
}

// RedisConfig configures the optional login-lockout backend.
type RedisConfig struct {
    URL          string
    LockoutAfter int
    LockoutBase  time.Duration
    LockoutMax   time.Duration
}

// Config is the top-level configuration.
type Config struct {
    Logging  LoggingConfig
    Axiom    AxiomConfig
    Server   ServerConfig
    Auth     AuthConfig
    Limits   LimitsConfig
    Tools    ToolsConfig
    WorkArea WorkAreaConfig
    Redis    RedisConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", "logs/pdfmerge.log"),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_pdfmerge",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    cfg.Server = ServerConfig{
        Port:            getEnv("PORT", "8080"),
        ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
    }

    cfg.Auth = AuthConfig{
        Username:      getEnv("APP_USERNAME", ""),
        Password:      getEnv("APP_PASSWORD", ""),
        PasswordHash:  getEnv("APP_PASSWORD_HASH", ""),
        SessionSecret: getEnv("SESSION_SECRET", ""),
        SessionTTL:    parseDuration(getEnv("SESSION_TTL", "12h"), 12*time.Hour),
    }

    cfg.Limits = LimitsConfig{
        MaxDocuments:        parseInt(getEnv("MAX_PDFS", "10"), 10),
        MaxFileBytes:        parseInt64(getEnv("MAX_FILE_BYTES", ""), 30*1024*1024),
        BodySlackBytes:      parseInt64(getEnv("BODY_SLACK_BYTES", ""), 5*1024*1024),
        MaxConcurrentMerges: parseInt(getEnv("MAX_CONCURRENT_MERGES", "4"), 4),
    }

    cfg.Tools = ToolsConfig{
        QPDFBin:           getEnv("QPDF_BIN", "qpdf"),
        GhostscriptBin:    getEnv("GS_BIN", "gs"),
        CountTimeout:      parseDuration(getEnv("COUNT_TIMEOUT", "20s"), 20*time.Second),
        CountConcurrency:  parseInt(getEnv("COUNT_CONCURRENCY", "10"), 10),
        ExtractTimeout:    parseDuration(getEnv("EXTRACT_TIMEOUT", "60s"), 60*time.Second),
        AssembleTimeout:   parseDuration(getEnv("ASSEMBLE_TIMEOUT", "60s"), 60*time.Second),
        RecompressTimeout: parseDuration(getEnv("RECOMPRESS_TIMEOUT", "180s"), 180*time.Second),
        LinearizeTimeout:  parseDuration(getEnv("LINEARIZE_TIMEOUT", "60s"), 60*time.Second),
    }

    cfg.WorkArea = WorkAreaConfig{
        Root:          getEnv("WORKAREA_ROOT", filepath.Join(os.TempDir(), "pdfmerge")),
        StaleAfter:    parseDuration(getEnv("WORKAREA_STALE_AFTER", "1h"), time.Hour),
        SweepInterval: parseDuration(getEnv("WORKAREA_SWEEP_INTERVAL", "15m"), 15*time.Minute),
    }

    cfg.Redis = RedisConfig{
        URL:          getEnv("REDIS_URL", ""),
        LockoutAfter: parseInt(getEnv("LOGIN_LOCKOUT_AFTER", "5"), 5),
        LockoutBase:  parseDuration(getEnv("LOGIN_LOCKOUT_BASE", "30s"), 30*time.Second),
        LockoutMax:   parseDuration(getEnv("LOGIN_LOCKOUT_MAX", "15m"), 15*time.Minute),
    }

    return cfg
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseInt64(s string, def int64) int64 {
    if s == "" { return def }
    if n, err := strconv.ParseInt(s, 10, 64); err == nil { return n }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}
