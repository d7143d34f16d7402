package main

import (
    "context"
    "net/http"
    "os"
    "os/signal"
    "syscall"

    "github.com/joho/godotenv"
    "github.com/rs/zerolog/log"

    cfgpkg "github.com/local/pdfmerge/internal/config"
    "github.com/local/pdfmerge/internal/fetch"
    "github.com/local/pdfmerge/internal/filetype"
    "github.com/local/pdfmerge/internal/ghostscript"
    "github.com/local/pdfmerge/internal/limiter"
    logpkg "github.com/local/pdfmerge/internal/logger"
    "github.com/local/pdfmerge/internal/merge"
    "github.com/local/pdfmerge/internal/metrics"
    "github.com/local/pdfmerge/internal/pdfinfo"
    "github.com/local/pdfmerge/internal/qpdf"
    "github.com/local/pdfmerge/internal/session"
    "github.com/local/pdfmerge/internal/statuscheck"
    "github.com/local/pdfmerge/internal/web"
    "github.com/local/pdfmerge/internal/workarea"
)

func main() {
    _ = godotenv.Load()
    cfg := cfgpkg.FromEnv()

    // Init logging
    _ = logpkg.Init(logpkg.Options{
        Level:        cfg.Logging.Level,
        Pretty:       cfg.Logging.Pretty,
        File:         cfg.Logging.File,
        MaxSizeMB:    cfg.Logging.MaxSizeMB,
        MaxBackups:   cfg.Logging.MaxBackups,
        MaxAgeDays:   cfg.Logging.MaxAgeDays,
        Compress:     cfg.Logging.Compress,
        SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
        AxiomAPIKey:  cfg.Axiom.APIKey,
        AxiomOrgID:   cfg.Axiom.OrgID,
        AxiomDataset: cfg.Axiom.Dataset,
        AxiomFlush:   cfg.Axiom.FlushInterval,
    })
    defer logpkg.Close()

    metrics.Init()

    if cfg.Auth.Username == "" || (cfg.Auth.Password == "" && cfg.Auth.PasswordHash == "") {
        log.Fatal().Msg("APP_USERNAME and APP_PASSWORD (or APP_PASSWORD_HASH) must be set")
    }
    if cfg.Auth.SessionSecret == "" {
        log.Fatal().Msg("SESSION_SECRET must be set")
    }

    signer, err := session.NewSigner([]byte(cfg.Auth.SessionSecret), cfg.Auth.SessionTTL)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to init session signer")
    }

    // Work area root
    areas, err := workarea.NewManager(cfg.WorkArea.Root)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to init work area root")
    }
    sweepStop := make(chan struct{})
    go areas.SweepLoop(cfg.WorkArea.SweepInterval, cfg.WorkArea.StaleAfter, sweepStop)
    defer close(sweepStop)

    // External tools
    qp := qpdf.New(qpdf.Options{
        Bin:              cfg.Tools.QPDFBin,
        CountTimeout:     cfg.Tools.CountTimeout,
        ExtractTimeout:   cfg.Tools.ExtractTimeout,
        AssembleTimeout:  cfg.Tools.AssembleTimeout,
        LinearizeTimeout: cfg.Tools.LinearizeTimeout,
    })
    gs := ghostscript.New(ghostscript.Options{
        Bin:     cfg.Tools.GhostscriptBin,
        Timeout: cfg.Tools.RecompressTimeout,
    })

    var counter merge.PageCounter = qp
    if v, err := qp.Check(); err != nil {
        log.Warn().Err(err).Msg("qpdf not available; falling back to in-process page counting")
        counter = pdfinfo.New()
    } else {
        log.Info().Str("version", v).Msg("qpdf found")
    }
    if v, err := gs.Check(); err != nil {
        log.Warn().Err(err).Msg("ghostscript not available; merges will fail at recompression")
    } else {
        log.Info().Str("version", v).Msg("ghostscript found")
    }

    // Limiter (login lockout is Redis-backed when REDIS_URL is set)
    lim, err := limiter.New(limiter.Options{
        RedisURL:     cfg.Redis.URL,
        MaxInflight:  cfg.Limits.MaxConcurrentMerges,
        LockoutAfter: cfg.Redis.LockoutAfter,
        BaseBackoff:  cfg.Redis.LockoutBase,
        MaxBackoff:   cfg.Redis.LockoutMax,
    })
    if err != nil {
        log.Fatal().Err(err).Msg("failed to init limiter")
    }
    defer lim.Close()

    pipeline := &merge.Pipeline{
        Counter:          counter,
        Assembler:        qp,
        Recompressor:     gs,
        Linearizer:       qp,
        CountConcurrency: cfg.Tools.CountConcurrency,
    }

    checker := statuscheck.New(statuscheck.Options{
        QPDF:        qp,
        Ghostscript: gs,
        WorkRoot:    areas.Root(),
        Redis:       lim,
    })

    srvWeb := web.New(web.Options{
        Signer:      signer,
        Credentials: session.Credentials{
            Username:     cfg.Auth.Username,
            Password:     cfg.Auth.Password,
            PasswordHash: cfg.Auth.PasswordHash,
        },
        Limiter:  lim,
        Areas:    areas,
        Pipeline: pipeline,
        Counter:  counter,
        Sniffer:  filetype.New(),
        Resolver: fetch.NewResolver(nil),
        Checker:  checker,
        Limits:   cfg.Limits,
    })

    mux := http.NewServeMux()
    srvWeb.RegisterRoutes(mux)
    mux.Handle("/metrics", metrics.Handler())

    srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux}

    go func() {
        log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatal().Err(err).Msg("http server error")
        }
    }()

    // Graceful shutdown
    stop := make(chan os.Signal, 1)
    signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
    <-stop
    ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
    defer cancel()
    _ = srv.Shutdown(ctx)
    log.Info().Msg("shutdown complete")
}
