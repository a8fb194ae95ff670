package authorizer

import (
    "context"
    "database/sql"
    "fmt"
    "io"
    "net"
    "net/http"
    "sync"
    "time"

    authorizer8583 "github.com/alovak/mini-authorizer/authorizer/iso8583"
    "github.com/alovak/mini-authorizer/internal/events/kafka"
    "github.com/alovak/mini-authorizer/internal/middleware"
    "github.com/alovak/mini-authorizer/internal/migrations"
    "github.com/go-chi/chi/v5"
    chimiddleware "github.com/go-chi/chi/v5/middleware"
    _ "github.com/lib/pq"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
    "github.com/prometheus/client_golang/prometheus/promhttp"
    "golang.org/x/crypto/bcrypt"
    "golang.org/x/exp/slog"
)

// App is the main application, it contains all the components of the
// authorizer service and is responsible for starting and stopping them.
type App struct {
    srv               *http.Server
    wg                *sync.WaitGroup
    Addr              string
    ISO8583ServerAddr string
    logger            *slog.Logger
    iso8583Server     io.Closer
    config            *Config
    closers           []io.Closer
}

func NewApp(logger *slog.Logger, config *Config) *App {
    logger = logger.With(slog.String("app", "authorizer"))

    if config == nil {
        config = DefaultConfig()
    }

    return &App{
        wg:     &sync.WaitGroup{},
        logger: logger,
        config: config,
    }
}

func (a *App) Start() error {
    a.logger.Info("starting app...")

    repository, err := a.openRepository()
    if err != nil {
        return err
    }

    creds, err := middleware.NewCredentials(a.config.APIUser, a.config.APIPassword, bcrypt.DefaultCost)
    if err != nil {
        return fmt.Errorf("setting up api credentials: %w", err)
    }

    registry := prometheus.NewRegistry()
    registry.MustRegister(
        collectors.NewGoCollector(),
        collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
    )

    opts := []Option{
        WithLogger(a.logger),
        WithMetrics(NewMetrics(registry)),
    }
    if len(a.config.KafkaBrokers) > 0 {
        publisher := kafka.NewPublisher(a.config.KafkaBrokers, a.config.KafkaTopic)
        a.closers = append(a.closers, publisher)
        opts = append(opts, WithPublisher(publisher))
        a.logger.Info("publishing events", slog.String("topic", a.config.KafkaTopic))
    }

    service := NewService(repository, a.config, opts...)

    iso8583Server := authorizer8583.NewServer(a.logger, a.config.ISO8583Addr, service)
    if err := iso8583Server.Start(); err != nil {
        return fmt.Errorf("starting iso8583 server: %w", err)
    }
    a.ISO8583ServerAddr = iso8583Server.Addr
    a.iso8583Server = iso8583Server

    router := chi.NewRouter()
    router.Use(chimiddleware.RequestID)
    router.Use(middleware.NewStructuredLogger(a.logger))
    router.Use(chimiddleware.Recoverer)

    router.Get("/-/live", func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusOK)
    })
    router.Get("/-/ready", func(w http.ResponseWriter, r *http.Request) {
        ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
        defer cancel()
        if err := repository.Ping(ctx); err != nil {
            http.Error(w, "store not ready", http.StatusServiceUnavailable)
            return
        }
        w.WriteHeader(http.StatusOK)
    })
    router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

    api := NewAPI(service, a.logger)
    router.Group(func(r chi.Router) {
        r.Use(middleware.BasicAuth("authorizer", creds))
        api.AppendRoutes(r)
    })

    l, err := net.Listen("tcp", a.config.HTTPAddr)
    if err != nil {
        return fmt.Errorf("listening tcp port: %w", err)
    }

    a.Addr = l.Addr().String()

    a.srv = &http.Server{
        Handler:           router,
        ReadHeaderTimeout: 5 * time.Second,
    }

    a.wg.Add(1)
    go func() {
        a.logger.Info("http server started", slog.String("addr", a.Addr))

        if err := a.srv.Serve(l); err != nil {
            if err != http.ErrServerClosed {
                a.logger.Error("starting http server", "err", err)
            }

            a.logger.Info("http server stopped")
        }

        a.wg.Done()
    }()

    return nil
}

func (a *App) openRepository() (*Repository, error) {
    switch a.config.RepoBackend {
    case "pg":
        if a.config.DBDSN == "" {
            return nil, fmt.Errorf("DB_DSN is required for pg backend")
        }
        db, err := sql.Open("postgres", a.config.DBDSN)
        if err != nil {
            return nil, fmt.Errorf("open postgres: %w", err)
        }
        db.SetMaxOpenConns(a.config.DBMaxOpenConns)
        db.SetMaxIdleConns(a.config.DBMaxIdleConns)

        ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
        defer cancel()
        if err := db.PingContext(ctx); err != nil {
            db.Close()
            return nil, fmt.Errorf("ping postgres: %w", err)
        }
        if err := migrations.Run(ctx, db, a.logger); err != nil {
            db.Close()
            return nil, fmt.Errorf("running migrations: %w", err)
        }
        a.closers = append(a.closers, db)
        return NewPGRepository(db), nil
    case "mem":
        if !a.config.AllowMemBackend {
            return nil, fmt.Errorf("mem repository is disabled; set ALLOW_MEM_BACKEND=true to enable it")
        }
        a.logger.Info("using in-memory card store")
        return NewRepository(), nil
    default:
        return nil, fmt.Errorf("unsupported REPO_BACKEND=%s", a.config.RepoBackend)
    }
}

func (a *App) Shutdown() {
    a.logger.Info("shutting down app...")

    if a.srv != nil {
        ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        if err := a.srv.Shutdown(ctx); err != nil {
            a.logger.Error("shutting down http server", "err", err)
        }
    }

    if a.iso8583Server != nil {
        if err := a.iso8583Server.Close(); err != nil {
            a.logger.Error("closing iso8583 server", "err", err)
        }
    }

    a.wg.Wait()

    for _, c := range a.closers {
        if err := c.Close(); err != nil {
            a.logger.Error("closing resource", "err", err)
        }
    }

    a.logger.Info("app stopped")
}
