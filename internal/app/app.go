// Package app wires config into a ready filtercache.RowSource over people.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdslog "log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/filtercache"
	asynchook "github.com/unkn0wn-root/filtercache/hooks/async"
	promhooks "github.com/unkn0wn-root/filtercache/hooks/prom"
	sloghooks "github.com/unkn0wn-root/filtercache/hooks/slog"
	"github.com/unkn0wn-root/filtercache/internal/config"
	logruslog "github.com/unkn0wn-root/filtercache/log/logrus"
	sloglog "github.com/unkn0wn-root/filtercache/log/slog"
	zaplog "github.com/unkn0wn-root/filtercache/log/zap"
	"github.com/unkn0wn-root/filtercache/people"
	"github.com/unkn0wn-root/filtercache/people/postgres"
	"github.com/unkn0wn-root/filtercache/store"
	"github.com/unkn0wn-root/filtercache/store/memory"
	redisstore "github.com/unkn0wn-root/filtercache/store/redis"
	valkeystore "github.com/unkn0wn-root/filtercache/store/valkey"
)

// defaultSeed is the generator seed for seeded rows, fixed so runs are repeatable.
const defaultSeed = 1

type BuildOptions struct {
	Migrate bool      // apply schema migrations before opening the engine
	LogOut  io.Writer // nil => io.Discard
}

type App struct {
	Config  *config.Config
	Source  *filtercache.RowSource[people.Person]
	Metrics *prometheus.Registry

	log     filtercache.Logger
	closers []func(context.Context) error
}

// Build constructs every dependency named by cfg. On error, whatever was opened
// is closed again.
func Build(ctx context.Context, cfg *config.Config, opts BuildOptions) (a *App, err error) {
	out := opts.LogOut
	if out == nil {
		out = io.Discard
	}
	a = &App{Config: cfg, Metrics: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
			a = nil
		}
	}()

	log, err := newLogger(cfg, out, a)
	if err != nil {
		return a, fmt.Errorf("logger: %w", err)
	}
	a.log = log
	log.Debug("configuration", filtercache.Fields{"config": cfg.String()})

	st, err := newStore(ctx, cfg)
	if err != nil {
		return a, fmt.Errorf("store: %w", err)
	}
	log.Info("store ready", filtercache.Fields{"backend": cfg.StoreBackend})

	codec, err := people.NewCodec(people.CodecOptions{Name: cfg.Codec, Compress: cfg.Compress, MaxDecode: cfg.MaxDecode})
	if err != nil {
		_ = st.Close(ctx)
		return a, fmt.Errorf("codec: %w", err)
	}

	query, err := a.newQuery(ctx, cfg, opts.Migrate, log)
	if err != nil {
		_ = st.Close(ctx)
		return a, fmt.Errorf("query: %w", err)
	}

	hooks, err := a.newHooks(cfg, out)
	if err != nil {
		_ = st.Close(ctx)
		return a, fmt.Errorf("hooks: %w", err)
	}

	src, err := filtercache.New[people.Person](filtercache.Options[people.Person]{
		Store:             st,
		Codec:             codec,
		Query:             query,
		Namespace:         cfg.Namespace,
		Logger:            log,
		Hooks:             hooks,
		MarkerTTL:         cfg.MarkerTTL,
		EntryTTL:          cfg.EntryTTL,
		AcceptedPageSizes: []int{cfg.PageSize},
		PopulateWorkers:   cfg.PopulateWorkers,
		PopulateQueue:     cfg.PopulateQueue,
		PopulateAttempts:  cfg.PopulateAttempts,
	})
	if err != nil {
		_ = st.Close(ctx)
		return a, err
	}
	a.Source = src
	// closed first: waits for populations, then closes the store
	a.closers = append(a.closers, src.Close)
	log.Info("build ended", filtercache.Fields{"codec": cfg.Codec, "compress": cfg.Compress, "query": cfg.QueryBackend})
	return a, nil
}

func newLogger(cfg *config.Config, out io.Writer, a *App) (filtercache.Logger, error) {
	level := strings.ToLower(cfg.LogLevel)
	switch cfg.LogBackend {
	case "zap":
		l, base, err := zaplog.New(level)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { _ = base.Sync(); return nil })
		return l, nil
	case "logrus":
		return logruslog.New(out, level)
	case "slog":
		return sloglog.New(out, level, true)
	default:
		return nil, fmt.Errorf("unknown log backend %q", cfg.LogBackend)
	}
}

func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "memory":
		return memory.New(memory.Options{CleanupInterval: time.Minute}), nil
	case "valkey":
		return valkeystore.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		s, err := redisstore.New(redisstore.Config{Client: rdb, CloseClient: true})
		if err != nil {
			_ = rdb.Close()
			return nil, err
		}
		if err := s.Ping(ctx); err != nil {
			_ = s.Close(ctx)
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func (a *App) newQuery(ctx context.Context, cfg *config.Config, migrate bool, log filtercache.Logger) (filtercache.Query[people.Person], error) {
	switch cfg.QueryBackend {
	case "memory":
		n := cfg.SeedRows
		if n == 0 {
			n = 1000
		}
		return people.NewTable(people.Generate(n, defaultSeed)), nil
	case "postgres":
		if migrate {
			if err := postgres.Migrate(cfg.DSN(), log); err != nil {
				return nil, err
			}
		}
		e, err := postgres.Open(ctx, cfg.DSN(), postgres.Options{Logger: log})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { e.Close(); return nil })
		if cfg.SeedRows > 0 {
			if err := e.Insert(ctx, people.Generate(cfg.SeedRows, defaultSeed)); err != nil {
				return nil, err
			}
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown query backend %q", cfg.QueryBackend)
	}
}

// newHooks exports metrics on a.Metrics and logs events through an async slog sink.
func (a *App) newHooks(cfg *config.Config, out io.Writer) (filtercache.Hooks, error) {
	if err := a.Metrics.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	prom, err := promhooks.New(a.Metrics, "filtercache")
	if err != nil {
		return nil, err
	}

	var lvl stdslog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return nil, err
	}
	events := sloghooks.New(
		stdslog.New(stdslog.NewJSONHandler(out, &stdslog.HandlerOptions{Level: lvl})),
		sloghooks.Options{HitEvery: 100},
	)
	async := asynchook.New(events, 1, 1024)
	a.closers = append(a.closers, func(context.Context) error { async.Close(); return nil })
	return filtercache.Multi{prom, async}, nil
}

// Page answers one listing request.
func (a *App) Page(ctx context.Context, f people.Filter, page int) (filtercache.Page[people.Person], error) {
	return a.Source.Rows(ctx, f, page, a.Config.PageSize)
}

// ServeMetrics serves /metrics on Config.MetricsAddr until ctx ends. It returns
// nil at once when no address is configured.
func (a *App) ServeMetrics(ctx context.Context) error {
	if a.Config.MetricsAddr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.Metrics, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: a.Config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	a.log.Info("metrics listening", filtercache.Fields{"addr": a.Config.MetricsAddr})

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(stopCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Close releases everything in reverse build order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
