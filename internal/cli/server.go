package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"quiz-builder/internal/app"
	"quiz-builder/internal/config"
	"quiz-builder/internal/infra/memory"
	"quiz-builder/internal/infra/postgres"
	"quiz-builder/internal/infra/redis"
	transport "quiz-builder/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
	cmd.Flags().StringVar(port, "port", "", "port to listen on (overrides config and PORT)")
	return cmd
}

type resultFeed interface {
	app.FeedPublisher
	app.FeedSubscriber
}

// backend is the storage, cache and feed wiring selected by config.
type backend struct {
	participants app.ParticipantRepository
	quizzes      app.QuizStore
	results      app.ResultRepository
	users        app.UserRepository
	cache        app.QuizRepository
	feed         resultFeed
	memory       bool
	closers      []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// services builds the use cases over the backend.
type services struct {
	participants *app.ParticipantService
	quizzes      *app.QuizService
	results      *app.ResultService
	auth         *app.AuthService
}

func newServices(cfg config.Config, b *backend, log logrus.FieldLogger) services {
	return services{
		participants: app.NewParticipantService(b.participants),
		quizzes:      app.NewQuizService(b.quizzes, b.cache, log),
		results:      app.NewResultService(b.participants, b.cache, b.results, b.feed, log),
		auth: app.NewAuthService(b.users, app.AuthConfig{
			SessionSecret: cfg.Auth.SessionSecret,
			AdminSecret:   cfg.Auth.AdminSecret,
			TokenTTL:      config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour),
		}, log),
	}
}

func openBackend(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*backend, error) {
	b := &backend{}
	var loader memory.QuizLoader

	if cfg.Postgres.URL != "" {
		db := postgres.Open(cfg.Postgres.URL)
		b.closers = append(b.closers, func() { _ = db.Close() })
		if err := runMigrations(ctx, db, log); err != nil {
			b.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect pgx pool: %w", err)
		}
		b.closers = append(b.closers, pool.Close)

		store := postgres.NewStore(db)
		b.participants, b.quizzes, b.results, b.users = store, store, store, store
		loader = postgres.NewQuizLoader(pool)

		if cfg.Feed.Backend == "postgres" {
			b.feed = postgres.NewFeed(db, cfg.Postgres.URL, cfg.Feed.Channel, log)
		}
	} else {
		store := memory.NewStore()
		b.participants, b.quizzes, b.results, b.users = store, store, store, store
		b.memory = true
		loader = store
	}

	ttl := config.TTLDuration(cfg.Cache.TTL, 10*time.Minute)
	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable; quiz reads fall back to the database")
		}
		b.cache = redis.NewQuizCache(client, loader, ttl)
		if cfg.Feed.Backend == "redis" {
			b.feed = redis.NewFeed(client, cfg.Feed.Channel, log)
		}
	} else {
		b.cache = memory.NewQuizCache(loader, ttl)
	}

	if b.feed == nil {
		if cfg.Feed.Backend != "memory" {
			log.WithField("backend", cfg.Feed.Backend).Warn("feed backend unavailable; using in-process feed")
		}
		b.feed = memory.NewFeed(64)
	}
	return b, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	svc := newServices(cfg, b, log)
	if b.memory {
		if err := seedData(ctx, svc, defaultAdminPassword, log); err != nil {
			return fmt.Errorf("seed memory store: %w", err)
		}
	}

	handler := transport.NewRouter(transport.Services{
		Participants: svc.participants,
		Quizzes:      svc.quizzes,
		Results:      svc.results,
		Auth:         svc.auth,
		Feed:         b.feed,
	}, log, transport.WithSecureCookie(cfg.Server.SecureCookie))

	server := transport.NewServer(":"+finalPort, handler,
		config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second))

	go func() {
		log.WithFields(logrus.Fields{
			"port":    finalPort,
			"storage": storageName(b),
			"feed":    cfg.Feed.Backend,
		}).Info("starting quiz server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func storageName(b *backend) string {
	if b.memory {
		return "memory"
	}
	return "postgres"
}
