package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-magic-auth/auth"
	"github.com/jrsteele09/go-magic-auth/internal/config"
	"github.com/jrsteele09/go-magic-auth/mail"
	"github.com/jrsteele09/go-magic-auth/server"
	"github.com/jrsteele09/go-magic-auth/token"
	"github.com/jrsteele09/go-magic-auth/users"
	"github.com/jrsteele09/go-magic-auth/users/hasura"
	"github.com/jrsteele09/go-magic-auth/users/postgres"
	"github.com/jrsteele09/go-magic-auth/users/repofake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = fmt.Errorf("panic recovered: %v", r)
		}
	}()

	c, err := config.Load()
	if err != nil {
		return err
	}
	setupLogger(c)
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newIdentityStore(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore()

	codec, err := token.NewCodec(c)
	if err != nil {
		return err
	}

	notifier, err := newNotifier(c, codec)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := auth.NewMetrics(registry)
	if err != nil {
		return err
	}

	sessions, err := auth.NewSessionService(store, codec, notifier,
		auth.WithLogger(log.Logger),
		auth.WithMetrics(metrics),
		auth.WithStoreTimeout(c.GetStoreTimeout()),
		auth.WithNotifyTimeout(c.GetMailTimeout()),
	)
	if err != nil {
		return err
	}

	handler, err := server.New(c, sessions, server.WithGatherer(registry), server.WithLogger(log.Logger))
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(httpServer)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	return shutdown(httpServer)
}

func setupLogger(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stderr
	if c.GetEnv() == "DEV" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Str("app", c.GetAppName()).Logger()
}

// newIdentityStore opens the configured backend. The returned func releases its resources.
func newIdentityStore(ctx context.Context, c config.Config) (users.IdentityStore, func(), error) {
	switch c.GetStoreBackend() {
	case config.StoreBackendPostgres:
		pool, err := postgres.Connect(ctx, c.GetDatabaseURL())
		if err != nil {
			return nil, nil, err
		}
		store, err := postgres.New(pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info().Msg("Using postgres identity store")
		return store, pool.Close, nil

	case config.StoreBackendHasura:
		store, err := hasura.New(c.GetHasuraURL(), c.GetHasuraAdminSecret(), hasura.WithTimeout(c.GetStoreTimeout()))
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("endpoint", c.GetHasuraURL()).Msg("Using hasura identity store")
		return store, func() {}, nil

	default:
		log.Warn().Msg("Using in-memory identity store; users are lost on restart")
		return repofake.NewIdentityStore(), func() {}, nil
	}
}

// newNotifier builds the configured sender. The email states the lifetime the codec actually
// signs with.
func newNotifier(c config.Config, codec *token.Codec) (mail.Notifier, error) {
	composer, err := mail.NewComposer(c.GetMagicLinkBaseURL(), c.GetAppName(), codec.MagicLinkTokenExpiry())
	if err != nil {
		return nil, err
	}

	switch c.GetMailBackend() {
	case config.MailBackendSMTP:
		return mail.NewSMTPNotifier(c, composer), nil
	default:
		log.Warn().Msg("Magic links are logged, not emailed")
		return mail.NewLogNotifier(log.Logger, composer), nil
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
