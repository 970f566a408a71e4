package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/makerhub/makerhub/internal/common/logtrace"
	"github.com/makerhub/makerhub/internal/hubsrv/apis"
	"github.com/makerhub/makerhub/internal/hubsrv/config"
	"github.com/makerhub/makerhub/internal/hubsrv/events"
	"github.com/makerhub/makerhub/internal/hubsrv/introductions"
	"github.com/makerhub/makerhub/internal/hubsrv/notify"
	"github.com/makerhub/makerhub/internal/hubsrv/server"
	"github.com/makerhub/makerhub/internal/hubsrv/store"
	"github.com/makerhub/makerhub/internal/hubsrv/store/memory"
	"github.com/makerhub/makerhub/internal/hubsrv/store/postgres"
	"github.com/makerhub/makerhub/internal/hubsrv/template"
	"github.com/makerhub/makerhub/internal/hubsrv/usage"
)

func init() {
	logtrace.InitLogger()
}

type cmdoptions struct {
	configFile *string
}

func main() {
	slog := log.With().Str("state", "init").Logger()
	opt := parseFlags()

	slog.Info().Str("config_file", *opt.configFile).Msg("loading config file")
	if err := config.LoadConfig(*opt.configFile); err != nil {
		slog.Error().Str("config_file", *opt.configFile).Err(err).Msg("unable to load config file")
		os.Exit(1)
	}
	if config.Config().ServerPort == "" {
		slog.Error().Msg("server port not defined")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		slog.Error().Err(err).Msg("unable to open store")
		os.Exit(1)
	}
	defer st.Close()

	bus := events.NewBus()
	renderer := template.NewRenderer()
	registry := introductions.NewRegistry(st)
	tracker := usage.NewTracker(st, registry, bus)

	tick := config.Config().QueueTickInterval()
	connMgr := notify.NewConnManager()
	defer connMgr.Close()
	mqttDispatch := notify.NewMQTTDispatcher(st, renderer, bus, connMgr, tick)
	webhookDispatch := notify.NewWebhookDispatcher(st, renderer, bus, tick)
	go mqttDispatch.Queue().Run(ctx)
	go webhookDispatch.Queue().Run(ctx)

	handler := apis.NewHandler(st, tracker, registry, mqttDispatch, webhookDispatch)
	s, err := server.CreateNewServer()
	if err != nil {
		slog.Error().Err(err).Msg("unable to create server")
		os.Exit(1)
	}
	s.MountHandlers(handler)

	srv := &http.Server{
		Addr:    ":" + config.Config().ServerPort,
		Handler: s.Router,
	}
	go func() {
		slog.Info().Str("port", config.Config().ServerPort).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error().Err(err).Msg("server exited")
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error().Err(err).Msg("shutdown error")
	}
}

// openStore selects postgres when a DSN is configured, the in-memory store
// otherwise. The postgres connect is retried to ride out database startup
// ordering in container environments.
func openStore(ctx context.Context) (store.Store, error) {
	dsn := config.Config().DatabaseDSN
	if dsn == "" {
		log.Info().Msg("no database_dsn configured, using in-memory store")
		return memory.New(), nil
	}
	var pg *postgres.Store
	err := retry.Do(
		func() error {
			var err error
			pg, err = postgres.New(ctx, dsn)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(10),
		retry.Delay(2*time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Uint("attempt", n+1).Err(err).Msg("database not ready, retrying")
		}),
	)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return pg, nil
}

func parseFlags() cmdoptions {
	var opt cmdoptions
	opt.configFile = flag.String("config", "", "Path to the config file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options]\n\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
	}
	flag.Parse()
	return opt
}
