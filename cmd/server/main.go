package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/insightdeck/insightdeck/config"
	"github.com/insightdeck/insightdeck/internal/api"
	"github.com/insightdeck/insightdeck/internal/embed"
	"github.com/insightdeck/insightdeck/internal/runtime"
	"github.com/insightdeck/insightdeck/internal/session"
	"github.com/insightdeck/insightdeck/pkg/version"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var (
		addr            string
		sessionTTL      time.Duration
		shutdownTimeout time.Duration
	)

	flag.StringVar(&addr, "addr", config.DefaultListenAddr, "HTTP listen address")
	flag.DurationVar(&sessionTTL, "session-ttl", config.DefaultSessionIdleTTL, "Idle session time-to-live")
	flag.DurationVar(&shutdownTimeout, "shutdown-timeout", config.DefaultShutdownTimeout, "Graceful shutdown timeout")
	flag.Parse()

	logger := zlog.With().Str("service", "insightdeck-server").Logger()

	limits := runtime.NewLimits(config.DefaultMaxConcurrentRequests, config.DefaultMaxOpenSessions)
	controller := runtime.NewController(limits)

	sessions := session.NewManager(sessionTTL, config.DefaultSessionCleanupPeriod, controller, nil)
	sessions.Start()

	// The relay validates lazily so an unconfigured embed integration only
	// fails the token endpoint, not the whole dashboard.
	embedCfg := embed.FromEnv()
	relay := embed.NewRelay(embedCfg, nil, logger.With().Str("component", "embed-relay").Logger())
	if err := embedCfg.Validate(); err != nil {
		logger.Warn().Err(err).Msg("embed relay not fully configured; /api/embed-token will fail")
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(sessions, relay, controller, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info().
		Str("version", version.Version()).
		Str("addr", addr).
		Int("max_concurrent_requests", limits.MaxConcurrentRequests).
		Int("max_open_sessions", limits.MaxOpenSessions).
		Dur("session_ttl", sessionTTL).
		Msg("server bootstrap configured")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
		if err := sessions.Close(ctx); err != nil {
			logger.Error().Err(err).Msg("session manager shutdown failed")
		}
	}
}
