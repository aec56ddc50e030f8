package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-portal-server/backend"
	"github.com/jrsteele09/go-portal-server/identity"
	"github.com/jrsteele09/go-portal-server/internal/config"
	"github.com/jrsteele09/go-portal-server/internal/logging"
	"github.com/jrsteele09/go-portal-server/internal/redisstore"
	"github.com/jrsteele09/go-portal-server/server"
	"github.com/jrsteele09/go-portal-server/server/authflowrepo"
	"github.com/jrsteele09/go-portal-server/token"
	"github.com/jrsteele09/go-portal-server/token/refresh"
	"github.com/rs/zerolog/log"
)

const (
	revocationCleanupInterval = 10 * time.Minute
	workspacePruneInterval    = 5 * time.Minute
)

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
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logging.Init(c.GetEnv(), c.GetLogLevel())
	displayAppname(c.GetAppName())

	if c.IsDefaultSessionSecret() {
		log.Warn().Msg("SESSION_SECRET is not set - using the insecure development secret")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redis := redisstore.NewService(ctx, c.GetRedisURL(), c.GetRedisPassword())
	if redis != nil {
		defer redis.Close()
	}
	authFlows, revoked := stores(redis)

	api := backend.NewClient(c.GetAPIBaseURL(), backend.WithTimeout(c.GetAPITimeout()))
	provider := identity.NewGoogleProvider(identity.ProviderConfig{
		ClientID:     c.GetGoogleClientID(),
		ClientSecret: c.GetGoogleClientSecret(),
		RedirectURL:  c.GetBaseURL() + server.RouteCallback,
		Issuer:       c.GetGoogleIssuer(),
		Verifier:     c.GetIdentityVerifier(),
	})
	orchestrator := refresh.New(api,
		refresh.WithTokenTTLs(c.GetAccessTokenTTL(), c.GetRefreshTokenTTL()),
		refresh.WithRefreshExtendsSession(c.GetRefreshExtendsSession()),
	)

	portal, err := server.New(c, server.Dependencies{
		Provider:  provider,
		Sessions:  orchestrator,
		API:       api,
		AuthFlows: authFlows,
		Revoked:   revoked,
	})
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	go portal.Workspaces().Run(ctx, workspacePruneInterval, c.GetWorkspaceIdleTimeout())
	go cleanupRevocations(ctx, revoked)

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           portal,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(httpServer)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

// stores picks the shared Redis implementations when Redis is reachable.
func stores(redis *redisstore.Service) (authflowrepo.Repo, token.RevokedSessionCache) {
	if redis == nil {
		return authflowrepo.NewInMemoryRepo(), token.NewInMemoryRevokedSessionCache()
	}
	return authflowrepo.NewRedisRepo(redis, authflowrepo.DefaultTTL), token.NewRedisRevokedSessionCache(redis)
}

func cleanupRevocations(ctx context.Context, revoked token.RevokedSessionCache) {
	ticker := time.NewTicker(revocationCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			revoked.Cleanup()
		}
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
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
