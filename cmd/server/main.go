package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Wyydra/rendezvous/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/rendezvous/internal/adapter/driven/token"
	handler "github.com/Wyydra/rendezvous/internal/adapter/driving/http"
	"github.com/Wyydra/rendezvous/internal/config"
	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/Wyydra/rendezvous/internal/core/service"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	w := zerolog.ConsoleWriter{Out: os.Stdout}
	log.Logger = zerolog.New(w).With().Timestamp().Caller().Logger()

	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	zerolog.SetGlobalLevel(config.Level(cfg.LogLevel))

	clock := clockwork.NewRealClock()
	issuer, err := token.NewJWTIssuer(cfg.APIKey, cfg.APISecret, cfg.TokenTTL, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	hub := ws.NewHub()
	authority := service.NewRoleAuthority(hub, hub, hub)
	joinService := service.NewJoinService(authority, issuer)
	directory := service.NewSessionDirectory(hub, domain.SessionID(cfg.LobbyRoom), clock, 0)
	h := handler.NewHandler(hub, joinService, authority, directory, issuer, cfg.StaticDir)

	go hub.Run()

	r := h.NewRouter()

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("lobby", cfg.LobbyRoom).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub.Stop()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
