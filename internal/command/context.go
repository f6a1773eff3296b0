package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Wyydra/rendezvous/internal/adapter/driven/rtc"
	"github.com/Wyydra/rendezvous/internal/config"
	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var errQuit = errors.New("quit")

// clientContext is what every subcommand needs to reach the server.
type clientContext struct {
	cfg      config.Client
	api      *rtc.APIClient
	identity domain.Identity
}

func getContext(cmd *cobra.Command, needName bool) (*clientContext, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("url") {
		cfg.URL, _ = cmd.Flags().GetString("url")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}

	w := zerolog.ConsoleWriter{Out: os.Stderr}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(config.Level(cfg.LogLevel))

	api, err := rtc.NewAPIClient(cfg.URL, nil)
	if err != nil {
		return nil, err
	}

	name, _ := cmd.Flags().GetString("name")
	identity := domain.Identity(strings.TrimSpace(name))
	if needName && !identity.Valid() {
		return nil, fmt.Errorf("--name is required")
	}

	return &clientContext{cfg: cfg, api: api, identity: identity}, nil
}

// join fetches a token for session and connects to it.
func (c *clientContext) join(ctx context.Context, session domain.SessionID) (*rtc.Conn, error) {
	token, err := c.api.Token(ctx, session, c.identity)
	if err != nil {
		return nil, err
	}
	conn, err := rtc.Dial(ctx, c.api.WebsocketURL(token), session, c.identity)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("session", session.String()).Str("identity", c.identity.String()).Msg("Joined")
	return conn, nil
}
