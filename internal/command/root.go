// Package command implements the rendezvous participant CLI.
package command

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const AppName = "rendezvous"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Meet people in the lobby and call them",
		Long:          "rendezvous connects to a rendezvous server, lists who is in the lobby and negotiates calls.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("url", "", "server URL (overrides RENDEZVOUS_URL)")
	cmd.PersistentFlags().String("name", "", "display name to join with")
	cmd.PersistentFlags().String("log-level", "", "log level (overrides RENDEZVOUS_LOG_LEVEL)")

	cmd.AddCommand(
		NewLobbyCmd(),
		NewRoomCmd(),
		NewRoomsCmd(),
	)

	return cmd
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd(Version).ExecuteContext(ctx)
	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
