package command

import (
	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/Wyydra/rendezvous/internal/core/service"
	"github.com/spf13/cobra"
)

// NewRoomsCmd creates the rooms command.
func NewRoomsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List active rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := getContext(cmd, false)
			if err != nil {
				return err
			}
			dir := service.NewSessionDirectory(cc.api, domain.SessionID(cc.cfg.LobbyRoom), nil, cc.cfg.RoomsPollInterval)
			out := cmd.OutOrStdout()

			watch, _ := cmd.Flags().GetBool("watch")
			if !watch {
				sessions, err := dir.List(cmd.Context())
				if err != nil {
					return err
				}
				printSessions(out, sessions)
				return nil
			}

			dir.Poll(cmd.Context(), func(sessions []domain.SessionInfo) {
				printHeader(out, "Active rooms")
				printSessions(out, sessions)
			})
			return nil
		},
	}
	cmd.Flags().Bool("watch", false, "keep refreshing the listing")
	return cmd
}
