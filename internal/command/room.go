package command

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/Wyydra/rendezvous/internal/core/service"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const roomHelp = "commands: who | promote <name> | end | leave"

// NewRoomCmd creates the room command: join or create a room by name without a call.
func NewRoomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "room",
		Short: "Join or create a room directly",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := getContext(cmd, true)
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("room")
			room := domain.SessionID(name)
			if !room.Valid() {
				return fmt.Errorf("--room is required")
			}
			ctx := cmd.Context()
			lines := readLines(ctx, cmd.InOrStdin())
			err = runRoom(ctx, cc, room, cmd.OutOrStdout(), lines)
			if errors.Is(err, errQuit) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().String("room", "", "room to join")
	return cmd
}

// runRoom stays in room until the user leaves or the room is ended.
// The admin watcher runs for the whole stay.
func runRoom(ctx context.Context, cc *clientContext, room domain.SessionID, out io.Writer, lines <-chan string) error {
	conn, err := cc.join(ctx, room)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", room, err)
	}
	defer conn.Close()

	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	watcher := service.NewAdminWatcher(room, cc.identity, conn, conn, conn, cc.api)
	go func() {
		if err := watcher.Run(rctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Admin watcher stopped")
		}
	}()

	printHeader(out, "Room %s", room)
	printRoster(out, cc.identity, conn.Participants())
	fmt.Fprintln(out, dimStyle.Render(roomHelp))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-conn.Done():
			printNotice(out, "Left %s", room)
			return nil

		case line, ok := <-lines:
			if !ok {
				return errQuit
			}
			verb, arg := splitCommand(line)
			switch verb {
			case "who":
				printRoster(out, cc.identity, conn.Participants())

			case "promote":
				err := cc.api.Promote(ctx, room, cc.identity, domain.Identity(arg))
				switch {
				case errors.Is(err, domain.ErrUnauthorized):
					printWarn(out, "Only an admin can promote")
				case err != nil:
					printWarn(out, "Failed to promote %s: %v", arg, err)
				default:
					printNotice(out, "%s is now an admin", arg)
				}

			case "end":
				err := cc.api.Terminate(ctx, room, cc.identity)
				switch {
				case errors.Is(err, domain.ErrUnauthorized):
					printWarn(out, "Only an admin can end the room")
				case err != nil:
					printWarn(out, "Failed to end room: %v", err)
				}

			case "leave", "quit", "exit":
				return nil

			default:
				fmt.Fprintln(out, dimStyle.Render(roomHelp))
			}
		}
	}
}
