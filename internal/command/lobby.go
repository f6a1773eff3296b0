package command

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Wyydra/rendezvous/internal/adapter/driven/rtc"
	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/Wyydra/rendezvous/internal/core/service"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const lobbyHelp = "commands: who | rooms | call <name> | cancel | accept | reject | join <room> | quit"

// NewLobbyCmd creates the lobby command.
func NewLobbyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lobby",
		Short: "Wait in the lobby, call people and answer calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := getContext(cmd, true)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			lines := readLines(ctx, cmd.InOrStdin())
			return runLobby(ctx, cc, cmd.OutOrStdout(), lines)
		},
	}
	return cmd
}

// runLobby alternates between the lobby and whatever room a call lands in,
// returning to the lobby when the room is left.
func runLobby(ctx context.Context, cc *clientContext, out io.Writer, lines <-chan string) error {
	lobby := domain.SessionID(cc.cfg.LobbyRoom)
	for {
		conn, err := cc.join(ctx, lobby)
		if err != nil {
			return fmt.Errorf("connect to lobby: %w", err)
		}

		room, err := lobbySession(ctx, cc, conn, out, lines)
		conn.Close()
		if err != nil {
			return err
		}

		if err := runRoom(ctx, cc, room, out, lines); err != nil {
			return err
		}
	}
}

// lobbySession runs one stay in the lobby and returns the room to move to.
func lobbySession(ctx context.Context, cc *clientContext, conn *rtc.Conn, out io.Writer, lines <-chan string) (domain.SessionID, error) {
	lobby := conn.Session()
	neg := service.NewCallNegotiator(lobby, cc.identity, conn, conn, conn,
		service.WithCallTimeout(cc.cfg.CallTimeout))

	lctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := neg.Run(lctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Call negotiation stopped")
		}
	}()

	printHeader(out, "Lobby - logged in as %s", cc.identity)
	printRoster(out, cc.identity, conn.Participants())
	fmt.Fprintln(out, dimStyle.Render(lobbyHelp))

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()

		case <-conn.Done():
			return "", errors.New("lost connection to the lobby")

		case n, ok := <-neg.Notices():
			if !ok {
				return "", errors.New("call negotiation stopped")
			}
			switch n.Kind {
			case domain.NoticeCallTimedOut:
				printWarn(out, "%s", noticeText(n))
			case domain.NoticeCallConnected:
				printNotice(out, "%s", noticeText(n))
				return n.Session, nil
			default:
				printNotice(out, "%s", noticeText(n))
			}

		case line, ok := <-lines:
			if !ok {
				return "", errQuit
			}
			room, err := lobbyCommand(lctx, cc, neg, conn, out, line)
			if err != nil {
				return "", err
			}
			if room != "" {
				return room, nil
			}
		}
	}
}

func lobbyCommand(ctx context.Context, cc *clientContext, neg *service.CallNegotiator, conn *rtc.Conn, out io.Writer, line string) (domain.SessionID, error) {
	verb, arg := splitCommand(line)
	switch verb {
	case "who":
		printRoster(out, cc.identity, conn.Participants())

	case "rooms":
		dir := service.NewSessionDirectory(cc.api, conn.Session(), nil, cc.cfg.RoomsPollInterval)
		sessions, err := dir.List(ctx)
		if err != nil {
			printWarn(out, "Failed to list rooms: %v", err)
			break
		}
		printSessions(out, sessions)

	case "call":
		if _, err := neg.Initiate(ctx, domain.Identity(arg)); err != nil {
			printWarn(out, "Cannot call %q: %v", arg, err)
		}

	case "cancel":
		if err := neg.Cancel(ctx); err != nil {
			printWarn(out, "Nothing to cancel")
		}

	case "accept":
		room, err := neg.Accept(ctx)
		if err != nil {
			printWarn(out, "%s", acceptFailure(err))
			break
		}
		return room, nil

	case "reject":
		if err := neg.Reject(ctx); err != nil {
			printWarn(out, "No incoming call")
		}

	case "join":
		room := domain.SessionID(arg)
		if !room.Valid() {
			printWarn(out, "usage: join <room>")
			break
		}
		return room, nil

	case "quit", "exit":
		return "", errQuit

	default:
		fmt.Fprintln(out, dimStyle.Render(lobbyHelp))
	}
	return "", nil
}

// acceptFailure explains a failed accept. A failed send leaves the call ringing.
func acceptFailure(err error) string {
	if errors.Is(err, domain.ErrNoPendingCall) {
		return "No incoming call"
	}
	return fmt.Sprintf("Could not answer the call, it is still ringing: %v", err)
}
