package command

import (
	"fmt"
	"io"

	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("111"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("157"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	adminStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
)

func printHeader(out io.Writer, format string, args ...any) {
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf(format, args...)))
}

func printNotice(out io.Writer, format string, args ...any) {
	fmt.Fprintln(out, noticeStyle.Render(fmt.Sprintf(format, args...)))
}

func printWarn(out io.Writer, format string, args ...any) {
	fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf(format, args...)))
}

// printRoster lists participants, marking admins and the local identity.
func printRoster(out io.Writer, self domain.Identity, participants []domain.Participant) {
	if len(participants) <= 1 {
		fmt.Fprintln(out, dimStyle.Render("No other users online."))
	}
	for _, p := range participants {
		line := p.Identity.String()
		if p.Identity == self {
			line += dimStyle.Render(" (you)")
		}
		if roles, err := domain.ParseRoleSet(p.Metadata); err == nil && roles.IsAdmin() {
			line += " " + adminStyle.Render("[admin]")
		}
		fmt.Fprintln(out, "  "+line)
	}
}

func printSessions(out io.Writer, sessions []domain.SessionInfo) {
	if len(sessions) == 0 {
		fmt.Fprintln(out, dimStyle.Render("No active rooms. Create one with `rendezvous room --room <name>`."))
		return
	}
	for _, s := range sessions {
		fmt.Fprintf(out, "  %s %s\n", s.Name, dimStyle.Render(fmt.Sprintf("(%d participants)", s.NumParticipants)))
	}
}

func noticeText(n domain.CallNotice) string {
	switch n.Kind {
	case domain.NoticeCalling:
		return fmt.Sprintf("Calling %s... (cancel to hang up)", n.Peer)
	case domain.NoticeRinging:
		return fmt.Sprintf("Incoming call from %s (accept / reject)", n.Peer)
	case domain.NoticeCallConnected:
		return fmt.Sprintf("Connected with %s in %s", n.Peer, n.Session)
	case domain.NoticeCallTimedOut:
		return "Call timed out. The user might be away."
	case domain.NoticeCallCancelled:
		return fmt.Sprintf("Call to %s cancelled", n.Peer)
	case domain.NoticeCallRejected:
		return fmt.Sprintf("Dismissed call from %s", n.Peer)
	}
	return string(n.Kind)
}
