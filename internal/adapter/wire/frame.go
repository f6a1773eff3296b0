// Package wire holds the JSON frames exchanged over the participant websocket.
package wire

import "github.com/Wyydra/rendezvous/internal/core/domain"

// ClientFrameData is the only frame a participant sends: directed data.
const ClientFrameData = "data"

type ParticipantDTO struct {
	SID      string `json:"sid"`
	Identity string `json:"identity"`
	Metadata string `json:"metadata"`
}

// EventFrame is pushed from server to participant.
type EventFrame struct {
	Event        string           `json:"event"`
	Identity     string           `json:"identity,omitempty"`
	SID          string           `json:"sid,omitempty"`
	Metadata     string           `json:"metadata,omitempty"`
	From         string           `json:"from,omitempty"`
	Payload      []byte           `json:"payload,omitempty"`
	Participants []ParticipantDTO `json:"participants,omitempty"`
}

// ClientFrame is sent from participant to server.
type ClientFrame struct {
	Type    string   `json:"type"`
	To      []string `json:"to"`
	Payload []byte   `json:"payload"`
}

func FromEvent(ev domain.Event) EventFrame {
	f := EventFrame{
		Event:    string(ev.Kind),
		Identity: ev.Identity.String(),
		SID:      ev.SID,
		Metadata: ev.Metadata,
		From:     ev.From.String(),
		Payload:  ev.Payload,
	}
	for _, p := range ev.Participants {
		f.Participants = append(f.Participants, ParticipantDTO{
			SID:      p.SID,
			Identity: p.Identity.String(),
			Metadata: p.Metadata,
		})
	}
	return f
}

func (f EventFrame) ToEvent(session domain.SessionID) domain.Event {
	ev := domain.Event{
		Kind:     domain.EventKind(f.Event),
		Session:  session,
		Identity: domain.Identity(f.Identity),
		SID:      f.SID,
		Metadata: f.Metadata,
		From:     domain.Identity(f.From),
		Payload:  f.Payload,
	}
	for _, p := range f.Participants {
		ev.Participants = append(ev.Participants, domain.Participant{
			SID:      p.SID,
			Identity: domain.Identity(p.Identity),
			Metadata: p.Metadata,
		})
	}
	return ev
}

// SessionDTO is the /api/rooms listing entry.
type SessionDTO struct {
	SID             string `json:"sid"`
	Name            string `json:"name"`
	NumParticipants int    `json:"numParticipants"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type RoomRequest struct {
	Room           string `json:"room"`
	Identity       string `json:"identity"`
	TargetIdentity string `json:"targetIdentity,omitempty"`
}

type RoomResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
