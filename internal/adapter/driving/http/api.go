package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Wyydra/rendezvous/internal/adapter/wire"
	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/rs/zerolog/log"
)

const maxBodySize = 16 * 1024

func (h *Handler) GetToken(w http.ResponseWriter, r *http.Request) {
	room := strings.TrimSpace(r.URL.Query().Get("room"))
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if room == "" {
		writeJSON(w, http.StatusBadRequest, wire.ErrorResponse{Error: `Missing "room" query parameter`})
		return
	}
	if username == "" {
		writeJSON(w, http.StatusBadRequest, wire.ErrorResponse{Error: `Missing "username" query parameter`})
		return
	}

	token, err := h.Join.Token(r.Context(), domain.SessionID(room), domain.Identity(username))
	if err != nil {
		writeError(w, err, "Failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, wire.TokenResponse{Token: token})
}

func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Directory.List(r.Context())
	if err != nil {
		writeError(w, err, "Failed to list rooms")
		return
	}
	out := make([]wire.SessionDTO, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, wire.SessionDTO{
			SID:             s.SID,
			Name:            s.Name.String(),
			NumParticipants: s.NumParticipants,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ClaimAdmin(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRoomRequest(w, r, false)
	if !ok {
		return
	}
	res, err := h.Authority.ClaimAdmin(r.Context(), domain.SessionID(req.Room), domain.Identity(req.Identity))
	if err != nil {
		writeError(w, err, "Failed to claim admin")
		return
	}
	if !res.Granted {
		writeJSON(w, http.StatusOK, wire.RoomResponse{Success: false, Message: string(res.Reason)})
		return
	}
	writeJSON(w, http.StatusOK, wire.RoomResponse{Success: true})
}

func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRoomRequest(w, r, true)
	if !ok {
		return
	}
	err := h.Authority.Promote(r.Context(), domain.SessionID(req.Room), domain.Identity(req.Identity), domain.Identity(req.TargetIdentity))
	if err != nil {
		writeError(w, err, "Failed to promote user")
		return
	}
	writeJSON(w, http.StatusOK, wire.RoomResponse{Success: true})
}

func (h *Handler) EndRoom(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRoomRequest(w, r, false)
	if !ok {
		return
	}
	if err := h.Authority.Terminate(r.Context(), domain.SessionID(req.Room), domain.Identity(req.Identity)); err != nil {
		writeError(w, err, "Failed to end room")
		return
	}
	writeJSON(w, http.StatusOK, wire.RoomResponse{Success: true})
}

func decodeRoomRequest(w http.ResponseWriter, r *http.Request, needTarget bool) (wire.RoomRequest, bool) {
	var req wire.RoomRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, wire.ErrorResponse{Error: "Invalid request body"})
		return req, false
	}
	if req.Room == "" || req.Identity == "" || (needTarget && req.TargetIdentity == "") {
		writeJSON(w, http.StatusBadRequest, wire.ErrorResponse{Error: "Missing parameters"})
		return req, false
	}
	return req, true
}

// writeError maps domain errors to a status. Unclassified failures are
// logged and reported with the generic message only.
func writeError(w http.ResponseWriter, err error, generic string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, wire.ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusForbidden, wire.ErrorResponse{Error: "Unauthorized"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, wire.ErrorResponse{Error: "Not found"})
	case errors.Is(err, domain.ErrAuthorityUnavailable):
		log.Error().Err(err).Msg(generic)
		writeJSON(w, http.StatusServiceUnavailable, wire.ErrorResponse{Error: generic})
	default:
		log.Error().Err(err).Msg(generic)
		writeJSON(w, http.StatusInternalServerError, wire.ErrorResponse{Error: generic})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error writing response")
	}
}
