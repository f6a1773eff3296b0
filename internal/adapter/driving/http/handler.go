package http

import (
	"net/http"

	"github.com/Wyydra/rendezvous/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/Wyydra/rendezvous/internal/core/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// TokenVerifier turns a join token back into the grant it carries.
type TokenVerifier interface {
	Verify(token string) (domain.JoinGrant, error)
}

type Handler struct {
	Hub       *ws.Hub
	Join      *service.JoinService
	Authority *service.RoleAuthority
	Directory *service.SessionDirectory
	Tokens    TokenVerifier
	StaticDir string
}

func NewHandler(hub *ws.Hub, join *service.JoinService, authority *service.RoleAuthority, directory *service.SessionDirectory, tokens TokenVerifier, staticDir string) *Handler {
	return &Handler{
		Hub:       hub,
		Join:      join,
		Authority: authority,
		Directory: directory,
		Tokens:    tokens,
		StaticDir: staticDir,
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/token", h.GetToken)
		r.Get("/rooms", h.ListRooms)
		r.Post("/room/claim-admin", h.ClaimAdmin)
		r.Post("/room/promote", h.Promote)
		r.Post("/room/end", h.EndRoom)
	})

	r.Get("/ws", h.ServeWS)

	if h.StaticDir != "" {
		fs := http.FileServer(http.Dir(h.StaticDir))
		r.Handle("/*", fs)
	}

	return r
}
