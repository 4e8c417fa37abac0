// Package http is the local API the browser UI drives.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cwrk-planet/glasschat/pkg/httputil"
)

type Deps struct {
	Identity    Identity
	Session     Session
	Chat        Chat
	Call        Call
	Attachments Uploader

	// WS serves the UI event stream; it authenticates itself.
	WS http.Handler
	// Files serves locally stored attachments under FilesPrefix.
	Files       http.Handler
	FilesPrefix string

	AllowedOrigins []string
	MaxUploadBytes int64
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httputil.MiddlewareRequestID)
	r.Use(httputil.MiddlewareLogging)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.OK(w, map[string]string{"status": "ok"})
	})

	if d.WS != nil {
		r.Handle("/ws", d.WS)
	}
	if d.Files != nil && d.FilesPrefix != "" {
		r.Handle(d.FilesPrefix+"*", http.StripPrefix(d.FilesPrefix, d.Files))
	}

	ah := &AuthHandlers{Identity: d.Identity, Session: d.Session}
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Post("/auth/signup", ah.SignUp)
		r.Post("/auth/signin", ah.SignIn)
		r.Post("/auth/refresh", ah.Refresh)
	})

	rh := &RoomHandlers{Chat: d.Chat, Attachments: d.Attachments, MaxUploadBytes: d.MaxUploadBytes}
	ch := &CallHandlers{Call: d.Call}
	r.Group(func(r chi.Router) {
		r.Use(RequireUser(d.Identity, d.Session))

		r.Post("/auth/logout", ah.Logout)
		r.Get("/me", ah.Me)
		r.Get("/users", rh.Users)

		r.Get("/preferences", ah.Preferences)
		r.Post("/preferences/{name}/toggle", ah.TogglePreference)

		r.Route("/rooms", func(rt chi.Router) {
			rt.Get("/", rh.ListRooms)
			rt.Post("/", rh.CreateRoom)
			rt.Get("/new", rh.OpenRoomCreation)
			rt.Get("/active", rh.ActiveRoom)
			rt.Put("/active", rh.SetActiveRoom)

			rt.Route("/{id}", func(rr chi.Router) {
				rr.Post("/join", rh.Join)
				rr.Post("/leave", rh.Leave)
				rr.Post("/read", rh.MarkRead)
				rr.Get("/messages", rh.Messages)
				rr.Post("/messages", rh.SendMessage)
				rr.Post("/attachments", rh.UploadAttachment)
			})
		})
		r.Post("/messages/{id}/reactions", rh.React)

		r.Route("/call", func(rt chi.Router) {
			rt.Get("/", ch.State)
			rt.Post("/start", ch.Start)
			rt.Post("/join", ch.Join)
			rt.Post("/end", ch.End)
			rt.Post("/mute", ch.ToggleMute)
			rt.Post("/video", ch.ToggleVideo)
			rt.Post("/peers/{participantID}/offer", ch.Offer)
		})
	})

	return r
}
