package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/omnimind/omnimind-engine/internal/content"
	chathandler "github.com/omnimind/omnimind-engine/internal/handler/chat"
	contenthandler "github.com/omnimind/omnimind-engine/internal/handler/content"
	moderationhandler "github.com/omnimind/omnimind-engine/internal/handler/moderation"
	"github.com/omnimind/omnimind-engine/internal/handler/persona"
	"github.com/omnimind/omnimind-engine/internal/handler/stream"
	"github.com/omnimind/omnimind-engine/internal/handler/ws"
	middlewarePkg "github.com/omnimind/omnimind-engine/internal/middleware"
	"github.com/omnimind/omnimind-engine/internal/moderation"
	chatService "github.com/omnimind/omnimind-engine/internal/service/chat"
	"github.com/omnimind/omnimind-engine/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc *chatService.Service, gate *moderation.Gate, meditation *content.Meditation, study *content.Study) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	personaHandler := persona.New()
	chatHandler := chathandler.New(chatSvc)
	moderationHandler := moderationhandler.New(gate)
	contentHandler := contenthandler.New(meditation, study)
	streamHandler := stream.New(chatSvc)
	wsHandler := ws.New(chatSvc)

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		moderationHandler.RegisterRoutes(api)
		contentHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)

		api.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			userMessage := r.URL.Query().Get("message")

			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			if err := streamHandler.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
				log.Printf("[stream] error handling request: %v", err)
			}
		})
	})

	return r
}
