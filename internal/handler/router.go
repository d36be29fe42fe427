package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/atlas/backend/internal/handler/chat"
	"github.com/zhouzirui/atlas/backend/internal/handler/practice"
	"github.com/zhouzirui/atlas/backend/internal/handler/progress"
	"github.com/zhouzirui/atlas/backend/internal/handler/speech"
	"github.com/zhouzirui/atlas/backend/internal/handler/stream"
	"github.com/zhouzirui/atlas/backend/internal/handler/tutor"
	"github.com/zhouzirui/atlas/backend/internal/handler/voice"
	middlewarePkg "github.com/zhouzirui/atlas/backend/internal/middleware"
	tutorModel "github.com/zhouzirui/atlas/backend/internal/model/tutor"
	chatService "github.com/zhouzirui/atlas/backend/internal/service/chat"
	practiceService "github.com/zhouzirui/atlas/backend/internal/service/practice"
	progressService "github.com/zhouzirui/atlas/backend/internal/service/progress"
	voiceService "github.com/zhouzirui/atlas/backend/internal/service/voice"
	"github.com/zhouzirui/atlas/backend/pkg/utils"
)

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies carries everything the routes need. Practice, Speech and
// Voice are nil when no model provider is configured.
type Dependencies struct {
	Tutors         tutorModel.Store
	Store          Pinger
	Chat           *chatService.Service
	Progress       *progressService.Service
	Practice       *practiceService.Service
	Speech         speech.SpeechService
	Voice          voiceService.LiveConnector
	VoiceOptions   voiceService.Options
	AllowedOrigins []string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		handleHealth(w, r, deps.Store)
	})

	r.Route("/api", func(api chi.Router) {
		tutor.New(deps.Tutors).RegisterRoutes(api)
		chat.New(deps.Chat, deps.Progress).RegisterRoutes(api)
		stream.New(deps.Chat).RegisterRoutes(api)
		progress.New(deps.Progress).RegisterRoutes(api)

		if deps.Practice != nil {
			practice.New(deps.Practice).RegisterRoutes(api)
		} else {
			api.HandleFunc("/practice/*", func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "practice unavailable")
			})
		}

		speech.New(deps.Speech, deps.Chat).RegisterRoutes(api)

		var sessions voice.SessionResolver
		if deps.Chat != nil {
			sessions = deps.Chat
		}
		voice.NewWebSocketHandler(deps.Voice, sessions, deps.Tutors, deps.VoiceOptions).RegisterRoutes(api)
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request, store Pinger) {
	if store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			log.Printf("[health] store ping failed: %v", err)
			utils.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
