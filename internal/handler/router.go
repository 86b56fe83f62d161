package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/z-blog/backend/internal/feed"
	feedHandler "github.com/zhouzirui/z-blog/backend/internal/handler/feed"
	postHandler "github.com/zhouzirui/z-blog/backend/internal/handler/post"
	middlewarePkg "github.com/zhouzirui/z-blog/backend/internal/middleware"
	"github.com/zhouzirui/z-blog/backend/pkg/utils"
)

// MountPath is the prefix every API route lives under.
const MountPath = "/api"

// NewRouter wires HTTP routes to core services. hub may be nil when the
// change feed is disabled.
func NewRouter(posts postHandler.PostService, hub *feed.Hub, heartbeat time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route(MountPath, func(api chi.Router) {
		if hub != nil {
			feedHandler.New(hub, heartbeat).RegisterRoutes(api)
		} else {
			disabled := func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusNotImplemented, "post feed disabled")
			}
			api.Get("/posts/events", disabled)
			api.Get("/posts/stream", disabled)
		}

		postHandler.New(posts, MountPath).RegisterRoutes(api)
	})

	return r
}
