package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lounge-pos/api/internal/config"
	"github.com/lounge-pos/api/internal/database"
	"github.com/lounge-pos/api/internal/enum"
	"github.com/lounge-pos/api/internal/handler"
	mw "github.com/lounge-pos/api/internal/middleware"
	"github.com/lounge-pos/api/internal/service"
	"github.com/lounge-pos/api/internal/session"
	"github.com/lounge-pos/api/internal/ws"
	"github.com/rs/zerolog/log"
)

// New creates a Chi router with all application routes wired up.
// Rep routes live under /cart, bar staff routes under /bar.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, sessions *session.Manager, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(mw.RequestLogger(log.Logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Get("/health", handler.Health(pool))

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (auth via ?token=)
	r.Get("/ws/notifications", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	barService := service.NewBarService(pool, pool, func(db database.DBTX) service.BarStore {
		return database.New(db)
	})
	modService := service.NewModificationService(pool, pool, func(db database.DBTX) service.ModificationStore {
		return database.New(db)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Route("/cart", func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleSalesRep, enum.UserRoleAdmin))
			handler.NewCartHandler(sessions, modService).RegisterRoutes(r)
		})

		r.Route("/bar", func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleBar, enum.UserRoleAdmin))
			handler.NewBarHandler(barService, modService, sessions).RegisterRoutes(r)
		})
	})

	return r
}
