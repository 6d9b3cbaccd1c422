package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fitness-accounts/internal/config"
	"fitness-accounts/internal/handler"
	"fitness-accounts/internal/middleware"
)

func New(
	cfg *config.Config,
	authMiddleware *middleware.AuthMiddleware,
	accountHandler *handler.AccountHandler,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigin))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/users", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Post("/signup", accountHandler.Signup)
		api.Post("/login", accountHandler.Login)
		api.Post("/logout", accountHandler.Logout)
		api.Post("/refresh-token", accountHandler.Refresh)
		api.With(authMiddleware.RequireAuth).Patch("/update-password", accountHandler.UpdatePassword)
		api.With(authMiddleware.RequireAuth).Get("/profile", accountHandler.GetProfile)
		api.With(authMiddleware.RequireAuth).Put("/profile", accountHandler.UpdateProfile)
		api.With(authMiddleware.RequireAuth).Delete("/delete-account", accountHandler.DeleteAccount)
	})

	return r
}
