package api

import (
	"net/http"
	"time"

	"bildung/internal/api/handler"
	"bildung/internal/api/middleware"
	"bildung/internal/app/service"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(
	authService *service.AuthService,
	sheetService *service.SheetService,
	solutionService *service.SolutionService,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Public health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(v1 chi.Router) {
		authHandler := handler.NewAuthHandler(authService)
		v1.Route("/auth", authHandler.RegisterRoutes)

		sheetHandler := handler.NewSheetHandler(sheetService)
		solutionHandler := handler.NewSolutionHandler(solutionService)

		// Everything below requires a valid session; role gates are per
		// route group.
		v1.Group(func(authed chi.Router) {
			authed.Use(middleware.Authenticator(authService))
			authed.Route("/sheets", func(sheets chi.Router) {
				sheetHandler.RegisterRoutes(sheets)
				solutionHandler.RegisterSheetRoutes(sheets)
			})
			solutionHandler.RegisterOverviewRoutes(authed)
		})
	})

	return r
}
