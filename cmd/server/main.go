package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bildung/internal/api"
	"bildung/internal/app/service"
	"bildung/internal/common/security"
	"bildung/internal/domain/repository"
	"bildung/internal/platform/cache"
	"bildung/internal/platform/config"
	"bildung/internal/platform/database"
)

func main() {
	// 1. Load Configuration
	config.Load()
	fmt.Println("Configuration loaded.")

	// 2. Initialize Cookie Codec
	security.InitCookies()
	fmt.Println("Cookie codec initialized.")

	// 3. Initialize Database
	database.Connect()
	defer database.Close()
	database.Migrate()
	fmt.Println("Database ready.")

	// 4. Initialize Redis (login throttle only)
	var throttle *service.LoginThrottle
	if config.AppConfig.LoginThrottleEnabled {
		cache.ConnectRedis()
		defer cache.CloseRedis()
		throttle = service.NewLoginThrottle(cache.RDB,
			config.AppConfig.LoginThrottleAttempts, config.AppConfig.LoginThrottleWindow)
	}

	// 5. Initialize Repositories
	sessionRepo := repository.NewPgSessionRepository(database.DB)
	sheetRepo := repository.NewPgSheetRepository(database.DB)
	solutionRepo := repository.NewPgSolutionRepository(database.DB)

	// 6. Initialize Services
	authService := service.NewAuthService(sessionRepo, throttle, config.AppConfig.SessionExpiry)
	sheetService := service.NewSheetService(sheetRepo)
	solutionService := service.NewSolutionService(solutionRepo, sheetRepo)

	// 7. Initialize Router & HTTP Server
	router := api.NewRouter(authService, sheetService, solutionService)

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 8. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", config.AppConfig.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", config.AppConfig.APIPort, err)
		}
	}()
	log.Println("Server started successfully.")

	<-stop // Wait for interrupt signal

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server stopped gracefully.")
}
