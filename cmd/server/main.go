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

	"medtracker/internal/auth"
	"medtracker/internal/config"
	"medtracker/internal/database"
	"medtracker/internal/handlers"
	"medtracker/internal/middleware"
	"medtracker/internal/repository"
	"medtracker/internal/schedule"
	"medtracker/internal/services"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Open database
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.RunMigrations(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize security components
	jwtManager := auth.NewJWTManager(cfg.Security.JWTSecret, cfg.Security.SessionDuration)
	rateLimiter := middleware.NewRateLimiter(cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow)
	loginRateLimiter := middleware.NewRateLimiter(cfg.Security.LoginRateLimit, cfg.Security.LoginRateWindow)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)

	// Wire the dose pipeline
	classifier := schedule.Classifier{
		OnTimeWindow: cfg.Schedule.OnTimeWindow,
		SnoozeDelay:  cfg.Schedule.SnoozeDelay,
	}
	processor := schedule.NewProcessor(
		repository.NewReminderRepository(db),
		repository.NewDoseLogRepository(db),
		classifier,
	)
	scheduleService := services.NewScheduleService(db, classifier)
	notificationService := services.NewNotificationService(db)
	auditRepo := repository.NewAuditRepository(db)

	// Background notification sweep and audit log retention
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := services.NewScheduler(notificationService, auditRepo, cfg.Schedule.SweepEvery, cfg.Schedule.AuditRetentionDays)
	go scheduler.Run(ctx)

	// Initialize router
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(middleware.SecurityHeaders(cfg.Server.Environment == "production"))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes (no authentication required)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiter.Middleware)

		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		r.Route("/api/auth", func(r chi.Router) {
			r.With(loginRateLimiter.Middleware).Post("/login", handlers.HandleLogin(db, jwtManager))
			r.With(loginRateLimiter.Middleware).Post("/register", handlers.HandleRegister(db))
		})
	})

	// Protected routes (authentication required)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.RequireAuth)
		r.Use(rateLimiter.Middleware)

		r.Route("/api", func(r chi.Router) {
			// User routes
			r.Get("/auth/me", handlers.HandleGetCurrentUser(db))
			r.Delete("/auth/me", handlers.HandleDeactivateAccount(db))
			r.Post("/auth/logout", handlers.HandleLogout(db))
			r.Post("/auth/refresh", handlers.HandleRefreshToken(db, jwtManager))

			// Medication routes
			r.Route("/medications", func(r chi.Router) {
				r.Get("/", handlers.HandleGetMedications(db))
				r.Post("/", handlers.HandleCreateMedication(db))
				r.Get("/alerts", handlers.HandleGetStockAlerts(db))
				r.Get("/{id}", handlers.HandleGetMedication(db))
				r.Put("/{id}", handlers.HandleUpdateMedication(db))
				r.Delete("/{id}", handlers.HandleDeleteMedication(db))
				r.Post("/{id}/restock", handlers.HandleRestockMedication(db))
				r.Post("/{id}/adjust", handlers.HandleAdjustMedicationStock(db))
				r.Get("/{id}/inventory", handlers.HandleGetInventoryHistory(db))
			})

			// Reminder routes
			r.Route("/reminders", func(r chi.Router) {
				r.Get("/", handlers.HandleGetReminders(db))
				r.Post("/", handlers.HandleCreateReminder(db))
				r.Get("/{id}", handlers.HandleGetReminder(db))
				r.Put("/{id}", handlers.HandleUpdateReminder(db))
				r.Delete("/{id}", handlers.HandleDeleteReminder(db))
				r.Get("/{id}/status", handlers.HandleGetReminderStatus(db, scheduleService))
				r.Patch("/{id}/status", handlers.HandleDoseAction(db, processor))
			})

			// Schedule and reporting routes
			r.Get("/schedule", handlers.HandleGetSchedule(scheduleService))
			r.Get("/schedule/today", handlers.HandleGetSchedule(scheduleService))
			r.Get("/adherence", handlers.HandleGetAdherence(scheduleService))
			r.Get("/export/csv", handlers.HandleExportCSV(scheduleService))
			r.Get("/export/pdf", handlers.HandleExportPDF(scheduleService))

			// Audit trail
			r.Get("/audit", handlers.HandleGetAuditLog(db))

			// Notification routes
			r.Get("/notifications", handlers.HandleGetNotifications(db))
			r.Put("/notifications/{id}/read", handlers.HandleMarkNotificationRead(db))
			r.Put("/notifications/read-all", handlers.HandleMarkAllNotificationsRead(db))
		})
	})

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
