package main

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/skillpath/backend/internal/auth"
	"github.com/skillpath/backend/internal/config"
	"github.com/skillpath/backend/internal/database"
	"github.com/skillpath/backend/internal/middleware"
	"github.com/skillpath/backend/internal/progression"
	"github.com/skillpath/backend/internal/rates"
	"github.com/skillpath/backend/internal/telemetry"
	"github.com/skillpath/backend/internal/verify"
)

func main() {
	cfg := config.Load()

	if cfg.JWTSecret != "" {
		auth.JWTSecret = []byte(cfg.JWTSecret)
	}

	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Reward rates: defaults overlaid with the optional config file
	rateTable, err := rates.Load(cfg.RateTablePath)
	if err != nil {
		log.Fatalf("Failed to load rate table: %v", err)
	}

	// Initialize handlers
	authHandler := auth.NewHandler(db)

	progressionStore := progression.NewStore(db)
	progressionService := progression.NewService(progressionStore, rateTable, cfg.StreakScanDays)
	progressionHandler := progression.NewHandler(progressionService)

	verifyStore := verify.NewStore(db)
	verifyService := verify.NewService(verifyStore)
	verifyHandler := verify.NewHandler(verifyService)

	// Setup router
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware)
	protected.HandleFunc("/auth/me", authHandler.GetCurrentUser).Methods("GET")

	protected.HandleFunc("/sessions/quiz", progressionHandler.SubmitQuizSession).Methods("POST")
	protected.HandleFunc("/sessions/course", progressionHandler.SubmitCourseSession).Methods("POST")
	protected.HandleFunc("/courses/{courseID}/complete", progressionHandler.CompleteCourse).Methods("POST")
	protected.HandleFunc("/progression", progressionHandler.GetProgression).Methods("GET")
	protected.HandleFunc("/progression/ledger", progressionHandler.GetLedger).Methods("GET")
	protected.HandleFunc("/integrity", verifyHandler.GetIntegrity).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Prometheus metrics
	r.Handle("/metrics", telemetry.Handler()).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	handler := c.Handler(r)

	log.Printf("Server starting on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
