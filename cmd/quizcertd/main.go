package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	api "github.com/winbro-training/quizcert/internal/api/http"
	"github.com/winbro-training/quizcert/internal/attempt"
	auth "github.com/winbro-training/quizcert/internal/auth/middleware"
	"github.com/winbro-training/quizcert/internal/cert"
	"github.com/winbro-training/quizcert/internal/config"
	"github.com/winbro-training/quizcert/internal/db"
	"github.com/winbro-training/quizcert/internal/event"
	"github.com/winbro-training/quizcert/internal/grading"
	"github.com/winbro-training/quizcert/internal/rbac"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	seedAdmin(ctx, dbh, cfg)

	// --- Events ---
	var pub event.Publisher = event.Nop{}
	if cfg.AMQPURL != "" {
		p, err := event.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("amqp connect failed: %v", err)
		}
		defer p.Close()
		pub = p
	}
	eventLog := event.NewLog(dbh, cfg.SiteID)

	// --- Services ---
	certStore := cert.NewSQLStore(dbh)
	certSvc := cert.NewService(certStore, cfg.PublicURL, time.Now)
	grader := grading.NewEngine()
	svc := attempt.NewService(attempt.NewSQLStore(dbh), grader, certSvc, eventLog, pub, time.Now)

	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))
	}

	// Public verification: no token, no auth, fails closed.
	r.Get("/certificates/verify/{token}", api.VerifyCertificateHandler(certSvc))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(rbac.Require("quiz:create")).
			Post("/quizzes", api.CreateQuizHandler(svc))
		pr.With(rbac.Require("quiz:publish")).
			Post("/quizzes/{quizID}/publish", api.PublishQuizHandler(svc))
		pr.With(rbac.Require("quiz:view")).
			Get("/quizzes/{quizID}", api.GetQuizHandler(svc))

		pr.With(rbac.Require("attempt:create")).
			Post("/quiz-attempts", api.CreateAttemptHandler(svc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/quiz-attempts", api.ListAttemptsHandler(svc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/quiz-attempts/{attemptID}", api.GetAttemptHandler(svc))
		pr.With(rbac.Require("attempt:save")).
			Patch("/quiz-attempts/{attemptID}", api.UpdateAttemptHandler(svc))
		pr.With(rbac.Require("attempt:submit")).
			Post("/quiz-attempts/{attemptID}/submit", api.SubmitAttemptHandler(svc))

		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/quiz-certificate/{attemptID}", api.QuizCertificatePageHandler(svc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/quiz-feedback", api.ListFeedbackHandler(svc))

		pr.With(rbac.RequireAny("cert:view-own", "cert:view-all")).
			Get("/certificates", api.ListCertificatesHandler(certStore))
		pr.With(rbac.RequireAny("cert:view-own", "cert:view-all")).
			Get("/certificates/{certID}", api.GetCertificateHandler(certStore))
		pr.With(rbac.Require("cert:view-own")).
			Post("/certificates/{certID}/share", api.ShareCertificateHandler(certStore))
		pr.With(rbac.Require("cert:revoke")).
			Post("/certificates/{certID}/revoke", api.RevokeCertificateHandler(svc))

		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", api.ChangePasswordHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}

// seedAdmin makes sure a bootstrap admin exists so a fresh install can log in.
func seedAdmin(ctx context.Context, dbh *sql.DB, cfg config.Config) {
	if cfg.AdminUser == "" || cfg.AdminPassHash == "" {
		return
	}
	_, err := dbh.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role)
		VALUES ($1, $2, $3, 'admin')
		ON CONFLICT (username) DO NOTHING`,
		uuid.NewString(), cfg.AdminUser, cfg.AdminPassHash)
	if err != nil {
		log.Fatalf("seed admin user: %v", err)
	}
}
