package api

import (
	"net/http"

	"codeshare/internal/config"
	"codeshare/internal/repository"
	"codeshare/internal/service"
	"codeshare/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Services struct {
	Identity *service.IdentityService
	Shares   *service.ShareService
	Stats    *service.StatsService
	Health   repository.Pinger
}

type Server struct {
	config   *config.Config
	identity *service.IdentityService
	shares   *service.ShareService
	stats    *service.StatsService
	health   repository.Pinger
	wsHub    *websocket.Hub
	log      logrus.FieldLogger
}

func NewServer(cfg *config.Config, svc Services, wsHub *websocket.Hub, log logrus.FieldLogger) *Server {
	return &Server{
		config:   cfg,
		identity: svc.Identity,
		shares:   svc.Shares,
		stats:    svc.Stats,
		health:   svc.Health,
		wsHub:    wsHub,
		log:      log,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: s.log, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	r.Get("/health", s.HealthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", s.ServeWsHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(s.config.Server.RequestTimeout))

		r.Post("/register", s.RegisterHandler)
		r.Post("/login", s.LoginHandler)
		r.Get("/share/{code}/info", s.ShareInfoHandler)
		r.Get("/share/{code}", s.FetchShareHandler)

		r.Group(func(r chi.Router) {
			r.Use(s.AuthMiddleware)
			r.Get("/me", s.GetCurrentUserHandler)
			r.Post("/upload", s.UploadFileHandler)
			r.Post("/text", s.CreateTextHandler)
			r.Get("/shares", s.ListMySharesHandler)
			r.Delete("/share/{code}", s.DeleteShareHandler)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.AuthMiddleware)
			r.Use(s.AdminMiddleware)
			r.Get("/stats", s.StatsHandler)
			r.Get("/shares", s.ListAllSharesHandler)
			r.Get("/users", s.ListUsersHandler)
		})
	})

	return r
}

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// @Summary      Health check
// @Description  Reports whether the repository backend answers.
// @Tags         system
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Failure      503  {object}  HealthResponse
// @Router       /health [get]
func (s *Server) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.health.Ping(r.Context()); err != nil {
		s.log.WithError(err).Warn("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
