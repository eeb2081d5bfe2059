package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/dentalcare/clinic-visits/docs"
	"github.com/dentalcare/clinic-visits/internal/api/handler"
	"github.com/dentalcare/clinic-visits/internal/api/middleware"
	"github.com/dentalcare/clinic-visits/internal/core/domain"
	"github.com/dentalcare/clinic-visits/internal/core/ports"
)

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Logger    zerolog.Logger
	JWTSecret string
	Brand     string

	Auth   ports.AuthService
	Users  ports.UserService
	Visits ports.VisitService
	Mailer ports.MailSender

	// Health lists the dependencies checked by the readiness probe.
	Health map[string]handler.Pinger

	// Metrics receives the HTTP collectors and backs /metrics. Nil means the
	// default Prometheus registry, which also holds the domain metrics.
	Metrics *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.CORS())
	e.Use(requestLogger(d.Logger))

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if d.Metrics != nil {
		registerer, gatherer = d.Metrics, d.Metrics
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "dentalcare",
		Registerer: registerer,
	}))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.Auth)
	userHandler := handler.NewUserHandler(d.Users)
	visitHandler := handler.NewVisitHandler(d.Visits)
	mailHandler := handler.NewMailHandler(d.Mailer, d.Brand)

	authenticated := []echo.MiddlewareFunc{middleware.Auth(d.JWTSecret), middleware.LoadActor(d.Auth)}
	admin := middleware.RBAC(domain.RoleAdmin)
	clinicOrAdmin := middleware.RBAC(domain.RoleClinic, domain.RoleAdmin)
	anyRole := middleware.RBAC(domain.RoleAdmin, domain.RoleClinic, domain.RolePatient)

	// --- Users ---
	e.POST("/users", userHandler.Register, middleware.OptionalAuth(d.JWTSecret), middleware.LoadActor(d.Auth))
	e.POST("/users/login", authHandler.Login)

	users := e.Group("/users", authenticated...)
	users.GET("", userHandler.List, admin)
	users.GET("/me", userHandler.Me)
	users.PUT("/change-password", userHandler.ChangePassword)
	users.GET("/clinic/:clinicId/patients", userHandler.ClinicPatients, clinicOrAdmin)
	users.POST("/patient/:patientId/assign-clinic/:clinicId", userHandler.AssignClinic, admin)
	users.DELETE("/patient/:patientId/clinic", userHandler.RemoveClinic, admin)
	users.GET("/:id", userHandler.Get)
	users.PUT("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Delete)

	// --- Visits ---
	visits := e.Group("/visits", authenticated...)
	visits.POST("", visitHandler.Create, anyRole)
	visits.GET("", visitHandler.List, admin)
	visits.GET("/occupied", visitHandler.Occupied)
	visits.GET("/clinic/:clinicId", visitHandler.ListByClinic, clinicOrAdmin)
	visits.GET("/patient/:patientId", visitHandler.ListByPatient, anyRole)
	visits.GET("/:id", visitHandler.Get)
	visits.PUT("/:id", visitHandler.Update, anyRole)
	visits.PUT("/:id/status", visitHandler.UpdateStatus, clinicOrAdmin)
	visits.DELETE("/:id", visitHandler.Delete, anyRole)

	// --- Mail ---
	e.POST("/mail/test", mailHandler.Test, append(authenticated, admin)...)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(d.Health)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Operations ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/docs/*", echoSwagger.WrapHandler)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/health"
		},
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil || v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
