package server

import (
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"biasmeter/app/config"
	"biasmeter/app/service/chart"
	"biasmeter/app/service/diagnosis"
	"biasmeter/app/service/session"
	"biasmeter/app/util/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/template/html/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/do"
)

const (
	cookieName      = "biasmeter_session"
	shutdownTimeout = 10 * time.Second
	readTimeout     = 30 * time.Second
)

//go:embed views/*.html
var viewsFS embed.FS

type Server struct {
	cfg          *config.Config
	sessions     *session.Store
	diagnosisSvc *diagnosis.Service
	chartSvc     *chart.Service

	app      *fiber.App
	cookies  *fibersession.Store
	validate *validator.Validate
}

func New(di *do.Injector) (*Server, error) {
	return NewServer(
		do.MustInvoke[*config.Config](di),
		do.MustInvoke[*session.Store](di),
		do.MustInvoke[*diagnosis.Service](di),
		do.MustInvoke[*chart.Service](di),
	)
}

func NewServer(
	cfg *config.Config,
	sessions *session.Store,
	diagnosisSvc *diagnosis.Service,
	chartSvc *chart.Service,
) (*Server, error) {
	views, err := fs.Sub(viewsFS, "views")
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:          cfg,
		sessions:     sessions,
		diagnosisSvc: diagnosisSvc,
		chartSvc:     chartSvc,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		cookies: fibersession.New(fibersession.Config{
			Expiration:     cfg.Session.Expiration,
			KeyLookup:      "cookie:" + cookieName,
			CookieSecure:   cfg.HTTP.CookieSecure,
			CookieHTTPOnly: true,
			CookieSameSite: "Lax",
		}),
	}

	s.app = fiber.New(fiber.Config{
		Views:                 html.NewFileSystem(http.FS(views), ".html"),
		ErrorHandler:          s.handleError,
		ReadTimeout:           readTimeout,
		DisableStartupMessage: true,
	})

	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(logRequests)

	s.app.Get("/", s.handleIndex)
	s.app.Post("/diagnose", s.handleDiagnoseForm)
	s.app.Post("/api/diagnose", s.handleDiagnoseAPI)
	s.app.Get("/api/session", s.handleSession)
	s.app.Get("/chart.svg", s.handleChart(chart.FormatSVG))
	s.app.Get("/chart.png", s.handleChart(chart.FormatPNG))
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	return s, nil
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen() error {
	slog.Info("HTTP server listening", "addr", s.cfg.HTTP.Listen)

	return s.app.Listen(s.cfg.HTTP.Listen)
}

func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(shutdownTimeout)
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	if code >= fiber.StatusInternalServerError {
		slog.Error("Request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	slog.Debug("HTTP request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"request_id", c.Locals(requestid.ConfigDefault.ContextKey),
		"duration", time.Since(start),
	)

	return err
}
