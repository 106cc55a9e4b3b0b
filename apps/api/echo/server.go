package echoapi

import (
	"context"
	"net"
	"net/http"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/announcement"
	"github.com/trezcool/elimu/core/contact"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/report"
	"github.com/trezcool/elimu/core/settings"
	"github.com/trezcool/elimu/core/user"
	"github.com/trezcool/elimu/services/metrics"
	"github.com/trezcool/elimu/services/ratelimit"
)

type (
	// Pinger checks the database connection.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	Deps struct {
		DB              Pinger
		UserSvc         user.ServiceInterface
		CourseSvc       course.ServiceInterface
		AnnouncementSvc announcement.ServiceInterface
		SettingsSvc     settings.ServiceInterface
		ContactSvc      contact.ServiceInterface
		ReportSvc       report.ServiceInterface
		// ResetLimiter throttles the password reset endpoints. Optional.
		ResetLimiter ratelimit.Limiter
		Validate     *validator.Validate
		Translator   ut.Translator
		Logger       core.Logger
		// UploadsDir is served under conf.Uploads.URLPrefix when files are stored locally.
		UploadsDir string
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		conf     *core.Config
		deps     *Deps
		app      *echo.Echo
		shutdown chan<- error
	}
)

var _ Server = (*server)(nil)

// NewServer builds the API server. Fatal errors caught while serving are sent to shutdown (may be nil).
func NewServer(conf *core.Config, shutdown chan<- error, deps *Deps) Server {
	if deps.ResetLimiter == nil {
		deps.ResetLimiter = ratelimit.NewNoop()
	}
	s := &server{
		conf:     conf,
		deps:     deps,
		app:      echo.New(),
		shutdown: shutdown,
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.HideBanner = true
	s.app.Debug = s.conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.IPExtractor = ipExtractor(s.conf.Server.TrustedProxies)

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Pre(authHeaderMiddleware)
	if !s.conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORS())
	if s.conf.Server.BodyLimit != "" {
		s.app.Use(middleware.BodyLimit(s.conf.Server.BodyLimit))
	}
	s.app.Use(metrics.Middleware())

	if s.deps.UploadsDir != "" {
		s.app.Static(s.conf.Uploads.URLPrefix, s.deps.UploadsDir)
	}

	s.app.GET("/", s.home)
	s.app.GET("/healthz", s.health)

	g := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(jwtConfig(s.conf.SecretKey))
	admin := adminMiddleware()

	registerUserAPI(g, jwt, s.deps, s.conf)
	registerCourseAPI(g, jwt, admin, s.deps)
	registerAnnouncementAPI(g, jwt, admin, s.deps)
	registerSettingsAPI(g, jwt, s.deps)
	registerContactAPI(g, s.deps)
	registerAdminAPI(g.Group("/admin", jwt, admin), s.deps)
}

// ipExtractor reads the client IP from X-Forwarded-For only behind the given proxies.
func ipExtractor(trustedProxies []string) echo.IPExtractor {
	if len(trustedProxies) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{echo.TrustLoopback(false), echo.TrustLinkLocal(false), echo.TrustPrivateNet(false)}
	for _, cidr := range trustedProxies {
		if _, ipNet, err := net.ParseCIDR(strings.TrimSpace(cidr)); err == nil {
			opts = append(opts, echo.TrustIPRange(ipNet))
		}
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

func (s *server) Start() error {
	return s.app.Start(s.conf.Server.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) signalShutdown(err error) {
	if s.shutdown != nil {
		select {
		case s.shutdown <- err:
		default:
		}
	}
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+" API!")
}

func (s *server) health(ctx echo.Context) error {
	if err := s.deps.DB.Ping(ctx.Request().Context()); err != nil {
		s.deps.Logger.Error("health check: database unreachable", err)
		return ctx.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
