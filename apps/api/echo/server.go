package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/akademik"
	"github.com/smkgaleri/galeri/core/penilaian"
	"github.com/smkgaleri/galeri/core/proyek"
	"github.com/smkgaleri/galeri/core/user"
)

type (
	ServerDeps struct {
		Validate     *validator.Validate
		Translator   ut.Translator
		UserSvc      user.ServiceInterface
		AkademikSvc  *akademik.Service
		ProyekSvc    *proyek.Service
		PenilaianSvc *penilaian.Service
	}

	Server struct {
		conf      *core.Config
		logger    core.Logger
		deps      ServerDeps
		app       *echo.Echo
		jwtConfig middleware.JWTConfig
		errors    chan error
		shutdown  chan os.Signal
	}
)

func NewServer(conf *core.Config, logger core.Logger, deps ServerDeps) *Server {
	s := &Server{
		conf:      conf,
		logger:    logger,
		deps:      deps,
		app:       echo.New(),
		jwtConfig: newJWTConfig(conf),
		errors:    make(chan error, 1),
		shutdown:  make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Debug = s.conf.Debug
	s.app.Logger.SetLevel(log.INFO)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{s.conf.FrontendBaseURL},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, s.deps.Translator, s.signalShutdown)

	s.app.GET("/", home)

	g := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(s.jwtConfig)
	authed := authMiddleware(s.deps.UserSvc)

	s.registerAuthAPI(g, jwt, authed)
	s.registerUserAPI(g, jwt, authed)
	s.registerAkademikAPI(g, jwt, authed)
	s.registerProyekAPI(g, jwt, authed)
	s.registerPenilaianAPI(g, jwt, authed)
}

func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Errors reports fatal server errors.
func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal fires on SIGINT, SIGTERM or when a handler hits a core shutdown error.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	signal.Stop(s.shutdown)
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Galeri Sekolah API")
}
