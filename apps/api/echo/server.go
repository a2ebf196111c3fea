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
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/mwalefaith2021/jjschool/core"
	"github.com/mwalefaith2021/jjschool/core/admission"
	"github.com/mwalefaith2021/jjschool/core/fee"
	"github.com/mwalefaith2021/jjschool/core/payment"
	"github.com/mwalefaith2021/jjschool/core/signup"
	"github.com/mwalefaith2021/jjschool/core/user"
	metricsvc "github.com/mwalefaith2021/jjschool/services/metrics"
	"github.com/mwalefaith2021/jjschool/storage/database"
)

type (
	Deps struct {
		dig.In

		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Store      *database.Store

		UserSvc      *user.Service
		AdmissionSvc *admission.Service
		SignupSvc    *signup.Service
		PaymentSvc   *payment.Service
		FeeSvc       *fee.Service
		MailSvc      core.EmailService
		Deliveries   core.DeliveryLog

		Metrics *metricsvc.Metrics `optional:"true"`
	}

	Server struct {
		deps     Deps
		app      *echo.Echo
		revoked  *revocationList
		errors   chan error
		shutdown chan os.Signal
	}

	// route guards
	guards struct {
		authed  []echo.MiddlewareFunc // valid token, even with a pending password reset
		members []echo.MiddlewareFunc // any user done with the password reset
		admins  []echo.MiddlewareFunc
	}
)

// with returns base followed by more, leaving base untouched.
func with(base []echo.MiddlewareFunc, more ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	mws := make([]echo.MiddlewareFunc, 0, len(base)+len(more))
	mws = append(mws, base...)
	return append(mws, more...)
}

func NewServer(deps Deps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		revoked:  newRevocationList(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if s.deps.Metrics != nil {
		s.app.Use(metricsMiddleware(s.deps.Metrics))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: conf.Server.AllowedOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	jwt := jwtMiddleware(conf, s.revoked)
	g := guards{
		authed:  []echo.MiddlewareFunc{jwt},
		members: []echo.MiddlewareFunc{jwt, passwordResetMiddleware},
		admins:  []echo.MiddlewareFunc{jwt, passwordResetMiddleware, adminMiddleware},
	}

	registerSystemAPI(s.app, g, s.deps)

	api := s.app.Group("/api", noCacheMiddleware)
	registerAdmissionAPI(api, g, s.deps)
	registerSignupAPI(api, g, s.deps)
	registerUserAPI(api, g, s.deps, s.revoked)
	registerStudentAPI(api, g, s.deps)
	registerPaymentAPI(api, g, s.deps)
	registerFeeAPI(api, g, s.deps)
}

// Start blocks serving HTTP; failures are reported on Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}
