package echoapi

import (
	"context"
	"net/http"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mwalefaith2021/jjschool/core"
	"github.com/mwalefaith2021/jjschool/core/user"
	"github.com/mwalefaith2021/jjschool/storage/database"
)

const healthTimeout = 2 * time.Second

type systemApi struct {
	conf       *core.Config
	store      *database.Store
	usrSvc     *user.Service
	mailSvc    core.EmailService
	deliveries core.DeliveryLog
	validate   *validator.Validate
}

func registerSystemAPI(e *echo.Echo, guards guards, deps Deps) {
	api := systemApi{
		conf:       deps.Conf,
		store:      deps.Store,
		usrSvc:     deps.UserSvc,
		mailSvc:    deps.MailSvc,
		deliveries: deps.Deliveries,
		validate:   deps.Validate,
	}

	e.GET("/", api.home)
	e.GET("/health", api.health)
	e.GET("/admin-seed-status", api.adminSeedStatus)

	e.GET("/api/notifications", api.notifications, with(guards.admins, noCacheMiddleware)...)
	e.POST("/api/test-email", api.testEmail, with(guards.admins, noCacheMiddleware)...)
}

type (
	healthResponse struct {
		Status   string `json:"status"`
		Database string `json:"database"`
		Engine   string `json:"engine"`
		Build    string `json:"build"`
	}

	adminSeedResponse struct {
		Message     string `json:"message"`
		AdminSeeded bool   `json:"adminSeeded"`
	}

	TestEmailRequest struct {
		To string `json:"to" validate:"required,email"`
	}
)

func (te *TestEmailRequest) Validate(validate *validator.Validate) error {
	te.To = core.CleanString(te.To, true /* lower */)
	return validate.Struct(te)
}

func (api *systemApi) home(ctx echo.Context) error {
	return respond(ctx, http.StatusOK, api.conf.AppName+" API is running", nil)
}

func (api *systemApi) health(ctx echo.Context) error {
	c, cancel := context.WithTimeout(ctx.Request().Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "connected", Engine: api.store.Engine, Build: api.conf.Build}
	code := http.StatusOK
	if err := api.store.Ping(c); err != nil {
		ctx.Logger().Warnf("health check: %v", err)
		resp.Status = "degraded"
		resp.Database = "disconnected"
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, resp)
}

func (api *systemApi) adminSeedStatus(ctx echo.Context) error {
	seeded, err := api.usrSvc.AdminSeeded(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "checking admin status")
	}
	msg := "Admin account is seeded"
	if !seeded {
		msg = "No active admin account"
	}
	return ctx.JSON(http.StatusOK, adminSeedResponse{Message: msg, AdminSeeded: seeded})
}

func (api *systemApi) notifications(ctx echo.Context) error {
	limit, err := queryLimit(ctx)
	if err != nil {
		return err
	}
	deliveries := api.deliveries.Deliveries(limit)
	return respondList(ctx, "Notifications retrieved", deliveries, len(deliveries))
}

type testEmailData struct {
	SentAt time.Time
}

func (api *systemApi) testEmail(ctx echo.Context) error {
	var data TestEmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TestEmailRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	api.mailSvc.SendMessages(core.NewEmailMessage(
		mail.Address{Address: data.To},
		"Test email",
		"test_email",
		testEmailData{SentAt: time.Now()},
	))
	return respond(ctx, http.StatusAccepted, "Test email queued for "+data.To+", check /api/notifications for the outcome", nil)
}
