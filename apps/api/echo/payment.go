package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mwalefaith2021/jjschool/core/payment"
	"github.com/mwalefaith2021/jjschool/core/user"
)

type paymentApi struct {
	svc      *payment.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerPaymentAPI(g *echo.Group, guards guards, deps Deps) {
	api := paymentApi{
		svc:      deps.PaymentSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	g.POST("/payments", api.submit, guards.members...)
	g.GET("/payments", api.query, guards.admins...)
	g.GET("/payments-stats", api.stats, guards.admins...)
	g.PUT("/payments/:id/status", api.updateStatus, guards.admins...)
}

func (api *paymentApi) submit(ctx echo.Context) error {
	var data payment.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}

	// students only pay for themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !claims.IsAdmin() {
		// tokens outlive deactivation
		if _, err = getContextUser(ctx, api.usrSvc, claims); err != nil {
			return err
		}
		if data.StudentID == "" {
			data.StudentID = claims.Subject
		} else if data.StudentID != claims.Subject {
			return errHttpForbidden
		}
	}

	if err = data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Submit(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting payment")
	}
	return respond(ctx, http.StatusCreated, "Payment recorded", p)
}

func (api *paymentApi) query(ctx echo.Context) error {
	var filter payment.QueryFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}

	payments, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	return respondList(ctx, "Payments retrieved", payments, len(payments))
}

func (api *paymentApi) updateStatus(ctx echo.Context) error {
	var data payment.UpdateStatus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStatus")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.UpdateStatus(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating payment status")
	}
	return respond(ctx, http.StatusOK, "Payment updated", p)
}

func (api *paymentApi) stats(ctx echo.Context) error {
	totals, err := api.svc.Totals(ctx.Request().Context(), "")
	if err != nil {
		return errors.Wrap(err, "computing payment totals")
	}
	return respond(ctx, http.StatusOK, "Payment statistics retrieved successfully", totals)
}
