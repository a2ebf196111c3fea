package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mwalefaith2021/jjschool/core/fee"
)

type feeApi struct {
	svc      *fee.Service
	validate *validator.Validate
}

func registerFeeAPI(g *echo.Group, guards guards, deps Deps) {
	api := feeApi{
		svc:      deps.FeeSvc,
		validate: deps.Validate,
	}

	g.GET("/fees", api.query, guards.admins...)
	g.POST("/fees", api.create, guards.admins...)
	g.GET("/fees-stats", api.stats, guards.admins...)
	g.PUT("/fees/:id/payment", api.recordPayment, guards.admins...)
	g.GET("/fees/student/:studentId", api.queryStudent, with(guards.members, selfOrAdminMiddleware("studentId", deps.UserSvc))...)
}

func (api *feeApi) query(ctx echo.Context) error {
	var filter fee.QueryFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}

	fees, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying fees")
	}
	return respondList(ctx, "Fees retrieved successfully", fees, len(fees))
}

func (api *feeApi) queryStudent(ctx echo.Context) error {
	fees, err := api.svc.Query(ctx.Request().Context(), fee.QueryFilter{StudentID: ctx.Param("studentId")})
	if err != nil {
		return errors.Wrap(err, "querying student fees")
	}
	return respondList(ctx, "Student fees retrieved successfully", fees, len(fees))
}

func (api *feeApi) create(ctx echo.Context) error {
	var data fee.NewFee
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFee")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	f, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating fee")
	}
	return respond(ctx, http.StatusCreated, "Fee created successfully", f)
}

func (api *feeApi) recordPayment(ctx echo.Context) error {
	var data fee.RecordPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RecordPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	f, err := api.svc.RecordPayment(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "recording fee payment")
	}
	return respond(ctx, http.StatusOK, "Payment recorded successfully", f)
}

func (api *feeApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing fee stats")
	}
	return respond(ctx, http.StatusOK, "Fee statistics retrieved successfully", stats)
}
