package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mwalefaith2021/jjschool/core/admission"
	"github.com/mwalefaith2021/jjschool/core/payment"
	"github.com/mwalefaith2021/jjschool/core/user"
)

var errStudentNotInCtx = errors.New("student not found in echo.Context")

type studentApi struct {
	svc          *user.Service
	admissionSvc *admission.Service
	paymentSvc   *payment.Service
	validate     *validator.Validate
}

func registerStudentAPI(g *echo.Group, guards guards, deps Deps) {
	api := studentApi{
		svc:          deps.UserSvc,
		admissionSvc: deps.AdmissionSvc,
		paymentSvc:   deps.PaymentSvc,
		validate:     deps.Validate,
	}

	g.GET("/students", api.query, guards.admins...)
	g.GET("/students-stats", api.stats, guards.admins...)

	// detail endpoints
	self := with(guards.members, selfOrAdminMiddleware("id", api.svc), studentMiddleware(api.svc))
	sg := g.Group("/students/:id")
	sg.GET("", api.retrieve, self...)
	sg.PUT("", api.update, self...)
	sg.GET("/application", api.application, self...)
	sg.GET("/payments", api.payments, self...)
	sg.DELETE("", api.deactivate, with(guards.admins, studentMiddleware(api.svc))...)
}

type (
	studentStats struct {
		user.Stats
		Payments payment.Totals `json:"payments"`
	}

	studentPayments struct {
		Payments []payment.Payment `json:"payments"`
		Totals   payment.Totals    `json:"totals"`
	}
)

func contextStudent(ctx echo.Context) (user.User, error) {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return user.User{}, errors.Wrap(errStudentNotInCtx, "retrieving object from context")
	}
	return usr, nil
}

func (api *studentApi) query(ctx echo.Context) error {
	isActive, err := queryBool(ctx, "isActive")
	if err != nil {
		return err
	}
	filter := user.QueryFilter{Search: ctx.QueryParam("search"), IsActive: isActive}
	filter.Clean()

	students, err := api.svc.QueryStudents(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return respondList(ctx, "Students retrieved successfully", students, len(students))
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	usr, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, "Student retrieved successfully", usr)
}

func (api *studentApi) update(ctx echo.Context) error {
	usr, err := contextStudent(ctx)
	if err != nil {
		return err
	}

	var data user.UpdateStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	usr, err = api.svc.UpdateStudent(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return respond(ctx, http.StatusOK, "Student profile updated successfully", usr)
}

func (api *studentApi) deactivate(ctx echo.Context) error {
	usr, err := contextStudent(ctx)
	if err != nil {
		return err
	}

	usr, err = api.svc.Deactivate(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "deactivating student")
	}
	return respond(ctx, http.StatusOK, "Student deactivated successfully", usr)
}

func (api *studentApi) application(ctx echo.Context) error {
	usr, err := contextStudent(ctx)
	if err != nil {
		return err
	}

	adm, err := api.admissionSvc.GetByEmail(ctx.Request().Context(), usr.Email)
	if err != nil {
		return errors.Wrap(err, "finding student application")
	}
	return respond(ctx, http.StatusOK, "Student application retrieved successfully", adm)
}

func (api *studentApi) payments(ctx echo.Context) error {
	usr, err := contextStudent(ctx)
	if err != nil {
		return err
	}

	payments, err := api.paymentSvc.Query(ctx.Request().Context(), payment.QueryFilter{StudentID: usr.ID})
	if err != nil {
		return errors.Wrap(err, "querying student payments")
	}
	totals, err := api.paymentSvc.Totals(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "computing student payment totals")
	}
	return respondList(ctx, "Payments retrieved", studentPayments{Payments: payments, Totals: totals}, len(payments))
}

func (api *studentApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing student stats")
	}
	totals, err := api.paymentSvc.Totals(ctx.Request().Context(), "")
	if err != nil {
		return errors.Wrap(err, "computing payment totals")
	}
	return respond(ctx, http.StatusOK, "Student statistics retrieved successfully", studentStats{Stats: stats, Payments: totals})
}
