package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mwalefaith2021/jjschool/core/signup"
	"github.com/mwalefaith2021/jjschool/core/user"
)

type signupApi struct {
	svc      *signup.Service
	validate *validator.Validate
}

func registerSignupAPI(g *echo.Group, guards guards, deps Deps) {
	api := signupApi{
		svc:      deps.SignupSvc,
		validate: deps.Validate,
	}

	sg := g.Group("/pending-signups")
	sg.GET("", api.query, guards.admins...)
	sg.POST("", api.create, guards.admins...)
	sg.GET("/:id", api.retrieve, guards.admins...)
	sg.POST("/:id/approve", api.approve, guards.admins...)
	sg.POST("/:id/reject", api.reject, guards.admins...)
}

type approvedSignup struct {
	Signup signup.PendingSignup `json:"signup"`
	User   user.User            `json:"user"`
}

func (api *signupApi) query(ctx echo.Context) error {
	var filter signup.QueryFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}

	signups, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying signups")
	}
	return respondList(ctx, "Pending signups retrieved", signups, len(signups))
}

func (api *signupApi) create(ctx echo.Context) error {
	var data signup.NewSignup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSignup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ps, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating signup")
	}
	return respond(ctx, http.StatusCreated, "Pending signup created", ps)
}

func (api *signupApi) retrieve(ctx echo.Context) error {
	ps, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding signup")
	}
	return respond(ctx, http.StatusOK, "Pending signup retrieved", ps)
}

func (api *signupApi) approve(ctx echo.Context) error {
	ps, usr, err := api.svc.Approve(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "approving signup")
	}
	return respond(ctx, http.StatusOK, "Signup approved and user created", approvedSignup{Signup: ps, User: usr})
}

func (api *signupApi) reject(ctx echo.Context) error {
	var data signup.RejectSignup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RejectSignup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ps, err := api.svc.Reject(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "rejecting signup")
	}
	return respond(ctx, http.StatusOK, "Signup rejected", ps)
}
