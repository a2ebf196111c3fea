package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mwalefaith2021/jjschool/core"
	"github.com/mwalefaith2021/jjschool/core/user"
)

type userApi struct {
	svc      *user.Service
	conf     *core.Config
	validate *validator.Validate
	revoked  *revocationList
}

func registerUserAPI(g *echo.Group, guards guards, deps Deps, revoked *revocationList) {
	api := userApi{
		svc:      deps.UserSvc,
		conf:     deps.Conf,
		validate: deps.Validate,
		revoked:  revoked,
	}

	// un-authed endpoints
	g.POST("/login", api.login)

	// allowed while a password reset is pending
	g.POST("/change-password", api.changePassword, guards.authed...)
	g.GET("/verify", api.verify, guards.authed...)
	g.POST("/logout", api.logout, guards.authed...)

	g.POST("/token-refresh", api.refreshToken, guards.members...)

	g.POST("/register", api.create, guards.admins...)
	g.POST("/users/:id/reset-password", api.resetPassword, guards.admins...)
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	return api.tokenResponse(ctx, "Login successful", usr)
}

func (api *userApi) tokenResponse(ctx echo.Context, msg string, usr user.User, origIat ...int64) error {
	token, err := GenerateToken(api.conf, GetUserClaims(api.conf, usr, origIat...))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{
		Message:               msg,
		Token:                 token,
		User:                  usr,
		RequiresPasswordReset: usr.RequiresPasswordReset,
	})
}

func (api *userApi) changePassword(ctx echo.Context) error {
	var data user.ChangePassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	usr, err := getContextUser(ctx, api.svc, claims)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	usr, err = api.svc.ChangePassword(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "changing password")
	}
	// the old token still carries the previous reset flag
	api.revoked.revoke(claims.ID, claims.ExpiresAt.Time)
	return api.tokenResponse(ctx, "Password changed successfully", usr, claims.OrigIssuedAt)
}

func (api *userApi) verify(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return respond(ctx, http.StatusOK, "Token is valid", usr)
}

func (api *userApi) logout(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	api.revoked.revoke(claims.ID, claims.ExpiresAt.Time)
	return respond(ctx, http.StatusOK, "Logged out successfully", nil)
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, usr, err := refreshToken(ctx, api.conf, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{
		Message:               "Token refreshed",
		Token:                 token,
		User:                  usr,
		RequiresPasswordReset: usr.RequiresPasswordReset,
	})
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return respond(ctx, http.StatusCreated, "User registered successfully", usr)
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	usr, err := api.svc.ResetPassword(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return respond(ctx, http.StatusOK, "Password reset and email sent", usr)
}
