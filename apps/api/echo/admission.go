package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mwalefaith2021/jjschool/core/admission"
)

type admissionApi struct {
	svc      *admission.Service
	validate *validator.Validate
}

func registerAdmissionAPI(g *echo.Group, guards guards, deps Deps) {
	api := admissionApi{
		svc:      deps.AdmissionSvc,
		validate: deps.Validate,
	}

	// un-authed endpoints
	g.POST("/submit-application", api.submit)

	g.GET("/applications", api.query, guards.admins...)
	g.GET("/applications-stats", api.stats, guards.admins...)
	g.GET("/applications/:id", api.retrieve, guards.admins...)
	g.PUT("/applications/:id/status", api.updateStatus, guards.admins...)
}

func (api *admissionApi) submit(ctx echo.Context) error {
	var data admission.NewAdmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAdmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	adm, err := api.svc.Submit(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting application")
	}
	return ctx.JSON(http.StatusCreated, SubmitResponse{
		Message:           "Application submitted successfully",
		ApplicationNumber: adm.ApplicationNumber,
		Data:              adm,
	})
}

func (api *admissionApi) query(ctx echo.Context) error {
	var filter admission.QueryFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}

	adms, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying applications")
	}
	return respondList(ctx, "Applications retrieved successfully", adms, len(adms))
}

func (api *admissionApi) retrieve(ctx echo.Context) error {
	adm, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding application")
	}
	return respond(ctx, http.StatusOK, "Application retrieved successfully", adm)
}

func (api *admissionApi) updateStatus(ctx echo.Context) error {
	var data admission.UpdateStatus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStatus")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if data.ReviewedBy == "" {
		if claims, err := getContextClaims(ctx); err == nil {
			data.ReviewedBy = claims.Username
		}
	}

	adm, err := api.svc.UpdateStatus(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating application status")
	}
	return respond(ctx, http.StatusOK, "Application status updated successfully", adm)
}

func (api *admissionApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing application stats")
	}
	return respond(ctx, http.StatusOK, "Statistics retrieved successfully", stats)
}
