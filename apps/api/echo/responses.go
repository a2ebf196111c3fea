package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mwalefaith2021/jjschool/core/user"
)

type (
	// Response is the envelope of every successful API response.
	Response struct {
		Message string      `json:"message"`
		Count   *int        `json:"count,omitempty"`
		Data    interface{} `json:"data,omitempty"`
	}

	SubmitResponse struct {
		Message           string      `json:"message"`
		ApplicationNumber string      `json:"applicationNumber"`
		Data              interface{} `json:"data"`
	}

	LoginResponse struct {
		Message               string    `json:"message"`
		Token                 string    `json:"token"`
		User                  user.User `json:"user"`
		RequiresPasswordReset bool      `json:"requiresPasswordReset"`
	}
)

func respond(ctx echo.Context, code int, msg string, data interface{}) error {
	return ctx.JSON(code, Response{Message: msg, Data: data})
}

func respondList(ctx echo.Context, msg string, items interface{}, count int) error {
	return ctx.JSON(http.StatusOK, Response{Message: msg, Count: &count, Data: items})
}
