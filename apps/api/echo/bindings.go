package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mwalefaith2021/jjschool/core"
)

const defaultListLimit = 50

type cleaner interface {
	Clean()
}

// bindQuery binds the query string into a filter and cleans it.
func bindQuery(ctx echo.Context, filter cleaner) error {
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, filter); err != nil {
		return errors.Wrap(err, "binding query params")
	}
	filter.Clean()
	return nil
}

// queryBool parses an optional boolean query param; nil when absent.
func queryBool(ctx echo.Context, name string) (*bool, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be true or false"})
	}
	return &b, nil
}

// queryLimit parses the `limit` query param, falling back to defaultListLimit.
func queryLimit(ctx echo.Context) (int, error) {
	val := ctx.QueryParam("limit")
	if val == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(val)
	if err != nil || limit < 1 {
		return 0, core.NewValidationError(nil, core.FieldError{Field: "limit", Error: "must be a positive integer"})
	}
	return limit, nil
}
