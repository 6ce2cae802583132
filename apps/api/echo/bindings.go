package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tutora/backend/core"
)

const orderingParam = "ordering"

// parseOrdering reads `?ordering=name,-created_at`, keeping the allowed fields only.
func parseOrdering(ctx echo.Context, allowed ...string) []core.DBOrdering {
	return core.ParseOrdering(ctx.QueryParam(orderingParam), allowed...)
}

func invalidParam(name, msg string) error {
	return core.NewValidationError(nil, core.FieldError{Field: name, Error: msg})
}

// queryList accepts both repeated (`?id=a&id=b`) and comma separated (`?id=a,b`) values.
// It returns nil when the parameter is absent.
func queryList(ctx echo.Context, name string) []string {
	values, ok := ctx.QueryParams()[name]
	if !ok {
		return nil
	}
	var list []string
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				list = append(list, item)
			}
		}
	}
	return list
}

func queryDate(ctx echo.Context, name string) (core.Date, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(val)
	if err != nil {
		return core.Date{}, invalidParam(name, "must be a date formatted as YYYY-MM-DD")
	}
	return d, nil
}

func queryTime(ctx echo.Context, name string) (time.Time, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, invalidParam(name, "must be an RFC 3339 timestamp")
	}
	return t, nil
}

func queryInt(ctx echo.Context, name string) (int, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return 0, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, invalidParam(name, "must be an integer")
	}
	return i, nil
}

func queryBool(ctx echo.Context, name string) (*bool, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, invalidParam(name, "must be a boolean")
	}
	return &b, nil
}
