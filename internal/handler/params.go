package handler

import (
	"encoding/json"
	"strconv"

	"github.com/labstack/echo/v4"

	"transhub/internal/model"
)

func queryInt(c echo.Context, name string, def int) int {
	if v := c.QueryParam(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func queryBool(c echo.Context, name string) bool {
	v, _ := strconv.ParseBool(c.QueryParam(name))
	return v
}

// queryContext decodes the optional "context" query parameter, a JSON object.
func queryContext(c echo.Context) (model.Context, error) {
	raw := c.QueryParam("context")
	if raw == "" {
		return nil, nil
	}
	var ctx model.Context
	if err := json.Unmarshal([]byte(raw), &ctx); err != nil {
		return nil, err
	}
	return ctx, nil
}
