package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"transhub/internal/handler"
)

func NewRouter(translationHandler *handler.TranslationHandler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(RequestIDMiddleware())
	e.Use(RequestLoggerMiddleware())

	api := e.Group("/api")
	translationHandler.RegisterRoutes(api)

	return e
}
