package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"transhub/internal/config"
	"transhub/internal/coordinator"
	"transhub/internal/errs"
	"transhub/internal/model"
)

// TranslationHandler exposes the coordinator over the demo HTTP surface.
// The core itself is an embeddable library; this shell exists for operators
// and integration tests.
type TranslationHandler struct {
	coord *coordinator.Coordinator
}

func NewTranslationHandler(coord *coordinator.Coordinator) *TranslationHandler {
	return &TranslationHandler{coord: coord}
}

func (h *TranslationHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/health", h.health)
	g.POST("/requests", h.register)
	g.GET("/translations", h.getTranslation)
	g.GET("/dead-letters", h.listDeadLetters)
	g.POST("/process/:lang", h.process)
	g.POST("/gc", h.runGC)
	g.POST("/engine/:name", h.switchEngine)
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (h *TranslationHandler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Version: config.AppVersion})
}

type registerRequest struct {
	Text        string        `json:"text"`
	TargetLangs []string      `json:"target_langs"`
	BusinessID  *string       `json:"business_id,omitempty"`
	Context     model.Context `json:"context,omitempty"`
	SourceLang  *string       `json:"source_lang,omitempty"`
}

// register durably enqueues a translation request. Returns 202: the work is
// recorded, not yet done.
func (h *TranslationHandler) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	err := h.coord.Request(c.Request().Context(), coordinator.RequestParams{
		TargetLangs: req.TargetLangs,
		Text:        req.Text,
		BusinessID:  req.BusinessID,
		Context:     req.Context,
		SourceLang:  req.SourceLang,
	})
	if err != nil {
		return writeCoreError(c, err)
	}
	return c.JSON(http.StatusAccepted, statusResponse{Status: "accepted"})
}

func (h *TranslationHandler) getTranslation(c echo.Context) error {
	text := c.QueryParam("text")
	lang := c.QueryParam("lang")
	reqContext, err := queryContext(c)
	if err != nil {
		return writeCoreError(c, fmt.Errorf("%w: context: %v", errs.ErrValidation, err))
	}

	result, err := h.coord.GetTranslation(c.Request().Context(), text, lang, reqContext)
	if err != nil {
		return writeCoreError(c, err)
	}
	if result == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "translation not found"})
	}
	return c.JSON(http.StatusOK, result)
}

// process drains the queue for one language synchronously and returns every
// result. Intended for operators and tests; production deployments rely on
// the background scheduler instead.
func (h *TranslationHandler) process(c echo.Context) error {
	lang := c.Param("lang")
	opts := coordinator.ProcessOptions{
		BatchSize: queryInt(c, "batch_size", 0),
		Limit:     queryInt(c, "limit", 0),
	}

	resultCh, errCh, err := h.coord.ProcessPending(c.Request().Context(), lang, opts)
	if err != nil {
		return writeCoreError(c, err)
	}

	results := make([]model.TranslationResult, 0)
	for result := range resultCh {
		results = append(results, result)
	}
	if err := <-errCh; err != nil {
		return writeCoreError(c, err)
	}
	return c.JSON(http.StatusOK, results)
}

func (h *TranslationHandler) listDeadLetters(c echo.Context) error {
	entries, err := h.coord.ListDeadLetters(c.Request().Context(), queryInt(c, "limit", 100))
	if err != nil {
		return writeCoreError(c, err)
	}
	if entries == nil {
		entries = []model.DeadLetter{}
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *TranslationHandler) runGC(c echo.Context) error {
	report, err := h.coord.RunGC(
		c.Request().Context(),
		queryInt(c, "retention_days", 0),
		queryBool(c, "dry_run"),
	)
	if err != nil {
		return writeCoreError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *TranslationHandler) switchEngine(c echo.Context) error {
	if err := h.coord.SwitchEngine(c.Request().Context(), c.Param("name")); err != nil {
		return writeCoreError(c, err)
	}
	return c.JSON(http.StatusOK, statusResponse{Status: "switched"})
}
