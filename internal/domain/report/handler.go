package report

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/oxycare/oxycare/internal/domain/intervention"
	"github.com/oxycare/oxycare/internal/platform/auth"
	"github.com/oxycare/oxycare/internal/platform/envelope"
)

type Handler struct {
	gen *Generator
}

func NewHandler(gen *Generator) *Handler {
	return &Handler{gen: gen}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/interventions", auth.RequireRole(auth.RoleTechnician))

	g.GET("/:id/rapport", h.Generate)
	g.GET("/:id/rapport/apercu", h.Preview)
	g.GET("/:id/rapport/fichier", h.Download)
}

func (h *Handler) Generate(c echo.Context) error {
	id, err := intervention.PathID(c)
	if err != nil {
		return err
	}
	res, err := h.gen.Generate(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, res, "report generated")
}

func (h *Handler) Preview(c echo.Context) error {
	id, err := intervention.PathID(c)
	if err != nil {
		return err
	}
	doc, err := h.gen.Preview(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, doc, "")
}

func (h *Handler) Download(c echo.Context) error {
	id, err := intervention.PathID(c)
	if err != nil {
		return err
	}
	info, rc, err := h.gen.Open(c.Request().Context(), id)
	if err != nil {
		return err
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("intervention_%s.xlsx", id)))
	return c.Stream(http.StatusOK, info.ContentType, rc)
}
