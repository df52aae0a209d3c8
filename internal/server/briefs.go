package server

import (
	"net/http"

	"github.com/gorhill/cronexpr"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/copydesk/internal/runtime"
	"github.com/mohammad-safakhou/copydesk/internal/store"
)

// BriefsHandler manages recurring content requests fired by the scheduler.
type BriefsHandler struct {
	Store *store.Store
}

func (h *BriefsHandler) Register(g *echo.Group, secret []byte, authRequired bool) {
	if authRequired {
		g.Use(runtime.EchoAuthMiddleware(secret))
	}
	g.POST("", h.create)
	g.GET("", h.list)
	g.DELETE("/:brief_id", h.remove)
}

func (h *BriefsHandler) create(c echo.Context) error {
	var req CreateBriefRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	content := req.toRequest()
	if err := content.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.CronSpec != "@daily" && req.CronSpec != "@hourly" {
		if _, err := cronexpr.Parse(req.CronSpec); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid cron_spec")
		}
	}
	var userID *string
	if sub, ok := runtime.SubjectFromContext(c.Request().Context()); ok {
		userID = &sub
	}
	id, err := h.Store.CreateBrief(c.Request().Context(), userID, content, req.CronSpec)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, IDResponse{ID: id})
}

func (h *BriefsHandler) list(c echo.Context) error {
	briefs, err := h.Store.ListBriefs(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]BriefResponse, 0, len(briefs))
	for _, b := range briefs {
		out = append(out, newBriefResponse(b))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *BriefsHandler) remove(c echo.Context) error {
	if err := h.Store.DeleteBrief(c.Request().Context(), c.Param("brief_id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
