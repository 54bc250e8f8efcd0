package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/openseek/openseek/plugin/websearch"
)

func (s *APIV1Service) registerSearchRoutes(e *echo.Echo) {
	e.POST("/api/advanced-search", s.advancedSearch)
}

// advancedSearch exposes the search provider directly, bypassing the engine.
func (s *APIV1Service) advancedSearch(c *echo.Context) error {
	var req websearch.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}

	resp, err := s.Searcher.Search(c.Request().Context(), req)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}
