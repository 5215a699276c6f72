package server

import (
	"net/http"

	"github.com/berfenger/growattcharger/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/plan", s.LastPlanHandler)
	e.POST("/run", s.RunHandler)
	if s.metricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(s.metricsHandler))
	}

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.chargerActor, domain.ActorHealthRequest{}, s.requestTimeout).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) LastPlanHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.chargerActor, domain.GetLastRunRequest{}, s.requestTimeout).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	response, ok := res.(domain.GetLastRunResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	if response.Result == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no charge cycle has run yet")
	}
	return c.JSON(http.StatusOK, response.Result)
}

type runQueuedResponse struct {
	Status  string `json:"status"`
	Pending int    `json:"pending"`
}

// RunHandler queues a manual charge cycle. With wait=true it blocks until
// the cycle finishes and returns its result.
func (s *Server) RunHandler(c echo.Context) error {
	req := domain.RunChargeCycleRequest{Trigger: "http"}
	if c.QueryParam("wait") != "true" {
		s.rootContext.Send(s.chargerActor, req)
		resp := runQueuedResponse{Status: "queued"}
		// same sender, so the health request is handled after the run request
		res, err := s.rootContext.RequestFuture(s.chargerActor, domain.ActorHealthRequest{}, s.requestTimeout).Result()
		if health, ok := res.(domain.ActorHealthResponse); err == nil && ok {
			resp.Pending = health.Queued
		}
		return c.JSON(http.StatusAccepted, resp)
	}

	res, err := s.rootContext.RequestFuture(s.chargerActor, req, s.runTimeout).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusGatewayTimeout, err.Error())
	}
	response, ok := res.(domain.RunChargeCycleResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	if response.HasResponseError() {
		return echo.NewHTTPError(http.StatusBadGateway, response.GetResponseError().Error())
	}
	return c.JSON(http.StatusOK, response.Result)
}
