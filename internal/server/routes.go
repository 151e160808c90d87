package server

import (
	"net/http"
	"time"

	"github.com/RDG88/awtrix2mqtt/internal/core/domain"
	"github.com/RDG88/awtrix2mqtt/pkg/awtrix"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/screen", s.ScreenHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

type screenResponse struct {
	Online bool         `json:"online"`
	Screen awtrix.Frame `json:"screen"`
}

// ScreenHandler returns the last polled frame, or the fallback frame
// when the device is offline.
func (s *Server) ScreenHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetLastFrameRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "screen: FAIL")
	}
	if response, ok := res.(domain.GetLastFrameResponse); ok {
		return c.JSON(http.StatusOK, screenResponse{
			Online: response.Online,
			Screen: response.Frame,
		})
	}
	return c.String(http.StatusServiceUnavailable, "screen: FAIL")
}
