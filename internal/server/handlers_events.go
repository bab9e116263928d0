package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"synctrust/internal/domain/types"
)

func (s *Server) getEvents(c echo.Context) error {
	wait := time.Duration(0)
	if v := c.QueryParam("wait"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid wait")
		}
		wait = time.Duration(sec) * time.Second
	}
	if max := s.cfg.Server.MaxPollWait(); wait > max {
		wait = max
	}
	evs := caller(c).queue.fetch(c.Request().Context(), wait)
	if evs == nil {
		evs = []types.EventEnvelope{}
	}
	return c.JSON(http.StatusOK, evs)
}

func (s *Server) postAckEvents(c echo.Context) error {
	var req types.AckEventsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	caller(c).queue.ack(req.UpTo)
	return c.NoContent(http.StatusNoContent)
}
