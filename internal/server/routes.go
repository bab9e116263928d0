package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	e := s.e
	auth := s.requireAuth()

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if !s.cfg.Metrics.Disable {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))
	}

	e.POST("/auth/challenge", s.postChallenge)
	e.POST("/auth/login", s.postLogin)

	e.GET("/events", s.getEvents, auth)
	e.POST("/events/ack", s.postAckEvents, auth)

	e.POST("/sessions", s.postSession, auth)
	e.GET("/sessions/:id", s.getSession, auth)
	e.POST("/sessions/:id/quit", s.postQuit, auth)

	e.POST("/sessions/:id/trust/start", s.postStartTrustCheck, auth)
	e.POST("/sessions/:id/trust/check-data", s.postGiveMemberPublicKeyCheckData, auth)
	e.POST("/sessions/:id/trust/request", s.postRequestTrustPublicKey, auth)
	e.POST("/sessions/:id/trust/finished", s.postInformPublicKeyValidationIsFinished, auth)
	e.POST("/sessions/:id/trust/incompatible", s.postInformProtocolVersionIncompatible, auth)
	e.POST("/sessions/:id/signatures", s.postSendDigitalSignatures, auth)

	e.POST("/sessions/:id/password-key/ask", s.postAskPasswordExchangeKey, auth)
	e.POST("/sessions/:id/password-key/give", s.postGivePasswordExchangeKey, auth)
	e.POST("/sessions/:id/join/ask", s.postAskJoinCloudSession, auth)
	e.POST("/sessions/:id/join/validate", s.postValidateJoinCloudSession, auth)
	e.POST("/sessions/:id/join/wrong-password", s.postInformPasswordIsWrong, auth)
	e.POST("/sessions/:id/join/finalize", s.postFinalizeJoinCloudSession, auth)
}
