package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"synctrust/internal/domain"
	"synctrust/internal/domain/types"
)

func answer(c echo.Context, st domain.RelayStatus) error {
	return c.JSON(http.StatusOK, types.StatusResponse{Status: st})
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	return nil
}

// inSession runs fn with the session named by the :id parameter locked.
func (s *Server) inSession(c echo.Context, fn func(sess *session, me *client) error) error {
	sess := s.state.session(domain.SessionID(c.Param("id")))
	if sess == nil {
		return answer(c, types.RelaySessionNotFound)
	}
	sess.Lock()
	defer sess.Unlock()
	if sess.closed {
		return answer(c, types.RelaySessionNotFound)
	}
	return fn(sess, caller(c))
}

func (s *Server) postSession(c echo.Context) error {
	var req types.CreateSessionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	me := caller(c)
	if req.ProtocolVersion <= 0 {
		req.ProtocolVersion = me.keyInfo.ProtocolVersion
	}
	now := s.now().UTC()
	sess := &session{
		id:          domain.SessionID(uuid.NewString()),
		version:     req.ProtocolVersion,
		creator:     me.endpoint.InstanceID,
		createdAt:   now,
		members:     []*member{{endpoint: me.endpoint, keyInfo: me.keyInfo, joinedAt: now}},
		preMembers:  make(map[domain.InstanceID]*preMember),
		authChecked: make(map[pair]struct{}),
	}

	s.state.Lock()
	s.state.sessions[sess.id] = sess
	s.metrics.sessions.Set(float64(len(s.state.sessions)))
	s.state.Unlock()

	s.log.Infof("Session %s created by %s (protocol v%d)", sess.id, me.endpoint.InstanceID, sess.version)
	return c.JSON(http.StatusOK, types.SessionResponse{Status: types.RelayOk, Session: sess.info()})
}

func (s *Server) getSession(c echo.Context) error {
	return s.inSession(c, func(sess *session, me *client) error {
		if !sess.isParticipant(me.endpoint.InstanceID) {
			return answer(c, types.RelayNotMember)
		}
		return c.JSON(http.StatusOK, types.SessionResponse{Status: types.RelayOk, Session: sess.info()})
	})
}

func (s *Server) postQuit(c echo.Context) error {
	return s.inSession(c, func(sess *session, me *client) error {
		id := me.endpoint.InstanceID
		if _, ok := sess.preMembers[id]; ok {
			delete(sess.preMembers, id)
			sess.forgetAuthChecks(id)
			return answer(c, types.RelayOk)
		}
		if sess.member(id) == nil {
			return answer(c, types.RelayNotMember)
		}

		kept := sess.members[:0]
		for _, m := range sess.members {
			if m.endpoint.InstanceID != id {
				kept = append(kept, m)
			}
		}
		sess.members = kept
		sess.forgetAuthChecks(id)

		for _, m := range sess.members {
			s.push(m.endpoint.InstanceID, types.EventMemberQuittedSession, sess.id,
				types.MemberQuittedSessionEvent{Header: types.Header{SessionID: sess.id, From: me.endpoint}})
		}
		s.log.Infof("Instance %s left session %s", id, sess.id)

		if len(sess.members) == 0 {
			sess.closed = true
			s.state.Lock()
			delete(s.state.sessions, sess.id)
			s.metrics.sessions.Set(float64(len(s.state.sessions)))
			s.state.Unlock()
			s.log.Infof("Session %s closed", sess.id)
		}
		return answer(c, types.RelayOk)
	})
}
