package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"synctrust/internal/domain/types"
)

func (s *Server) postAskPasswordExchangeKey(c echo.Context) error {
	var req types.AskPasswordExchangeKeyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return s.inSession(c, func(sess *session, me *client) error {
		pm := sess.preMembers[me.endpoint.InstanceID]
		if pm == nil {
			return answer(c, types.RelayNotPreMember)
		}
		v := sess.validator()
		if v == nil {
			return answer(c, types.RelayNoValidator)
		}
		pm.validator = v.endpoint.InstanceID
		pm.validated = false
		s.push(v.endpoint.InstanceID, types.EventAskPasswordExchangeKey, sess.id, types.AskPasswordExchangeKeyEvent{
			Header:          types.Header{SessionID: sess.id, From: me.endpoint},
			PublicKeyInfo:   pm.keyInfo,
			ProfileClientID: req.ProfileClientID,
			LobbyID:         req.LobbyID,
		})
		return answer(c, types.RelayOk)
	})
}

func (s *Server) postGivePasswordExchangeKey(c echo.Context) error {
	var req types.GivePasswordExchangeKeyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return s.inSession(c, func(sess *session, me *client) error {
		if sess.member(me.endpoint.InstanceID) == nil {
			return answer(c, types.RelayNotMember)
		}
		pm := sess.preMembers[req.To]
		if pm == nil || pm.validator != me.endpoint.InstanceID {
			return answer(c, types.RelayNotPreMember)
		}
		s.push(req.To, types.EventGivePasswordExchangeKey, sess.id, types.GivePasswordExchangeKeyEvent{
			Header:        types.Header{SessionID: sess.id, From: me.endpoint},
			PublicKeyInfo: me.keyInfo,
		})
		return answer(c, types.RelayOk)
	})
}

func (s *Server) postAskJoinCloudSession(c echo.Context) error {
	var req types.AskJoinCloudSessionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return s.inSession(c, func(sess *session, me *client) error {
		pm := sess.preMembers[me.endpoint.InstanceID]
		if pm == nil {
			return answer(c, types.RelayNotPreMember)
		}
		if pm.validator == "" || sess.member(pm.validator) == nil {
			return answer(c, types.RelayNoValidator)
		}
		s.push(pm.validator, types.EventAskJoinCloudSession, sess.id, types.AskJoinCloudSessionEvent{
			Header:            types.Header{SessionID: sess.id, From: me.endpoint},
			EncryptedPassword: req.EncryptedPassword,
		})
		return answer(c, types.RelayOk)
	})
}

func (s *Server) postValidateJoinCloudSession(c echo.Context) error {
	var req types.ValidateJoinCloudSessionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return s.inSession(c, func(sess *session, me *client) error {
		pm := sess.preMembers[req.Joiner]
		if pm == nil {
			return answer(c, types.RelayNotPreMember)
		}
		if pm.validator != me.endpoint.InstanceID {
			return answer(c, types.RelayNotMember)
		}
		pm.validated = true
		s.push(req.Joiner, types.EventYouJoinedSession, sess.id, types.YouJoinedSessionEvent{
			Header:              types.Header{SessionID: sess.id, From: me.endpoint},
			Session:             sess.info(),
			EncryptedSessionKey: req.EncryptedSessionKey,
		})
		return answer(c, types.RelayOk)
	})
}

func (s *Server) postInformPasswordIsWrong(c echo.Context) error {
	var req types.InformPasswordIsWrongRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return s.inSession(c, func(sess *session, me *client) error {
		pm := sess.preMembers[req.Joiner]
		if pm == nil {
			return answer(c, types.RelayNotPreMember)
		}
		if pm.validator != me.endpoint.InstanceID {
			return answer(c, types.RelayNotMember)
		}
		pm.validator = ""
		pm.validated = false
		s.metrics.joins.WithLabelValues("wrong_password").Inc()
		s.log.Infof("Session %s: %s gave a wrong password", sess.id, req.Joiner)
		s.push(req.Joiner, types.EventYouGaveAWrongPassword, sess.id, types.YouGaveAWrongPasswordEvent{
			Header: types.Header{SessionID: sess.id, From: me.endpoint},
		})
		return answer(c, types.RelayOk)
	})
}

func (s *Server) postFinalizeJoinCloudSession(c echo.Context) error {
	return s.inSession(c, func(sess *session, me *client) error {
		id := me.endpoint.InstanceID
		pm := sess.preMembers[id]
		if pm == nil {
			if sess.member(id) != nil {
				return c.JSON(http.StatusOK, types.SessionResponse{Status: types.RelayOk, Session: sess.info()})
			}
			return answer(c, types.RelayNotPreMember)
		}
		if !pm.validated || !sess.crossChecked(id) {
			return answer(c, types.RelayAuthIsNotChecked)
		}

		delete(sess.preMembers, id)
		joined := &member{endpoint: pm.endpoint, keyInfo: pm.keyInfo, joinedAt: s.now().UTC()}
		sess.members = append(sess.members, joined)
		s.metrics.joins.WithLabelValues("joined").Inc()
		s.log.Infof("Session %s: %s joined", sess.id, id)

		for _, m := range sess.members {
			if m == joined {
				continue
			}
			s.push(m.endpoint.InstanceID, types.EventMemberJoinedSession, sess.id, types.MemberJoinedSessionEvent{
				Header: types.Header{SessionID: sess.id, From: me.endpoint},
				Member: types.SessionMember{Endpoint: joined.endpoint, PublicKeyInfo: joined.keyInfo, JoinedAt: joined.joinedAt},
			})
		}
		return c.JSON(http.StatusOK, types.SessionResponse{Status: types.RelayOk, Session: sess.info()})
	})
}
