package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"synctrust/internal/domain"
	"synctrust/internal/domain/types"
)

func (s *Server) postStartTrustCheck(c echo.Context) error {
	var req types.StartTrustCheckRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return s.inSession(c, func(sess *session, me *client) error {
		id := me.endpoint.InstanceID
		s.metrics.trustChecks.Inc()

		if req.ProtocolVersion != sess.version {
			s.metrics.incompatibilities.Inc()
			s.log.Warningf("Session %s: joiner %s speaks protocol v%d, session is v%d",
				sess.id, id, req.ProtocolVersion, sess.version)
			s.push(id, types.EventInformProtocolVersionIncompatible, sess.id, types.InformProtocolVersionIncompatibleEvent{
				Header:              types.Header{SessionID: sess.id},
				ProtocolVersion:     sess.version,
				PeerProtocolVersion: req.ProtocolVersion,
			})
			return c.JSON(http.StatusOK, types.StartTrustCheckResponse{
				Status:                 types.RelayProtocolVersionIncompatible,
				SessionProtocolVersion: sess.version,
			})
		}

		// A check of every member starts a new join attempt: whatever an
		// earlier attempt of the caller got validated or verified is void.
		if sess.member(id) == nil {
			if _, ok := sess.preMembers[id]; !ok || len(req.Members) == 0 {
				sess.preMembers[id] = &preMember{endpoint: me.endpoint, keyInfo: me.keyInfo}
				sess.forgetAuthChecks(id)
			}
		}

		wanted := make(map[domain.InstanceID]bool, len(req.Members))
		for _, m := range req.Members {
			wanted[m] = true
		}
		resp := types.StartTrustCheckResponse{
			Status:                 types.RelayOk,
			SessionProtocolVersion: sess.version,
			Members:                []domain.SessionMember{},
		}
		for _, m := range sess.info().Members {
			mid := m.Endpoint.InstanceID
			if mid == id || (len(wanted) > 0 && !wanted[mid]) {
				continue
			}
			resp.Members = append(resp.Members, m)
			s.push(mid, types.EventAskPublicKeyCheckData, sess.id, types.AskPublicKeyCheckDataEvent{
				Header:          types.Header{SessionID: sess.id, From: me.endpoint},
				PublicKeyInfo:   me.keyInfo,
				ProtocolVersion: req.ProtocolVersion,
			})
		}
		s.log.Debugf("Session %s: trust check by %s against %d members", sess.id, id, len(resp.Members))
		return c.JSON(http.StatusOK, resp)
	})
}

func (s *Server) postGiveMemberPublicKeyCheckData(c echo.Context) error {
	var req types.GiveMemberPublicKeyCheckDataRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return s.inSession(c, func(sess *session, me *client) error {
		if sess.member(me.endpoint.InstanceID) == nil {
			return answer(c, types.RelayNotMember)
		}
		if st := sess.forwardStatus(me.endpoint.InstanceID, req.To); st != types.RelayOk {
			return answer(c, st)
		}
		data := req.CheckData
		data.IssuerClientInstanceID = me.endpoint.InstanceID
		s.push(req.To, types.EventGiveMemberPublicKeyCheckData, sess.id, types.GiveMemberPublicKeyCheckDataEvent{
			Header:    types.Header{SessionID: sess.id, From: me.endpoint},
			CheckData: data,
		})
		return answer(c, types.RelayOk)
	})
}

func (s *Server) postRequestTrustPublicKey(c echo.Context) error {
	var req types.RequestTrustPublicKeyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return s.inSession(c, func(sess *session, me *client) error {
		if st := sess.forwardStatus(me.endpoint.InstanceID, req.To); st != types.RelayOk {
			return answer(c, st)
		}
		s.push(req.To, types.EventRequestTrustPublicKey, sess.id, types.RequestTrustPublicKeyEvent{
			Header:        types.Header{SessionID: sess.id, From: me.endpoint},
			CheckID:       req.CheckID,
			PublicKeyInfo: req.PublicKeyInfo,
			ClientIndex:   req.ClientIndex,
			ClientsCount:  req.ClientsCount,
		})
		return answer(c, types.RelayOk)
	})
}

func (s *Server) postInformPublicKeyValidationIsFinished(c echo.Context) error {
	var req types.InformPublicKeyValidationIsFinishedRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return s.inSession(c, func(sess *session, me *client) error {
		if st := sess.forwardStatus(me.endpoint.InstanceID, req.To); st != types.RelayOk {
			return answer(c, st)
		}
		s.push(req.To, types.EventInformPublicKeyValidationIsFinished, sess.id, types.InformPublicKeyValidationIsFinishedEvent{
			Header:    types.Header{SessionID: sess.id, From: me.endpoint},
			CheckID:   req.CheckID,
			IsTrusted: req.IsTrusted,
			Aborted:   req.Aborted,
		})
		return answer(c, types.RelayOk)
	})
}

func (s *Server) postInformProtocolVersionIncompatible(c echo.Context) error {
	var req types.InformProtocolVersionIncompatibleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return s.inSession(c, func(sess *session, me *client) error {
		if st := sess.forwardStatus(me.endpoint.InstanceID, req.To); st != types.RelayOk {
			return answer(c, st)
		}
		s.metrics.incompatibilities.Inc()
		s.log.Warningf("Session %s: %s (v%d) reports %s as incompatible (v%d)",
			sess.id, me.endpoint.InstanceID, req.ProtocolVersion, req.To, req.PeerProtocolVersion)
		s.push(req.To, types.EventInformProtocolVersionIncompatible, sess.id, types.InformProtocolVersionIncompatibleEvent{
			Header:              types.Header{SessionID: sess.id, From: me.endpoint},
			ProtocolVersion:     req.ProtocolVersion,
			PeerProtocolVersion: req.PeerProtocolVersion,
		})
		return answer(c, types.RelayOk)
	})
}

func (s *Server) postSendDigitalSignatures(c echo.Context) error {
	var req types.SendDigitalSignaturesRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return s.inSession(c, func(sess *session, me *client) error {
		id := me.endpoint.InstanceID
		for _, sig := range req.Signatures {
			if sig.Issuer.InstanceID != id || sig.Issuer.ClientID != me.endpoint.ClientID {
				s.log.Warningf("Session %s: %s sent a signature issued by %s", sess.id, id, sig.Issuer.InstanceID)
				return echo.NewHTTPError(http.StatusForbidden, "signature issuer is not the caller")
			}
			if st := sess.forwardStatus(id, sig.Recipient.InstanceID); st != types.RelayOk {
				return answer(c, st)
			}
		}

		validated := sess.member(id) != nil
		if pm := sess.preMembers[id]; pm != nil && pm.validated {
			validated = true
		}
		for _, sig := range req.Signatures {
			to := sig.Recipient.InstanceID
			if req.IsAuthCheckOK && validated {
				sess.setAuthChecked(id, to)
			}
			s.push(to, types.EventRequestCheckDigitalSignature, sess.id, types.RequestCheckDigitalSignatureEvent{
				Header:        types.Header{SessionID: sess.id, From: me.endpoint},
				Info:          sig,
				IsAuthCheckOK: req.IsAuthCheckOK,
			})
		}
		return answer(c, types.RelayOk)
	})
}
