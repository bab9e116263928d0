package types

import (
	"fmt"
	"time"
)

// SessionMember is one admitted participant of a session.
type SessionMember struct {
	Endpoint      ClientEndpoint `json:"endpoint"`
	PublicKeyInfo PublicKeyInfo  `json:"public_key_info"`
	JoinedAt      time.Time      `json:"joined_at"`
}

// SessionInfo is the relay's view of a session.
type SessionInfo struct {
	SessionID         SessionID       `json:"session_id"`
	ProtocolVersion   ProtocolVersion `json:"protocol_version"`
	CreatorInstanceID InstanceID      `json:"creator_instance_id"`
	Members           []SessionMember `json:"members"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Member returns the member with the given instance id.
func (s SessionInfo) Member(id InstanceID) (SessionMember, bool) {
	for _, m := range s.Members {
		if m.Endpoint.InstanceID == id {
			return m, true
		}
	}
	return SessionMember{}, false
}

// SessionConnectionStatus is the progress of one local connection attempt.
type SessionConnectionStatus int

const (
	StatusNone SessionConnectionStatus = iota
	StatusJoiningSession
	StatusCreatingSession
	StatusInSession
	StatusFatalError
)

func (s SessionConnectionStatus) String() string {
	switch s {
	case StatusNone:
		return "None"
	case StatusJoiningSession:
		return "JoiningSession"
	case StatusCreatingSession:
		return "CreatingSession"
	case StatusInSession:
		return "InSession"
	case StatusFatalError:
		return "FatalError"
	default:
		return fmt.Sprintf("SessionConnectionStatus(%d)", int(s))
	}
}

// Terminal reports whether no further transition is allowed from s.
func (s SessionConnectionStatus) Terminal() bool {
	return s == StatusInSession || s == StatusFatalError
}

// CanTransition reports whether moving from s to next is legal.
func (s SessionConnectionStatus) CanTransition(next SessionConnectionStatus) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case StatusFatalError:
		return true
	case StatusJoiningSession, StatusCreatingSession:
		return s == StatusNone
	case StatusInSession:
		return s == StatusJoiningSession || s == StatusCreatingSession
	default:
		return false
	}
}

// JoinSessionStatus classifies the terminal outcome of a join attempt.
type JoinSessionStatus string

const (
	JoinOk                          JoinSessionStatus = "Ok"
	JoinAlreadyInSession            JoinSessionStatus = "AlreadyInSession"
	JoinProtocolVersionIncompatible JoinSessionStatus = "ProtocolVersionIncompatible"
	JoinUntrustedPublicKey          JoinSessionStatus = "UntrustedPublicKey"
	JoinWrongPassword               JoinSessionStatus = "WrongPassword"
	JoinTimeout                     JoinSessionStatus = "Timeout"
	JoinUserCancelled               JoinSessionStatus = "UserCancelled"
	JoinRelayRejected               JoinSessionStatus = "RelayRejected"
	JoinUnexpectedError             JoinSessionStatus = "UnexpectedError"
)

// RelayStatus is the closed set of protocol outcomes returned by the relay.
type RelayStatus string

const (
	RelayOk                          RelayStatus = "Ok"
	RelaySessionNotFound             RelayStatus = "SessionNotFound"
	RelayNotPreMember                RelayStatus = "NotPreMember"
	RelayNotMember                   RelayStatus = "NotMember"
	RelayNoValidator                 RelayStatus = "NoValidator"
	RelayProtocolVersionIncompatible RelayStatus = "ProtocolVersionIncompatible"
	RelayAuthIsNotChecked            RelayStatus = "AuthIsNotChecked"
	RelayWrongPassword               RelayStatus = "WrongPassword"
	RelayUnexpectedError             RelayStatus = "UnexpectedError"
)

// JoinStatus maps a non-Ok relay answer to the join outcome it ends in.
func (s RelayStatus) JoinStatus() JoinSessionStatus {
	switch s {
	case RelayOk:
		return JoinOk
	case RelayProtocolVersionIncompatible:
		return JoinProtocolVersionIncompatible
	case RelayWrongPassword:
		return JoinWrongPassword
	case RelayUnexpectedError:
		return JoinUnexpectedError
	default:
		return JoinRelayRejected
	}
}

// JoinOptions carries optional profile and lobby linkage for a join.
type JoinOptions struct {
	ProfileClientID string
	LobbyID         string
}
