package server

import (
	"sync"
	"time"

	"synctrust/internal/domain"
	"synctrust/internal/domain/types"
)

type client struct {
	endpoint domain.ClientEndpoint
	keyInfo  domain.PublicKeyInfo
	queue    *queue
}

type challenge struct {
	endpoint  domain.ClientEndpoint
	keyInfo   domain.PublicKeyInfo
	nonce     []byte
	expiresAt time.Time
}

type member struct {
	endpoint domain.ClientEndpoint
	keyInfo  domain.PublicKeyInfo
	joinedAt time.Time
}

type preMember struct {
	endpoint  domain.ClientEndpoint
	keyInfo   domain.PublicKeyInfo
	validator domain.InstanceID
	validated bool
}

// pair reads "from has verified to".
type pair struct {
	from, to domain.InstanceID
}

type session struct {
	sync.Mutex

	id        domain.SessionID
	version   domain.ProtocolVersion
	creator   domain.InstanceID
	createdAt time.Time

	members     []*member
	preMembers  map[domain.InstanceID]*preMember
	authChecked map[pair]struct{}

	// closed is set once the last member left and the session was removed.
	closed bool
}

// forwardStatus decides whether from may send a protocol message to to:
// only between a member and a member or pre-member.
func (s *session) forwardStatus(from, to domain.InstanceID) domain.RelayStatus {
	fromMember := s.member(from) != nil
	if !fromMember && s.preMembers[from] == nil {
		return types.RelayNotPreMember
	}
	if s.member(to) != nil {
		return types.RelayOk
	}
	if fromMember && s.preMembers[to] != nil {
		return types.RelayOk
	}
	return types.RelayNotMember
}

func (s *session) member(id domain.InstanceID) *member {
	for _, m := range s.members {
		if m.endpoint.InstanceID == id {
			return m
		}
	}
	return nil
}

func (s *session) isParticipant(id domain.InstanceID) bool {
	return s.member(id) != nil || s.preMembers[id] != nil
}

// validator is the member that checks join passwords: the creator while it
// is a member, otherwise the longest-standing member.
func (s *session) validator() *member {
	if m := s.member(s.creator); m != nil {
		return m
	}
	if len(s.members) == 0 {
		return nil
	}
	return s.members[0]
}

// setAuthChecked records that from verified to. The set only grows while
// both stay in the session.
func (s *session) setAuthChecked(from, to domain.InstanceID) {
	s.authChecked[pair{from, to}] = struct{}{}
}

// forgetAuthChecks drops every verification involving id, once it left.
func (s *session) forgetAuthChecks(id domain.InstanceID) {
	for p := range s.authChecked {
		if p.from == id || p.to == id {
			delete(s.authChecked, p)
		}
	}
}

func (s *session) crossChecked(joiner domain.InstanceID) bool {
	for _, m := range s.members {
		id := m.endpoint.InstanceID
		if _, ok := s.authChecked[pair{id, joiner}]; !ok {
			return false
		}
		if _, ok := s.authChecked[pair{joiner, id}]; !ok {
			return false
		}
	}
	return true
}

func (s *session) info() domain.SessionInfo {
	out := domain.SessionInfo{
		SessionID:         s.id,
		ProtocolVersion:   s.version,
		CreatorInstanceID: s.creator,
		CreatedAt:         s.createdAt,
		Members:           make([]domain.SessionMember, 0, len(s.members)),
	}
	for _, m := range s.members {
		out.Members = append(out.Members, domain.SessionMember{
			Endpoint:      m.endpoint,
			PublicKeyInfo: m.keyInfo,
			JoinedAt:      m.joinedAt,
		})
	}
	return out
}

type state struct {
	sync.RWMutex

	clients    map[domain.InstanceID]*client
	sessions   map[domain.SessionID]*session
	challenges map[domain.InstanceID]*challenge
}

func newState() *state {
	return &state{
		clients:    make(map[domain.InstanceID]*client),
		sessions:   make(map[domain.SessionID]*session),
		challenges: make(map[domain.InstanceID]*challenge),
	}
}

func (st *state) client(id domain.InstanceID) *client {
	st.RLock()
	defer st.RUnlock()
	return st.clients[id]
}

func (st *state) session(id domain.SessionID) *session {
	st.RLock()
	defer st.RUnlock()
	return st.sessions[id]
}

func (st *state) expireChallenges(now time.Time) int {
	st.Lock()
	defer st.Unlock()
	n := 0
	for id, ch := range st.challenges {
		if now.After(ch.expiresAt) {
			delete(st.challenges, id)
			n++
		}
	}
	return n
}
