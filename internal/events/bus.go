package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"synctrust/internal/domain/types"
)

// ErrUnknownKind is returned by Dispatch for an envelope of an unknown kind.
var ErrUnknownKind = errors.New("events: unknown event kind")

// Bus holds one topic per push event kind.
type Bus struct {
	AskPublicKeyCheckData               Topic[types.AskPublicKeyCheckDataEvent]
	GiveMemberPublicKeyCheckData        Topic[types.GiveMemberPublicKeyCheckDataEvent]
	RequestTrustPublicKey               Topic[types.RequestTrustPublicKeyEvent]
	InformPublicKeyValidationIsFinished Topic[types.InformPublicKeyValidationIsFinishedEvent]
	RequestCheckDigitalSignature        Topic[types.RequestCheckDigitalSignatureEvent]
	InformProtocolVersionIncompatible   Topic[types.InformProtocolVersionIncompatibleEvent]
	AskPasswordExchangeKey              Topic[types.AskPasswordExchangeKeyEvent]
	GivePasswordExchangeKey             Topic[types.GivePasswordExchangeKeyEvent]
	AskJoinCloudSession                 Topic[types.AskJoinCloudSessionEvent]
	YouJoinedSession                    Topic[types.YouJoinedSessionEvent]
	YouGaveAWrongPassword               Topic[types.YouGaveAWrongPasswordEvent]
	MemberJoinedSession                 Topic[types.MemberJoinedSessionEvent]
	MemberQuittedSession                Topic[types.MemberQuittedSessionEvent]
}

// NewBus returns a bus with no subscribers.
func NewBus() *Bus { return new(Bus) }

// Dispatch decodes env and publishes it on the topic for its kind.
func (b *Bus) Dispatch(env types.EventEnvelope) error {
	switch env.Kind {
	case types.EventAskPublicKeyCheckData:
		return publish(&b.AskPublicKeyCheckData, env)
	case types.EventGiveMemberPublicKeyCheckData:
		return publish(&b.GiveMemberPublicKeyCheckData, env)
	case types.EventRequestTrustPublicKey:
		return publish(&b.RequestTrustPublicKey, env)
	case types.EventInformPublicKeyValidationIsFinished:
		return publish(&b.InformPublicKeyValidationIsFinished, env)
	case types.EventRequestCheckDigitalSignature:
		return publish(&b.RequestCheckDigitalSignature, env)
	case types.EventInformProtocolVersionIncompatible:
		return publish(&b.InformProtocolVersionIncompatible, env)
	case types.EventAskPasswordExchangeKey:
		return publish(&b.AskPasswordExchangeKey, env)
	case types.EventGivePasswordExchangeKey:
		return publish(&b.GivePasswordExchangeKey, env)
	case types.EventAskJoinCloudSession:
		return publish(&b.AskJoinCloudSession, env)
	case types.EventYouJoinedSession:
		return publish(&b.YouJoinedSession, env)
	case types.EventYouGaveAWrongPassword:
		return publish(&b.YouGaveAWrongPassword, env)
	case types.EventMemberJoinedSession:
		return publish(&b.MemberJoinedSession, env)
	case types.EventMemberQuittedSession:
		return publish(&b.MemberQuittedSession, env)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
}

func publish[T any](t *Topic[T], env types.EventEnvelope) error {
	var ev T
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		return fmt.Errorf("events: decode %s: %w", env.Kind, err)
	}
	t.Publish(ev)
	return nil
}

// Encode builds the envelope for ev. The relay uses it to queue events.
func Encode(kind types.EventKind, sessionID types.SessionID, ev any) (types.EventEnvelope, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return types.EventEnvelope{}, fmt.Errorf("events: encode %s: %w", kind, err)
	}
	return types.EventEnvelope{Kind: kind, SessionID: sessionID, Payload: b}, nil
}
