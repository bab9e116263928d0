package relay

import (
	"context"
	"time"

	"gopkg.in/op/go-logging.v1"

	"synctrust/internal/domain/types"
	"synctrust/internal/util/worker"
)

const pollRetryDelay = time.Second

// EventSource is the part of the relay client a Poller needs.
type EventSource interface {
	FetchEvents(ctx context.Context, wait time.Duration) ([]types.EventEnvelope, error)
	AckEvents(ctx context.Context, upTo uint64) error
}

// Dispatcher receives every fetched event once, in sequence order.
type Dispatcher interface {
	Dispatch(env types.EventEnvelope) error
}

// Poller long-polls the relay event queue until halted.
type Poller struct {
	worker.Worker

	src  EventSource
	dst  Dispatcher
	log  *logging.Logger
	wait time.Duration

	lastSeq uint64
}

// NewPoller returns a poller; call Start to begin fetching.
func NewPoller(src EventSource, dst Dispatcher, log *logging.Logger, wait time.Duration) *Poller {
	return &Poller{src: src, dst: dst, log: log, wait: wait}
}

// Start launches the poll loop. Halt stops it.
func (p *Poller) Start() {
	p.Go(p.loop)
}

func (p *Poller) loop() {
	ctx, cancel := p.Context(context.Background())
	defer cancel()

	for {
		select {
		case <-p.HaltCh():
			return
		default:
		}

		if err := p.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Warningf("Event poll failed: %v", err)
			select {
			case <-p.HaltCh():
				return
			case <-time.After(pollRetryDelay):
			}
		}
	}
}

// pollOnce fetches one batch, dispatches the events not seen yet and acks
// the batch.
func (p *Poller) pollOnce(ctx context.Context) error {
	evs, err := p.src.FetchEvents(ctx, p.wait)
	if err != nil {
		return err
	}
	if len(evs) == 0 {
		return nil
	}
	for _, env := range evs {
		if env.Seq <= p.lastSeq {
			continue
		}
		p.lastSeq = env.Seq
		if err := p.dst.Dispatch(env); err != nil {
			p.log.Errorf("Dropping event %d (%s): %v", env.Seq, env.Kind, err)
		}
	}
	return p.src.AckEvents(ctx, p.lastSeq)
}
