package reader

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"cardreader/clock"
	"cardreader/tag"
)

// Protocols lists the supported protocols in priority order.
var Protocols = []tag.Protocol{tag.FeliCa, tag.ISO14443A}

// Budget bounds how long a single protocol may hold up a cycle.
type Budget struct {
	Attempts int
	Timeout  time.Duration
}

// Poller queries each protocol in priority order and stops at the first hit.
type Poller struct {
	t      Transport
	clock  clock.Clock
	budget Budget
	log    zerolog.Logger

	// OnAttempt is called before a protocol is queried.
	OnAttempt func(tag.Protocol)
}

// NewPoller creates a Poller over t.
func NewPoller(t Transport, c clock.Clock, budget Budget, log zerolog.Logger) *Poller {
	if budget.Attempts < 1 {
		budget.Attempts = DefaultAttempts
	}
	if budget.Timeout <= 0 {
		budget.Timeout = DefaultTimeout
	}
	return &Poller{t: t, clock: c, budget: budget, log: log}
}

// Poll returns the first tag found, trying FeliCa before ISO14443A.
// Once a protocol succeeds the rest are not queried.
func (p *Poller) Poll(ctx context.Context) (tag.Event, bool) {
	for _, proto := range Protocols {
		if ctx.Err() != nil {
			return tag.Event{}, false
		}
		if ev, ok := p.PollProtocol(ctx, proto); ok {
			return ev, true
		}
	}
	return tag.Event{}, false
}

// PollProtocol polls a single protocol within the budget.
func (p *Poller) PollProtocol(ctx context.Context, proto tag.Protocol) (tag.Event, bool) {
	if p.OnAttempt != nil {
		p.OnAttempt(proto)
	}

	for i := 0; i < p.budget.Attempts; i++ {
		if ctx.Err() != nil {
			break
		}

		uid, ok, err := p.pollOnce(proto)
		if err != nil {
			p.log.Debug().Err(err).Stringer("protocol", proto).Int("attempt", i+1).Msg("poll failed")
			continue
		}
		if ok && !uid.IsZero() {
			return tag.Event{Protocol: proto, UID: uid, ObservedAt: p.clock.Now()}, true
		}
	}
	return tag.Event{}, false
}

func (p *Poller) pollOnce(proto tag.Protocol) (tag.UID, bool, error) {
	switch proto {
	case tag.FeliCa:
		t, ok, err := p.t.PollFeliCa(p.budget.Timeout)
		if err != nil || !ok {
			return tag.UID{}, false, err
		}
		return tag.NewUID(t.IDm[:]), true, nil
	case tag.ISO14443A:
		t, ok, err := p.t.PollISO14443A(p.budget.Timeout)
		if err != nil || !ok {
			return tag.UID{}, false, err
		}
		return tag.NewUID(t.UID), true, nil
	default:
		return tag.UID{}, false, nil
	}
}
