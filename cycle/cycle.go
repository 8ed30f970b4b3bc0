// Package cycle runs the reader's poll, classify and feedback loop.
package cycle

import (
	"context"

	"github.com/rs/zerolog"

	"cardreader/clock"
	"cardreader/dedup"
	"cardreader/indicator"
	"cardreader/reader"
	"cardreader/report"
	"cardreader/tag"
)

// Orchestrator ties the poller, dedup engine, feedback sequencer and
// reporter together. It is not safe for concurrent use; only Stats may be
// read from other goroutines.
type Orchestrator struct {
	poller   *reader.Poller
	engine   *dedup.Engine
	state    dedup.State
	seq      *indicator.Sequencer
	status   map[tag.Protocol]indicator.Color
	reporter report.Reporter
	clock    clock.Clock
	log      zerolog.Logger
	stats    Stats
}

// New creates an Orchestrator. It takes over the poller's OnAttempt hook to
// drive the status position.
func New(p *reader.Poller, e *dedup.Engine, seq *indicator.Sequencer, status map[tag.Protocol]indicator.Color,
	rep report.Reporter, c clock.Clock, log zerolog.Logger) *Orchestrator {
	o := &Orchestrator{
		poller:   p,
		engine:   e,
		seq:      seq,
		status:   status,
		reporter: rep,
		clock:    c,
		log:      log,
	}
	p.OnAttempt = o.showStatus
	return o
}

// Run calls RunCycle until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.log.Info().Msg("polling for tags")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.RunCycle(ctx)
	}
}

// RunCycle polls once across both protocols and handles the result. ok is
// false when no tag was read.
func (o *Orchestrator) RunCycle(ctx context.Context) (class dedup.Classification, ok bool) {
	o.stats.Cycles.Add(1)

	ev, ok := o.poller.Poll(ctx)
	if !ok {
		return dedup.New, false
	}

	class = o.engine.Evaluate(ev, &o.state)
	if class == dedup.Duplicate {
		o.stats.DuplicateSuppressed.Add(1)
		o.clock.Sleep(o.engine.Cooldown)
		return class, true
	}

	if ev.Protocol == tag.FeliCa {
		o.stats.NewFeliCa.Add(1)
	} else {
		o.stats.NewISO14443A.Add(1)
	}

	// Feedback blocks polling; a tag presented during playback is picked up
	// on the next cycle.
	if err := o.seq.Play(); err != nil {
		o.stats.FeedbackErrors.Add(1)
		o.log.Warn().Err(err).Msg("feedback")
	}
	if err := o.reporter.Report(report.NewRecord(ev)); err != nil {
		o.stats.ReportErrors.Add(1)
		o.log.Warn().Err(err).Msg("report")
	}
	return class, true
}

// Stats returns the loop counters.
func (o *Orchestrator) Stats() *Stats {
	return &o.stats
}

// State returns a copy of the dedup state.
func (o *Orchestrator) State() dedup.State {
	return o.state
}

func (o *Orchestrator) showStatus(p tag.Protocol) {
	c, ok := o.status[p]
	if !ok {
		return
	}
	if err := o.seq.Status(c); err != nil {
		o.log.Debug().Err(err).Stringer("protocol", p).Msg("status led")
	}
}
