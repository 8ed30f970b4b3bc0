package cycle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cardreader/clock"
	"cardreader/dedup"
	"cardreader/indicator"
	"cardreader/reader"
	"cardreader/report"
	"cardreader/tag"
)

// trace records every collaborator call in order.
type trace []string

func (t *trace) add(format string, args ...any) { *t = append(*t, fmt.Sprintf(format, args...)) }

type fakeTransport struct {
	tr     *trace
	felica []byte
	iso    []byte
}

func (f *fakeTransport) Initialize() (reader.Firmware, error) { return reader.Firmware{}, nil }

func (f *fakeTransport) PollFeliCa(time.Duration) (reader.FeliCaTarget, bool, error) {
	f.tr.add("poll FeliCa")
	if f.felica == nil {
		return reader.FeliCaTarget{}, false, nil
	}
	var t reader.FeliCaTarget
	copy(t.IDm[:], f.felica)
	return t, true, nil
}

func (f *fakeTransport) PollISO14443A(time.Duration) (reader.ISO14443ATarget, bool, error) {
	f.tr.add("poll ISO14443A")
	if f.iso == nil {
		return reader.ISO14443ATarget{}, false, nil
	}
	return reader.ISO14443ATarget{UID: f.iso}, true, nil
}

func (f *fakeTransport) Close() error { return nil }

type fakeStrip struct {
	tr     *trace
	shows  int
	status indicator.Color
}

func (s *fakeStrip) SetBrightness(level uint8) { s.tr.add("brightness %d", level) }
func (s *fakeStrip) SetPixel(i int, c indicator.Color) {
	if i == 0 {
		s.status = c
		s.tr.add("status %s", c)
	}
}
func (s *fakeStrip) Show() error    { s.shows++; return nil }
func (s *fakeStrip) Len() int       { return 7 }
func (s *fakeStrip) Release() error { return nil }

type fakeReporter struct {
	tr      *trace
	clock   clock.Clock
	records []report.Record
	at      []time.Duration
	err     error
}

func (r *fakeReporter) Report(rec report.Record) error {
	r.tr.add("report %s %s", rec.Protocol, rec.UID)
	r.records = append(r.records, rec)
	r.at = append(r.at, r.clock.Now())
	return r.err
}

type harness struct {
	tr    *trace
	ft    *fakeTransport
	strip *fakeStrip
	rep   *fakeReporter
	clock *clock.Manual
	o     *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tr := &trace{}
	h := &harness{
		tr:    tr,
		ft:    &fakeTransport{tr: tr},
		strip: &fakeStrip{tr: tr},
		clock: &clock.Manual{},
	}
	h.rep = &fakeReporter{tr: tr, clock: h.clock}

	script, err := indicator.Config{}.Script()
	if err != nil {
		t.Fatalf("script: %v", err)
	}
	status, err := indicator.Config{}.StatusColors()
	if err != nil {
		t.Fatalf("status colors: %v", err)
	}

	poller := reader.NewPoller(h.ft, h.clock, reader.Budget{}, zerolog.Nop())
	seq := indicator.NewSequencer(h.strip, script, h.clock)
	h.o = New(poller, dedup.NewEngine(dedup.Config{}), seq, status, h.rep, h.clock, zerolog.Nop())
	return h
}

func (h *harness) reset() { *h.tr = nil }

func TestNewFeliCaDetection(t *testing.T) {
	h := newHarness(t)
	h.ft.felica = []byte{0x01, 0x2E, 0x4C, 0x3A, 0x11, 0x22, 0x33, 0x44}
	h.clock.Set(time.Second)

	class, ok := h.o.RunCycle(context.Background())
	if !ok || class != dedup.New {
		t.Fatalf("expected new detection, got %s ok=%v", class, ok)
	}

	want := []string{
		"status 8a2be2",
		"poll FeliCa",
		"brightness 14",
		"brightness 8",
		"report FeliCa 012E4C3A11223344",
	}
	if fmt.Sprint(*h.tr) != fmt.Sprint(want) {
		t.Fatalf("unexpected call order:\n got %v\nwant %v", *h.tr, want)
	}
	if h.strip.shows != 1+24 {
		t.Fatalf("expected status show plus 24 animation steps, got %d", h.strip.shows)
	}

	last, at := h.o.State().Last()
	if at != time.Second || last[0] != 0x01 || last[7] != 0x44 {
		t.Fatalf("state not committed: % x at %v", last, at)
	}
}

func TestFeedbackCompletesBeforeReportAndNextPoll(t *testing.T) {
	h := newHarness(t)
	h.ft.felica = []byte{1, 2, 3, 4, 5, 6, 7, 8}

	h.o.RunCycle(context.Background())
	if got := h.rep.at[0]; got != 840*time.Millisecond {
		t.Fatalf("expected report after 840ms of playback, got %v", got)
	}

	// The committed timestamp is the read time, not the end of playback.
	if _, at := h.o.State().Last(); at != 0 {
		t.Fatalf("expected lastAt 0, got %v", at)
	}
}

func TestFeliCaHasPriority(t *testing.T) {
	h := newHarness(t)
	h.ft.felica = []byte{1, 1, 1, 1, 1, 1, 1, 1}
	h.ft.iso = []byte{2, 2, 2, 2}

	h.o.RunCycle(context.Background())
	for _, call := range *h.tr {
		if call == "poll ISO14443A" {
			t.Fatal("ISO14443A must not be polled after a FeliCa hit")
		}
	}
	if len(h.rep.records) != 1 || h.rep.records[0].Protocol != tag.FeliCa {
		t.Fatalf("expected a single FeliCa report, got %+v", h.rep.records)
	}
}

func TestISO14443AFallback(t *testing.T) {
	h := newHarness(t)
	h.ft.iso = []byte{0x04, 0xA1, 0xFF, 0x02}

	class, ok := h.o.RunCycle(context.Background())
	if !ok || class != dedup.New {
		t.Fatalf("expected new detection, got %s ok=%v", class, ok)
	}
	want := []string{
		"status 8a2be2",
		"poll FeliCa",
		"status ff4500",
		"poll ISO14443A",
		"brightness 14",
		"brightness 8",
		"report ISO14443A 04A1FF02",
	}
	if fmt.Sprint(*h.tr) != fmt.Sprint(want) {
		t.Fatalf("unexpected call order:\n got %v\nwant %v", *h.tr, want)
	}
}

func TestNoTag(t *testing.T) {
	h := newHarness(t)
	if _, ok := h.o.RunCycle(context.Background()); ok {
		t.Fatal("expected no tag")
	}
	if len(h.rep.records) != 0 || len(h.clock.Sleeps()) != 0 {
		t.Fatal("absence should neither report nor delay")
	}
	if h.strip.status != indicator.OrangeRed {
		t.Fatalf("status should be left on the last protocol polled, got %s", h.strip.status)
	}
}

func TestDuplicateSuppressedWithCooldown(t *testing.T) {
	h := newHarness(t)
	h.ft.felica = []byte{1, 2, 3, 4, 5, 6, 7, 8}

	h.o.RunCycle(context.Background())
	sleepsAfterNew := len(h.clock.Sleeps())
	h.reset()

	class, ok := h.o.RunCycle(context.Background())
	if !ok || class != dedup.Duplicate {
		t.Fatalf("expected duplicate, got %s ok=%v", class, ok)
	}
	want := []string{"status 8a2be2", "poll FeliCa"}
	if fmt.Sprint(*h.tr) != fmt.Sprint(want) {
		t.Fatalf("duplicate should not play feedback or report: %v", *h.tr)
	}

	sleeps := h.clock.Sleeps()
	if len(sleeps) != sleepsAfterNew+1 || sleeps[len(sleeps)-1] != 5*time.Millisecond {
		t.Fatalf("expected a single 5ms cooldown, got %v", sleeps[sleepsAfterNew:])
	}

	snap := h.o.Stats().Snapshot()
	if snap["cycles_total"] != 2 || snap["new_felica_total"] != 1 || snap["duplicate_suppressed_total"] != 1 {
		t.Fatalf("unexpected stats %v", snap)
	}
}

func TestHeldTagRetriggersAfterWindow(t *testing.T) {
	h := newHarness(t)
	h.ft.felica = []byte{1, 2, 3, 4, 5, 6, 7, 8}

	h.o.RunCycle(context.Background())
	h.clock.Set(2999 * time.Millisecond)
	if class, _ := h.o.RunCycle(context.Background()); class != dedup.Duplicate {
		t.Fatalf("expected duplicate inside window, got %s", class)
	}
	h.clock.Set(3000 * time.Millisecond)
	if class, _ := h.o.RunCycle(context.Background()); class != dedup.New {
		t.Fatalf("expected new once window elapsed, got %s", class)
	}
	if len(h.rep.records) != 2 {
		t.Fatalf("expected two reports, got %d", len(h.rep.records))
	}
}

func TestSwitchingTagsInsideWindow(t *testing.T) {
	h := newHarness(t)
	h.ft.felica = []byte{1, 2, 3, 4, 5, 6, 7, 8}
	h.o.RunCycle(context.Background())

	h.ft.felica = nil
	h.ft.iso = []byte{1, 2, 3, 5}
	if class, _ := h.o.RunCycle(context.Background()); class != dedup.New {
		t.Fatalf("a different tag should be new, got %s", class)
	}
}

func TestReportErrorCounted(t *testing.T) {
	h := newHarness(t)
	h.rep.err = errors.New("broker down")
	h.ft.iso = []byte{9, 9, 9, 9}

	if class, ok := h.o.RunCycle(context.Background()); !ok || class != dedup.New {
		t.Fatalf("report failure should not change classification, got %s ok=%v", class, ok)
	}
	if got := h.o.Stats().ReportErrors.Load(); got != 1 {
		t.Fatalf("expected one report error, got %d", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.o.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
