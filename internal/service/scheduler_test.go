package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"surf_clock/internal/conditions"
	"surf_clock/internal/models"
	"surf_clock/internal/render"
	"surf_clock/internal/transport"
)

const goodResponse = "HTTP/1.0 200 OK\r\n" +
	"Date: Sun, 10 Mar 2024 00:30:00 GMT\r\n" +
	"Content-Type: application/json\r\n\r\n" +
	`{"data":{"conditions":[{"am":{"rating":"GOOD","maxHeight":4,"minHeight":2}}]}}`

// ---- Fakes ----

type fetchResult struct {
	raw string
	err error

	timedOut, full bool
}

// scriptedFetcher returns results in order and repeats the last one.
type scriptedFetcher struct {
	results []fetchResult
	calls   int
}

func (f *scriptedFetcher) Fetch(ctx context.Context, phase func(transport.Phase)) (transport.Attempt, error) {
	r := f.results[min(f.calls, len(f.results)-1)]
	f.calls++
	if phase != nil {
		phase(transport.PhaseConnecting)
	}
	if r.err != nil {
		var te *transport.Error
		outcome := transport.OutcomeConnectFailure
		if errors.As(r.err, &te) {
			outcome = te.Outcome
		}
		return transport.Attempt{Outcome: outcome}, r.err
	}
	if phase != nil {
		phase(transport.PhaseSending)
		phase(transport.PhaseReceiving)
	}
	return transport.Attempt{
		Raw:        []byte(r.raw),
		N:          len(r.raw),
		Outcome:    transport.OutcomeSuccess,
		TimedOut:   r.timedOut,
		BufferFull: r.full,
	}, nil
}

// hookedStateRepo is a StateRepo safe for concurrent use. onLoad runs once,
// outside the lock, after the first Load has read the row.
type hookedStateRepo struct {
	mu     sync.Mutex
	state  models.ClockState
	onLoad func()
}

func (r *hookedStateRepo) Load(ctx context.Context) (models.ClockState, error) {
	r.mu.Lock()
	st := r.state
	hook := r.onLoad
	r.onLoad = nil
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return st, nil
}

func (r *hookedStateRepo) Save(ctx context.Context, st models.ClockState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st.ID = 1
	r.state = st
	return nil
}

func (r *hookedStateRepo) get() models.ClockState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func transportErr(o transport.Outcome) error {
	return &transport.Error{Outcome: o, Err: errors.New("boom")}
}

// countingStrip and countingDisplay count hardware pushes.
type countingStrip struct {
	refreshes int
	pixels    int
	fail      bool
}

func (c *countingStrip) Clear(time.Duration) error { return nil }
func (c *countingStrip) SetPixel(int, uint8, uint8, uint8) error {
	c.pixels++
	return nil
}
func (c *countingStrip) Refresh(time.Duration) error {
	if c.fail {
		return errors.New("rmt timeout")
	}
	c.refreshes++
	return nil
}

type countingDisplay struct {
	refreshes int
}

func (c *countingDisplay) ClearScreen(byte) error                               { return nil }
func (c *countingDisplay) DrawGlyph(int, int, rune) error                       { return nil }
func (c *countingDisplay) DrawString(int, int, string, int, render.Align) error { return nil }
func (c *countingDisplay) Refresh() error {
	c.refreshes++
	return nil
}

type harness struct {
	fetcher *scriptedFetcher
	strip   *countingStrip
	display *countingDisplay
	states  *monitoringStateRepoStub
	events  *fakeEventRepo
	sched   *SchedulerService
	delays  []time.Duration
}

var testSchedule = SchedulerConfig{Interval: 7 * time.Second, Backoff: 3 * time.Second}

func newHarness(results ...fetchResult) *harness {
	h := &harness{
		fetcher: &scriptedFetcher{results: results},
		strip:   &countingStrip{},
		display: &countingDisplay{},
		states:  &monitoringStateRepoStub{},
		events:  &fakeEventRepo{},
	}
	seq := render.NewSequencer(h.strip, h.display, render.Config{
		Width:      128,
		FontSize:   16,
		GlyphWidth: 16,
		LabelRow:   42,
		Location:   time.FixedZone("UTC-07", -25200),
	}, nil)
	h.sched = NewSchedulerService(h.fetcher, seq, h.states, h.events, testSchedule, nil)
	return h
}

// runCycles runs the loop until n delays have been requested.
func (h *harness) runCycles(t *testing.T, n int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.sched.WithSleep(func(ctx context.Context, d time.Duration) error {
		if h.sched.State() != StateDelaying {
			t.Errorf("sleep outside Delaying: %v", h.sched.State())
		}
		h.delays = append(h.delays, d)
		if len(h.delays) == n {
			cancel()
			return ctx.Err()
		}
		return nil
	})

	done := make(chan struct{})
	go func() {
		h.sched.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("scheduler did not stop")
	}
}

// ---- Tests ----

func TestScheduler_ThreeFailuresThenSuccess(t *testing.T) {
	h := newHarness(
		fetchResult{err: transportErr(transport.OutcomeDNSFailure)},
		fetchResult{err: transportErr(transport.OutcomeConnectFailure)},
		fetchResult{err: transportErr(transport.OutcomeReceiveFailure)},
		fetchResult{raw: goodResponse},
	)
	h.runCycles(t, 4)

	b, i := testSchedule.Backoff, testSchedule.Interval
	if want := []time.Duration{b, b, b, i}; !reflect.DeepEqual(h.delays, want) {
		t.Fatalf("delays=%v want %v", h.delays, want)
	}
	if h.strip.refreshes != 1 || h.display.refreshes != 1 {
		t.Fatalf("hardware pushes strip=%d display=%d, want 1 each", h.strip.refreshes, h.display.refreshes)
	}
	if h.strip.pixels != 4 {
		t.Fatalf("pixels=%d want 4", h.strip.pixels)
	}
	want := []string{models.EventFetchFailed, models.EventFetchFailed, models.EventFetchFailed, models.EventRendered}
	if got := h.events.types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events=%v want %v", got, want)
	}
	if got := h.events.appended[2].Metadata.(map[string]any)["outcome"]; got != "receive-failure" {
		t.Fatalf("outcome metadata=%v", got)
	}

	st := h.states.loadResp
	if st.Rating != "GOOD" || st.Red != 255 || st.Green != 145 || st.Blue != 0 || st.LEDCount != 4 {
		t.Fatalf("state=%+v", st)
	}
	if st.DisplayTime != "17:30" || st.Label != "GOOD" || st.ConsecutiveFailures != 0 || st.LastOutcome != models.EventRendered {
		t.Fatalf("state=%+v", st)
	}
	if h.sched.State() != StateIdle {
		t.Fatalf("state after stop=%v", h.sched.State())
	}
}

func TestScheduler_ProcessingFailuresBackOff(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"no separator", "HTTP/1.0 200 OK\r\nDate: Sun, 10 Mar 2024 00:30:00 GMT\r\n", models.EventFramingError},
		{"syntax", "HTTP/1.0 200 OK\r\n\r\n<html>", models.EventSyntaxError},
		{
			"schema",
			"HTTP/1.0 200 OK\r\n\r\n" + `{"data":{"conditions":[` +
				`{"am":{"rating":"GOOD","maxHeight":4,"minHeight":2}},` +
				`{"am":{"rating":"FAIR","maxHeight":3}}]}}`,
			models.EventSchemaError,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(fetchResult{raw: tc.raw})
			d := h.sched.RunOnce(context.Background())
			if d != testSchedule.Backoff {
				t.Fatalf("delay=%v want backoff", d)
			}
			if h.strip.refreshes != 0 || h.display.refreshes != 0 || h.strip.pixels != 0 {
				t.Fatalf("no render expected, strip=%d display=%d", h.strip.refreshes, h.display.refreshes)
			}
			if got := h.events.types(); len(got) != 1 || got[0] != tc.want {
				t.Fatalf("events=%v want [%s]", got, tc.want)
			}
			if h.states.loadResp.ConsecutiveFailures != 1 || h.states.loadResp.LastOutcome != tc.want {
				t.Fatalf("state=%+v", h.states.loadResp)
			}
		})
	}
}

func TestScheduler_FlatRatingUsesFallbackColor(t *testing.T) {
	raw := "HTTP/1.0 200 OK\r\n\r\n" + `{"data":{"conditions":[{"am":{"rating":"FLAT","maxHeight":1,"minHeight":0}}]}}`
	h := newHarness(fetchResult{raw: raw})
	if d := h.sched.RunOnce(context.Background()); d != testSchedule.Interval {
		t.Fatalf("delay=%v", d)
	}
	st := h.states.loadResp
	if st.Red != 100 || st.Green != 0 || st.Blue != 0 {
		t.Fatalf("color=(%d,%d,%d)", st.Red, st.Green, st.Blue)
	}
	if st.DisplayTime != render.NoTime {
		t.Fatalf("display time=%q, want placeholder", st.DisplayTime)
	}
}

func TestScheduler_HardwareErrorBacksOff(t *testing.T) {
	h := newHarness(fetchResult{raw: goodResponse})
	h.strip.fail = true
	if d := h.sched.RunOnce(context.Background()); d != testSchedule.Backoff {
		t.Fatalf("delay=%v want backoff", d)
	}
	if got := h.events.types(); len(got) != 1 || got[0] != models.EventHardwareError {
		t.Fatalf("events=%v", got)
	}
}

func TestScheduler_CountsConsecutiveFailures(t *testing.T) {
	h := newHarness(
		fetchResult{err: transportErr(transport.OutcomeSendFailure)},
		fetchResult{err: transportErr(transport.OutcomeSendFailure)},
		fetchResult{raw: goodResponse},
	)
	ctx := context.Background()
	h.sched.RunOnce(ctx)
	h.sched.RunOnce(ctx)
	if h.states.loadResp.ConsecutiveFailures != 2 {
		t.Fatalf("failures=%d", h.states.loadResp.ConsecutiveFailures)
	}
	h.sched.RunOnce(ctx)
	if h.states.loadResp.ConsecutiveFailures != 0 {
		t.Fatalf("failures after success=%d", h.states.loadResp.ConsecutiveFailures)
	}
}

func TestScheduler_PausedSkipsFetch(t *testing.T) {
	h := newHarness(fetchResult{raw: goodResponse})
	if err := h.sched.SetPaused(context.Background(), true); err != nil {
		t.Fatalf("SetPaused: %v", err)
	}
	if d := h.sched.RunOnce(context.Background()); d != testSchedule.Interval {
		t.Fatalf("delay=%v", d)
	}
	if h.fetcher.calls != 0 || len(h.events.appended) != 0 {
		t.Fatalf("paused scheduler must not fetch: calls=%d events=%d", h.fetcher.calls, len(h.events.appended))
	}
}

func TestScheduler_SetPausedKeepsLastFrame(t *testing.T) {
	h := newHarness()
	h.states.loadResp = models.ClockState{ID: 1, Rating: "EPIC", LEDCount: 9, DisplayTime: "06:15"}
	ctx := context.Background()

	if err := h.sched.SetPaused(ctx, true); err != nil {
		t.Fatalf("SetPaused: %v", err)
	}
	st := h.states.loadResp
	if st.Rating != "EPIC" || st.LEDCount != 9 || st.DisplayTime != "06:15" || !st.Paused {
		t.Fatalf("state=%+v", st)
	}
	if !h.sched.Paused() {
		t.Fatalf("scheduler not paused")
	}

	if err := h.sched.SetPaused(ctx, false); err != nil {
		t.Fatalf("SetPaused: %v", err)
	}
	if h.states.loadResp.Paused || h.sched.Paused() {
		t.Fatalf("resume not applied")
	}
}

func TestScheduler_SetPausedNotAppliedUnlessSaved(t *testing.T) {
	boom := errors.New("db locked")
	tests := []struct {
		name    string
		loadErr error
		saveErr error
	}{
		{"load fails", boom, nil},
		{"save fails", nil, boom},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(fetchResult{raw: goodResponse})
			h.states.loadErr = tc.loadErr
			h.states.saveErr = tc.saveErr

			if err := h.sched.SetPaused(context.Background(), true); !errors.Is(err, boom) {
				t.Fatalf("expected %v, got %v", boom, err)
			}
			if h.sched.Paused() {
				t.Fatalf("pause applied although it was not stored")
			}
			h.sched.RunOnce(context.Background())
			if h.fetcher.calls != 1 {
				t.Fatalf("cycle should still run, calls=%d", h.fetcher.calls)
			}
		})
	}
}

func TestScheduler_PauseDuringCycleIsNotOverwritten(t *testing.T) {
	h := newHarness(fetchResult{raw: goodResponse})
	repo := &hookedStateRepo{}
	h.sched.stateRepo = repo

	pauseDone := make(chan error, 1)
	repo.onLoad = func() {
		// Pause between the cycle's read and its write of the state row.
		go func() {
			pauseDone <- NewControlService(h.sched, &fakeEventRepo{}).Pause(context.Background())
		}()
		select {
		case err := <-pauseDone:
			pauseDone <- err
		case <-time.After(50 * time.Millisecond):
		}
	}

	if d := h.sched.RunOnce(context.Background()); d != testSchedule.Interval {
		t.Fatalf("delay=%v", d)
	}
	select {
	case err := <-pauseDone:
		if err != nil {
			t.Fatalf("Pause: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("pause did not finish")
	}

	st := repo.get()
	if !st.Paused || !h.sched.Paused() {
		t.Fatalf("pause lost: stored=%v scheduler=%v", st.Paused, h.sched.Paused())
	}
	if st.LastOutcome != models.EventRendered || st.Rating != "GOOD" {
		t.Fatalf("cycle result lost: %+v", st)
	}
}

func TestScheduler_TruncatedResponseIsFlagged(t *testing.T) {
	tests := []struct {
		name           string
		res            fetchResult
		timedOut, full bool
	}{
		{"clean EOF", fetchResult{raw: goodResponse}, false, false},
		{"timeout after data", fetchResult{raw: goodResponse, timedOut: true}, true, false},
		{"buffer full", fetchResult{raw: goodResponse, full: true}, false, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(tc.res)
			if d := h.sched.RunOnce(context.Background()); d != testSchedule.Interval {
				t.Fatalf("delay=%v", d)
			}
			if len(h.events.appended) != 1 {
				t.Fatalf("events=%v", h.events.types())
			}
			meta := h.events.appended[0].Metadata.(map[string]any)
			if meta["truncated_by_timeout"] != tc.timedOut || meta["buffer_full"] != tc.full {
				t.Fatalf("metadata=%v", meta)
			}
			if meta["bytes"] != len(goodResponse) {
				t.Fatalf("bytes=%v", meta["bytes"])
			}
		})
	}
}

func TestScheduler_RepositoryErrorsDoNotStopTheCycle(t *testing.T) {
	h := newHarness(fetchResult{raw: goodResponse})
	h.states.loadErr = errors.New("db locked")
	h.states.saveErr = errors.New("db locked")
	h.events.appendErr = errors.New("db locked")
	if d := h.sched.RunOnce(context.Background()); d != testSchedule.Interval {
		t.Fatalf("delay=%v", d)
	}
	if h.strip.refreshes != 1 {
		t.Fatalf("render must still happen")
	}
}

func TestScheduler_WakeEndsDelay(t *testing.T) {
	h := newHarness(fetchResult{raw: goodResponse})
	if !h.sched.Wake() {
		t.Fatalf("first wake should queue")
	}
	if h.sched.Wake() {
		t.Fatalf("second wake should report already pending")
	}
	start := time.Now()
	if err := h.sched.wait(context.Background(), time.Hour); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("wake did not cut the delay short")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.sched.wait(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestScheduler_CancelBeforeStartRunsNothing(t *testing.T) {
	h := newHarness(fetchResult{raw: goodResponse})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.sched.Run(ctx)
	if h.fetcher.calls != 0 {
		t.Fatalf("calls=%d", h.fetcher.calls)
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]error{
		models.EventFetchFailed:   fmt.Errorf("wrapped: %w", transportErr(transport.OutcomeDNSFailure)),
		models.EventSyntaxError:   fmt.Errorf("%w: eof", conditions.ErrSyntax),
		models.EventSchemaError:   &conditions.FieldError{Index: 0, Field: "am"},
		models.EventHardwareError: fmt.Errorf("%w: strip", render.ErrHardware),
	}
	for want, err := range cases {
		if got := classify(err); got != want {
			t.Fatalf("classify(%v)=%s want %s", err, got, want)
		}
	}
}

func TestState_String(t *testing.T) {
	if StateReceiving.String() != "RECEIVING" || State(99).String() != "STATE(99)" {
		t.Fatalf("unexpected names")
	}
}
