package logic

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

var testStart = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestController(t *testing.T, cfg Config) *Controller {
	t.Helper()
	c, err := NewController(cfg, testStart)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c
}

// submit feeds a reading and fails the test on error.
func submit(t *testing.T, c *Controller, raw float64) Result {
	t.Helper()
	res, err := c.SubmitReading(raw, testStart)
	if err != nil {
		t.Fatalf("SubmitReading(%v): %v", raw, err)
	}
	return res
}

func TestNewController(t *testing.T) {
	c := newTestController(t, DefaultConfig())
	if c.HeaterOn() {
		t.Error("new controller should start with heater OFF")
	}
	if c.State() != StateOff {
		t.Errorf("State: got %s, want OFF", c.State())
	}
	if c.HistoryLen() != 0 {
		t.Errorf("HistoryLen: got %d, want 0", c.HistoryLen())
	}
	if _, ok := c.Smoothed(); ok {
		t.Error("smoothed value should be unavailable before any reading")
	}
	if _, ok := c.MaxTemp(); ok {
		t.Error("max temp should be unavailable before any reading")
	}
	if !c.lastHeartbeat.Equal(testStart) {
		t.Errorf("expected lastHeartbeat %v, got %v", testStart, c.lastHeartbeat)
	}
}

func TestNewControllerInvalidConfig(t *testing.T) {
	tests := []Config{
		{Thresholds: Thresholds{On: 150, Off: 130}, WindowSize: 7},
		{Thresholds: DefaultThresholds(), WindowSize: 0},
		{Thresholds: DefaultThresholds(), WindowSize: -3},
	}
	for _, cfg := range tests {
		_, err := NewController(cfg, testStart)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("NewController(%+v): got %v, want ErrInvalidConfig", cfg, err)
		}
	}
}

func TestPrefillMakesFirstReadingAvailable(t *testing.T) {
	c := newTestController(t, DefaultConfig())

	res := submit(t, c, 140)
	if !res.Available {
		t.Fatal("expected first reading to be available with prefill")
	}
	if res.Smoothed != 140 {
		t.Errorf("Smoothed: got %v, want 140", res.Smoothed)
	}
	if c.HistoryLen() != 7 {
		t.Errorf("HistoryLen: got %d, want 7", c.HistoryLen())
	}
	if res.HeaterOn {
		t.Error("140 is inside the deadband, heater should stay OFF")
	}
}

func TestPrefillFirstReadingBelowOnTurnsHeaterOn(t *testing.T) {
	c := newTestController(t, DefaultConfig())

	res := submit(t, c, 120)
	if !res.HeaterOn {
		t.Error("expected heater ON on first reading below on temp")
	}
	if res.Event == nil || res.Event.Type != EventHeaterOn {
		t.Fatalf("expected HEATER_ON event, got %+v", res.Event)
	}
}

func TestWithoutPrefillUnavailableUntilFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Prefill = false
	c := newTestController(t, cfg)

	for i := 0; i < 6; i++ {
		res := submit(t, c, 100)
		if res.Available {
			t.Fatalf("reading %d: expected unavailable before window is full", i+1)
		}
		if res.HeaterOn {
			t.Fatalf("reading %d: no decision should be made before window is full", i+1)
		}
		if res.Event != nil {
			t.Fatalf("reading %d: unexpected event %+v", i+1, res.Event)
		}
	}

	res := submit(t, c, 100)
	if !res.Available {
		t.Fatal("expected seventh reading to be available")
	}
	if !res.HeaterOn {
		t.Error("expected heater ON once window is full of 100s")
	}
}

func TestHysteresisSequence(t *testing.T) {
	c := newTestController(t, Config{Thresholds: Thresholds{On: 130, Off: 150}, WindowSize: 1})

	steps := []struct {
		raw       float64
		want      bool
		wantEvent EventType
	}{
		{129.9, true, EventHeaterOn},
		{140.0, true, ""},
		{150.1, false, EventHeaterOff},
		{130.0, false, ""},
	}

	for i, s := range steps {
		res := submit(t, c, s.raw)
		if res.HeaterOn != s.want {
			t.Errorf("step %d (%v): HeaterOn got %v, want %v", i, s.raw, res.HeaterOn, s.want)
		}
		if s.wantEvent == "" {
			if res.Event != nil {
				t.Errorf("step %d: unexpected event %s", i, res.Event.Type)
			}
			continue
		}
		if res.Event == nil {
			t.Errorf("step %d: expected %s event, got none", i, s.wantEvent)
			continue
		}
		if res.Event.Type != s.wantEvent {
			t.Errorf("step %d: event got %s, want %s", i, res.Event.Type, s.wantEvent)
		}
	}
}

func TestEventCarriesReadingValues(t *testing.T) {
	c := newTestController(t, DefaultConfig())
	now := testStart.Add(time.Minute)

	res, err := c.SubmitReading(100, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := res.Event
	if e == nil {
		t.Fatal("expected an event")
	}
	if !e.Timestamp.Equal(now) {
		t.Errorf("Timestamp: got %v, want %v", e.Timestamp, now)
	}
	if e.State != StateOn {
		t.Errorf("State: got %s, want ON", e.State)
	}
	if e.Raw != 100 || e.Smoothed != 100 {
		t.Errorf("values: got raw=%v smoothed=%v, want 100/100", e.Raw, e.Smoothed)
	}
}

func TestMedianFilterSuppressesSpike(t *testing.T) {
	c := newTestController(t, DefaultConfig())
	submit(t, c, 140)

	// A single low spike must not turn the heater on
	res := submit(t, c, 20)
	if res.HeaterOn {
		t.Error("single spike should be filtered out")
	}
	if res.Smoothed != 140 {
		t.Errorf("Smoothed: got %v, want 140", res.Smoothed)
	}
}

func TestMedianFilterFollowsSustainedDrop(t *testing.T) {
	c := newTestController(t, DefaultConfig())
	submit(t, c, 140)

	var res Result
	for i := 0; i < 4; i++ {
		res = submit(t, c, 120)
		if i < 3 && res.HeaterOn {
			t.Fatalf("reading %d: heater turned on before the majority dropped", i+1)
		}
	}
	if !res.HeaterOn {
		t.Error("expected heater ON once most of the window is below on temp")
	}
}

func TestSteadyStateIsIdempotent(t *testing.T) {
	c := newTestController(t, DefaultConfig())
	first := submit(t, c, 145)

	for i := 0; i < 20; i++ {
		res := submit(t, c, 145)
		if res.Smoothed != first.Smoothed {
			t.Fatalf("iteration %d: median changed from %v to %v", i, first.Smoothed, res.Smoothed)
		}
		if res.HeaterOn != first.HeaterOn {
			t.Fatalf("iteration %d: heater state changed", i)
		}
		if res.Event != nil {
			t.Fatalf("iteration %d: unexpected event", i)
		}
		if c.HistoryLen() != 7 {
			t.Fatalf("iteration %d: HistoryLen %d, want 7", i, c.HistoryLen())
		}
	}
}

func TestControllerEvictionOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Prefill = false
	c := newTestController(t, cfg)

	for v := 10.0; v <= 80; v += 10 {
		submit(t, c, v)
	}

	want := []float64{20, 30, 40, 50, 60, 70, 80}
	if got := c.History(); !reflect.DeepEqual(got, want) {
		t.Errorf("history: got %v, want %v", got, want)
	}
}

func TestNonFiniteReadingsRejected(t *testing.T) {
	c := newTestController(t, DefaultConfig())
	submit(t, c, 140)
	before := c.History()

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		res, err := c.SubmitReading(v, testStart)
		if !errors.Is(err, ErrNonFinite) {
			t.Errorf("SubmitReading(%v): got error %v, want ErrNonFinite", v, err)
		}
		if res.Available {
			t.Errorf("SubmitReading(%v): result should not be available", v)
		}
	}

	if got := c.History(); !reflect.DeepEqual(got, before) {
		t.Errorf("history changed by rejected readings: got %v, want %v", got, before)
	}
	if c.Rejected() != 3 {
		t.Errorf("Rejected: got %d, want 3", c.Rejected())
	}
	if s, _ := c.Smoothed(); s != 140 {
		t.Errorf("Smoothed: got %v, want 140", s)
	}
}

func TestNonFiniteFirstReadingDoesNotPrefill(t *testing.T) {
	c := newTestController(t, DefaultConfig())
	if _, err := c.SubmitReading(math.NaN(), testStart); err == nil {
		t.Fatal("expected error")
	}
	if c.HistoryLen() != 0 {
		t.Errorf("HistoryLen: got %d, want 0", c.HistoryLen())
	}

	res := submit(t, c, 145)
	if !res.Available || c.HistoryLen() != 7 {
		t.Errorf("expected prefill on first finite reading, len=%d", c.HistoryLen())
	}
}

func TestMaxTempTracksRawReadings(t *testing.T) {
	c := newTestController(t, DefaultConfig())
	for _, v := range []float64{140, 152.5, 90, 151} {
		submit(t, c, v)
	}
	max, ok := c.MaxTemp()
	if !ok || max != 152.5 {
		t.Errorf("MaxTemp: got (%v, %v), want (152.5, true)", max, ok)
	}
}

func TestMaxTempNegativeReadings(t *testing.T) {
	c := newTestController(t, DefaultConfig())
	submit(t, c, -12)
	submit(t, c, -20)
	if max, _ := c.MaxTemp(); max != -12 {
		t.Errorf("MaxTemp: got %v, want -12", max)
	}
}

func TestEventCountsIncrementOnTransition(t *testing.T) {
	c := newTestController(t, Config{Thresholds: DefaultThresholds(), WindowSize: 1})

	for _, v := range []float64{120, 160, 120, 140, 160} {
		submit(t, c, v)
	}

	counts := c.EventCountsSnapshot()
	if counts.HeaterOn != 2 {
		t.Errorf("HeaterOn: got %d, want 2", counts.HeaterOn)
	}
	if counts.HeaterOff != 2 {
		t.Errorf("HeaterOff: got %d, want 2", counts.HeaterOff)
	}
}

func TestResultState(t *testing.T) {
	if (Result{HeaterOn: true}).State() != StateOn {
		t.Error("expected ON")
	}
	if (Result{}).State() != StateOff {
		t.Error("expected OFF")
	}
}

func TestCheckHeartbeatDisabledWithZeroInterval(t *testing.T) {
	c := newTestController(t, DefaultConfig())

	// Should return nil with zero interval (disabled)
	if hb := c.CheckHeartbeat(testStart.Add(15*time.Minute), 0); hb != nil {
		t.Error("should not return heartbeat when interval is 0 (disabled)")
	}

	// Should also return nil with negative interval
	if hb := c.CheckHeartbeat(testStart.Add(15*time.Minute), -1*time.Minute); hb != nil {
		t.Error("should not return heartbeat when interval is negative")
	}
}

func TestCheckHeartbeatBeforeInterval(t *testing.T) {
	c := newTestController(t, DefaultConfig())

	if hb := c.CheckHeartbeat(testStart.Add(14*time.Minute), 15*time.Minute); hb != nil {
		t.Error("should not return heartbeat before interval")
	}
}

func TestCheckHeartbeatAtInterval(t *testing.T) {
	c := newTestController(t, DefaultConfig())
	submit(t, c, 100)

	checkTime := testStart.Add(15 * time.Minute)
	hb := c.CheckHeartbeat(checkTime, 15*time.Minute)
	if hb == nil {
		t.Fatal("should return heartbeat at interval")
	}
	if !hb.Timestamp.Equal(checkTime) {
		t.Errorf("Timestamp: got %v, want %v", hb.Timestamp, checkTime)
	}
	if hb.Uptime != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", hb.Uptime)
	}
	if hb.Counts.HeaterOn != 1 {
		t.Errorf("Counts.HeaterOn: got %d, want 1", hb.Counts.HeaterOn)
	}
}

func TestCheckHeartbeatUpdatesLastTime(t *testing.T) {
	c := newTestController(t, DefaultConfig())

	first := testStart.Add(15 * time.Minute)
	if hb := c.CheckHeartbeat(first, 15*time.Minute); hb == nil {
		t.Fatal("expected first heartbeat")
	}

	// Immediately after, no new heartbeat
	if hb := c.CheckHeartbeat(first.Add(time.Minute), 15*time.Minute); hb != nil {
		t.Error("should not return heartbeat right after previous one")
	}

	second := first.Add(15 * time.Minute)
	hb := c.CheckHeartbeat(second, 15*time.Minute)
	if hb == nil {
		t.Fatal("expected second heartbeat")
	}
	if hb.Uptime != 30*time.Minute {
		t.Errorf("Uptime: got %v, want 30m", hb.Uptime)
	}
}
