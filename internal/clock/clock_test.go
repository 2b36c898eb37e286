package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func TestManual_FiresInDeadlineOrder(t *testing.T) {
	m := NewManual(epoch)
	var order []string

	m.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	m.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	m.AfterFunc(2*time.Second, func() { order = append(order, "b") })

	m.Advance(5 * time.Second)

	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("expected [a b c], got %v", order)
	}
	if got := m.Now(); !got.Equal(epoch.Add(5 * time.Second)) {
		t.Errorf("expected clock at +5s, got %v", got.Sub(epoch))
	}
}

func TestManual_NowDuringCallbackIsDeadline(t *testing.T) {
	m := NewManual(epoch)
	var seen time.Time
	m.AfterFunc(2*time.Second, func() { seen = m.Now() })

	m.Advance(10 * time.Second)

	if !seen.Equal(epoch.Add(2 * time.Second)) {
		t.Errorf("expected callback to observe +2s, got %v", seen.Sub(epoch))
	}
}

func TestManual_StopPreventsFiring(t *testing.T) {
	m := NewManual(epoch)
	fired := false
	timer := m.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("expected first Stop to return true")
	}
	if timer.Stop() {
		t.Error("expected second Stop to return false")
	}

	m.Advance(2 * time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
	if m.Pending() != 0 {
		t.Errorf("expected no pending timers, got %d", m.Pending())
	}
}

func TestManual_StopAfterFireReturnsFalse(t *testing.T) {
	m := NewManual(epoch)
	timer := m.AfterFunc(time.Second, func() {})
	m.Advance(time.Second)

	if timer.Stop() {
		t.Error("expected Stop after firing to return false")
	}
}

func TestManual_RecurringCallbacks(t *testing.T) {
	m := NewManual(epoch)
	ticks := 0
	var tick func()
	tick = func() {
		ticks++
		m.AfterFunc(time.Second, tick)
	}
	m.AfterFunc(time.Second, tick)

	m.Advance(5 * time.Second)

	if ticks != 5 {
		t.Errorf("expected 5 ticks, got %d", ticks)
	}
	if m.Pending() != 1 {
		t.Errorf("expected the next tick to be pending, got %d", m.Pending())
	}
}

func TestManual_AdvanceBackwardsIsNoop(t *testing.T) {
	m := NewManual(epoch)
	m.AdvanceTo(epoch.Add(-time.Hour))
	if !m.Now().Equal(epoch) {
		t.Errorf("expected clock unchanged, got %v", m.Now())
	}
}

func TestReal_AfterFunc(t *testing.T) {
	done := make(chan struct{})
	Real().AfterFunc(10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}
}
