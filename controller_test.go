package btpad

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// fakeSource is an in-memory Source for pipeline tests. Events pushed with
// push are yielded in order; fail makes the next read return err; Close
// behaves like a device node going away under a blocked reader.
type fakeSource struct {
	events chan RawEvent
	errc   chan error
	closed chan struct{}
	once   sync.Once
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		events: make(chan RawEvent, 64),
		errc:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (s *fakeSource) push(ev RawEvent) { s.events <- ev }
func (s *fakeSource) fail(err error)   { s.errc <- err }

func (s *fakeSource) ReadEvent() (RawEvent, error) {
	// Drain pending events before reporting failure, mirroring a real
	// kernel buffer.
	select {
	case ev := <-s.events:
		return ev, nil
	default:
	}
	select {
	case ev := <-s.events:
		return ev, nil
	case err := <-s.errc:
		return RawEvent{}, err
	case <-s.closed:
		return RawEvent{}, ErrSourceClosed
	}
}

func (s *fakeSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func testTable(t *testing.T) *Table {
	t.Helper()
	table, err := NewTable("test", []Entry{
		{Code: 0x130, Name: "A", Kind: KindButton},
		{Code: 0x03, Name: "LEFT_STICK_Y", Kind: KindAxis, Min: -32768, Max: 32767, Deadzone: 2000},
	})
	if err != nil {
		t.Fatalf("test table: %v", err)
	}
	return table
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

// TestController_ButtonAndDeadzoneScenario drives the documented example
// through the whole pipeline: A press, A release, then a stick sample
// inside the deadzone, observed in order on the update stream.
func TestController_ButtonAndDeadzoneScenario(t *testing.T) {
	src := newFakeSource()
	c, err := New(src, WithTable(testTable(t)), WithUpdates(16), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	c.Start()
	defer c.Stop()

	src.push(RawEvent{Type: evKeyType, Code: 0x130, Value: 1})
	src.push(RawEvent{Type: evKeyType, Code: 0x130, Value: 0})
	src.push(RawEvent{Type: evAbsType, Code: 0x03, Value: 100})

	want := []Update{
		{Name: "A", Value: 1},
		{Name: "A", Value: 0},
		{Name: "LEFT_STICK_Y", Value: 0}, // 100 is inside the 2000 deadzone
	}
	for i, w := range want {
		select {
		case got := <-c.Updates():
			if got != w {
				t.Errorf("update %d: expected %+v, got %+v", i, w, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for update %d", i)
		}
	}

	snap, running := c.Poll()
	if !running {
		t.Errorf("expected running=true")
	}
	if v, _ := snap.Value("A"); v != 0 {
		t.Errorf("A after release: expected 0, got %v", v)
	}
	if v, _ := snap.Value("LEFT_STICK_Y"); v != 0 {
		t.Errorf("LEFT_STICK_Y inside deadzone: expected 0, got %v", v)
	}
}

// TestController_UnmappedEventsDropped verifies unmapped codes change
// nothing: no snapshot mutation, no update emitted.
func TestController_UnmappedEventsDropped(t *testing.T) {
	src := newFakeSource()
	c, err := New(src, WithTable(testTable(t)), WithUpdates(16), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	c.Start()
	defer c.Stop()

	before, _ := c.Poll()

	// Unmapped noise, then one mapped marker event.
	src.push(RawEvent{Type: evAbsType, Code: 0x2a, Value: 9999})
	src.push(RawEvent{Type: evKeyType, Code: 0x1ff, Value: 1})
	src.push(RawEvent{Type: evKeyType, Code: 0x130, Value: 1})

	got := <-c.Updates()
	if got.Name != "A" {
		t.Fatalf("first update should be the marker, got %+v", got)
	}

	after, _ := c.Poll()
	if before.Len() != after.Len() {
		t.Errorf("unmapped events changed the control set: %d -> %d", before.Len(), after.Len())
	}
	for name, v := range after.Map() {
		if name == "A" {
			continue
		}
		if v != 0 {
			t.Errorf("control %s mutated by unmapped event: %v", name, v)
		}
	}
}

// TestController_Termination verifies that after a source failure every
// subsequent Poll reports running=false with the last snapshot preserved,
// and the update stream is closed.
func TestController_Termination(t *testing.T) {
	src := newFakeSource()
	c, err := New(src, WithTable(testTable(t)), WithUpdates(16), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	c.Start()

	src.push(RawEvent{Type: evKeyType, Code: 0x130, Value: 1})
	waitFor(t, func() bool {
		snap, _ := c.Poll()
		v, _ := snap.Value("A")
		return v == 1
	}, "press never reached the snapshot")

	src.fail(errors.New("device vanished"))
	waitFor(t, func() bool {
		_, running := c.Poll()
		return !running
	}, "running flag never dropped after source failure")

	// Terminal: repeated polls stay stopped, snapshot frozen.
	for i := 0; i < 5; i++ {
		snap, running := c.Poll()
		if running {
			t.Errorf("poll %d: expected running=false", i)
		}
		if v, _ := snap.Value("A"); v != 1 {
			t.Errorf("poll %d: last snapshot not preserved, A=%v", i, v)
		}
	}

	if _, open := <-c.Updates(); open {
		// One buffered update for the press is fine; the channel must
		// still be closed afterwards.
		if _, open := <-c.Updates(); open {
			t.Errorf("update stream not closed after producer exit")
		}
	}
}

// TestController_StopUnblocksRead verifies Stop returns promptly while the
// producer is blocked in ReadEvent, and is safe to call twice.
func TestController_StopUnblocksRead(t *testing.T) {
	src := newFakeSource()
	c, err := New(src, WithTable(testTable(t)), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	c.Start()

	done := make(chan struct{})
	go func() {
		c.Stop()
		c.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while producer was blocked")
	}

	if _, running := c.Poll(); running {
		t.Errorf("expected running=false after Stop")
	}
}

// TestController_PollBeforeStart verifies a constructed-but-unstarted
// controller serves a complete neutral snapshot without running.
func TestController_PollBeforeStart(t *testing.T) {
	src := newFakeSource()
	c, err := New(src, WithTable(testTable(t)), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	snap, running := c.Poll()
	if running {
		t.Errorf("expected running=false before Start")
	}
	if snap.Len() != 2 {
		t.Errorf("expected full neutral control set, got %d controls", snap.Len())
	}
}

// TestController_LastWriteWins verifies two raw codes sharing a logical
// name resolve by arrival order.
func TestController_LastWriteWins(t *testing.T) {
	table, err := NewTable("test", []Entry{
		{Code: 0x220, Name: "PAD_UP", Kind: KindButton},
		{Code: 0x11, Name: "PAD_UP", Kind: KindAxis, Min: -1, Max: 1, Invert: true},
	})
	if err != nil {
		t.Fatalf("table: %v", err)
	}

	src := newFakeSource()
	c, err := New(src, WithTable(table), WithUpdates(16), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	c.Start()
	defer c.Stop()

	src.push(RawEvent{Type: evKeyType, Code: 0x220, Value: 1}) // button: 1
	src.push(RawEvent{Type: evAbsType, Code: 0x11, Value: -1}) // axis, inverted: +1... then
	src.push(RawEvent{Type: evAbsType, Code: 0x11, Value: 0})  // axis center: 0

	for i := 0; i < 3; i++ {
		<-c.Updates()
	}

	snap, _ := c.Poll()
	if v, _ := snap.Value("PAD_UP"); v != 0 {
		t.Errorf("expected last arrival to win (0), got %v", v)
	}
}

// TestController_RateCountsUnmapped verifies the meter sits in front of
// the mapping lookup.
func TestController_RateCountsUnmapped(t *testing.T) {
	src := newFakeSource()
	c, err := New(src, WithTable(testTable(t)), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	c.Start()
	defer c.Stop()

	for i := 0; i < 20; i++ {
		src.push(RawEvent{Type: evAbsType, Code: 0x2a, Value: int32(i)})
	}
	waitFor(t, func() bool { return c.Rate() >= 20 }, "meter never saw the unmapped events")
}

// TestNew_BadMapping verifies construction fails before any goroutine
// starts when the mapping is invalid.
func TestNew_BadMapping(t *testing.T) {
	src := newFakeSource()
	if _, err := New(src, WithFamily("gamecube")); err == nil {
		t.Fatal("expected error for unknown family")
	}

	var ce *ConfigError
	_, err := New(src, WithFamily("gamecube"))
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
}
