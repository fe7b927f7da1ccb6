package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

type collectSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *collectSink) Emit(_ context.Context, event Event) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *collectSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcherForwardsEvents(t *testing.T) {
	sink := &collectSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		d.Emit(ctx, Event{EventType: "test", Success: true})
	}
	d.Close()

	if got := sink.count(); got != 5 {
		t.Errorf("forwarded %d events, want 5", got)
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &collectSink{})
	if d != nil {
		t.Fatal("disabled dispatcher is not nil")
	}

	// Nil receiver methods are all safe.
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Error("nil dispatcher reports drops")
	}
}

func TestDropIfFullCountsDrops(t *testing.T) {
	blocked := make(chan struct{})
	sink := blockingSink{release: blocked}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	ctx := context.Background()
	// One event occupies the worker, one fills the buffer; the rest drop.
	for i := 0; i < 10; i++ {
		d.Emit(ctx, Event{EventType: "test"})
	}

	if d.Dropped() == 0 {
		t.Error("no drops recorded under pressure")
	}
	close(blocked)
	d.Close()
}

type blockingSink struct {
	release <-chan struct{}
}

func (s blockingSink) Emit(context.Context, Event) {
	<-s.release
}

func TestCloseDrainsBuffer(t *testing.T) {
	sink := &collectSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64}, sink)

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		d.Emit(ctx, Event{EventType: "test"})
	}
	d.Close()

	if got := sink.count(); got != 20 {
		t.Errorf("drained %d events, want 20", got)
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{
		Timestamp: time.Unix(1700000000, 0).UTC(),
		EventType: "login.password",
		Username:  "bob",
		Success:   true,
	})

	line := strings.TrimSpace(buf.String())
	var decoded Event
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("unmarshal %q: %v", line, err)
	}
	if decoded.EventType != "login.password" || decoded.Username != "bob" || !decoded.Success {
		t.Errorf("decoded = %+v", decoded)
	}
}
