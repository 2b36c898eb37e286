package notify

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
)

func note(seq uint64) models.Notification {
	return models.Notification{EventType: models.EventTranscriptUpdated, Sequence: seq}
}

func TestAsync_DeliversInOrderAndDrainsOnClose(t *testing.T) {
	var mu sync.Mutex
	var got []uint64
	a := NewAsync("test", ObserverFunc(func(n models.Notification) {
		mu.Lock()
		got = append(got, n.Sequence)
		mu.Unlock()
	}), 16)

	for i := uint64(1); i <= 5; i++ {
		a.Notify(note(i))
	}
	a.Close()

	if len(got) != 5 {
		t.Fatalf("expected 5 deliveries, got %v", got)
	}
	for i, seq := range got {
		if seq != uint64(i+1) {
			t.Errorf("position %d: expected %d, got %d", i, i+1, seq)
		}
	}
}

func TestAsync_DropsWhenFull(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var got []uint64
	var once sync.Once

	a := NewAsync("test-full", ObserverFunc(func(n models.Notification) {
		once.Do(func() { close(started) })
		<-release
		mu.Lock()
		got = append(got, n.Sequence)
		mu.Unlock()
	}), 1)

	a.Notify(note(1))
	<-started
	a.Notify(note(2))
	a.Notify(note(3))
	close(release)
	a.Close()

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("expected [1 2] with 3 dropped, got %v", got)
	}
}

func TestAsync_NotifyAfterCloseIsIgnored(t *testing.T) {
	a := NewAsync("test-closed", ObserverFunc(func(models.Notification) {}), 1)
	a.Close()
	a.Close()
	a.Notify(note(1))
}

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	s1 := b.Subscribe()
	s2 := b.Subscribe()
	if b.Len() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", b.Len())
	}

	b.Notify(note(7))

	for i, s := range []*Subscription{s1, s2} {
		select {
		case n := <-s.C:
			if n.Sequence != 7 {
				t.Errorf("subscriber %d: expected sequence 7, got %d", i, n.Sequence)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out", i)
		}
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster(1)
	s := b.Subscribe()
	s.Close()
	s.Close()

	if _, ok := <-s.C; ok {
		t.Error("expected closed channel")
	}
	if b.Len() != 0 {
		t.Errorf("expected no subscribers, got %d", b.Len())
	}
}

func TestBroadcaster_RunExitClosesSubscriptions(t *testing.T) {
	b := NewBroadcaster(1)
	ctx, cancel := context.WithCancel(context.Background())
	s := b.Subscribe()

	done := make(chan struct{})
	go func() {
		_ = b.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	select {
	case _, ok := <-s.C:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}
}

func TestWebSocketHandler_StreamsStateThenNotifications(t *testing.T) {
	b := NewBroadcaster(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	state := func() models.State {
		return models.State{
			IsRecording: true,
			MeetingID:   "meeting-ws",
			Transcript:  []models.TranscriptEntry{{Speaker: "Alice", Text: "already said this"}},
		}
	}
	srv := httptest.NewServer(WebSocketHandler(b, state))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var initial models.Notification
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if initial.MeetingID != "meeting-ws" || len(initial.Transcript) != 1 {
		t.Errorf("unexpected initial state %+v", initial)
	}
	if initial.IsRecording == nil || !*initial.IsRecording {
		t.Error("expected recording flag in initial state")
	}

	b.Notify(models.Notification{EventType: models.EventTranscriptCleared, Sequence: 9})

	var next models.Notification
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read notification: %v", err)
	}
	if next.EventType != models.EventTranscriptCleared || next.Sequence != 9 {
		t.Errorf("unexpected notification %+v", next)
	}
}
