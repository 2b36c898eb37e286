package grpcapi

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/notify"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability/metrics"
)

type fakeController struct {
	mu        sync.Mutex
	recording bool
	entries   []models.TranscriptEntry
	fragments []models.Fragment
}

func (c *fakeController) Ingest(f models.Fragment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fragments = append(c.fragments, f)
}

func (c *fakeController) StartRecording() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recording = true
}

func (c *fakeController) StopRecording() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recording = false
}

func (c *fakeController) ClearTranscript() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
}

func (c *fakeController) State() models.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := "2025-03-14T09:00:00.000Z"
	return models.State{
		IsRecording:      c.recording,
		MeetingID:        "m-1",
		MeetingStartTime: &start,
		Transcript:       append([]models.TranscriptEntry(nil), c.entries...),
	}
}

// startServer serves on a loopback port and returns a connected client.
func startServer(t *testing.T, ctrl Controller, hub *notify.Broadcaster) *Client {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	g, _ := NewServer(ctrl, hub, nil, metrics.DefaultMetrics)
	go func() { _ = g.Serve(lis) }()
	t.Cleanup(g.Stop)

	client, err := Dial(lis.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestServer_RecordingLifecycle(t *testing.T) {
	ctrl := &fakeController{entries: []models.TranscriptEntry{{
		Speaker: "Alice", Text: "hello there everyone", Timestamp: "2025-03-14T09:00:01.000Z", TimestampMs: 1741942801000,
	}}}
	client := startServer(t, ctrl, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	state, err := client.StartRecording(ctx)
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if !state.IsRecording || state.MeetingID != "m-1" {
		t.Errorf("unexpected state %+v", state)
	}
	if state.MeetingStartTime == nil || *state.MeetingStartTime != "2025-03-14T09:00:00.000Z" {
		t.Errorf("unexpected meeting start %v", state.MeetingStartTime)
	}
	if len(state.Transcript) != 1 || state.Transcript[0].TimestampMs != 1741942801000 {
		t.Errorf("expected transcript to survive the struct encoding, got %+v", state.Transcript)
	}

	state, err = client.ClearTranscript(ctx)
	if err != nil || len(state.Transcript) != 0 {
		t.Errorf("ClearTranscript: %+v %v", state, err)
	}

	state, err = client.StopRecording(ctx)
	if err != nil || state.IsRecording {
		t.Errorf("StopRecording: %+v %v", state, err)
	}

	if _, err := client.GetState(ctx); err != nil {
		t.Errorf("GetState: %v", err)
	}
}

func TestServer_PushFragment(t *testing.T) {
	ctrl := &fakeController{}
	client := startServer(t, ctrl, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.PushFragment(ctx, models.Fragment{Speaker: "Bob", Text: "status update"}); err != nil {
		t.Fatalf("PushFragment: %v", err)
	}

	err := client.PushFragment(ctx, models.Fragment{Speaker: "Bob", Text: "   "})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument for blank text, got %v", err)
	}

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if len(ctrl.fragments) != 1 || ctrl.fragments[0].Text != "status update" || ctrl.fragments[0].ArrivalTime.IsZero() {
		t.Errorf("unexpected fragments %+v", ctrl.fragments)
	}
}

func TestServer_WatchWithoutHub(t *testing.T) {
	client := startServer(t, &fakeController{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := client.Watch(ctx, func(models.Notification) error { return nil })
	if status.Code(err) != codes.Unimplemented {
		t.Errorf("expected Unimplemented, got %v", err)
	}
}

func TestServer_WatchStreamsNotifications(t *testing.T) {
	hub := notify.NewBroadcaster(8)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go func() { _ = hub.Run(hubCtx) }()

	client := startServer(t, &fakeController{recording: true}, hub)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errDone := errors.New("done")
	var got []models.Notification
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- client.Watch(ctx, func(n models.Notification) error {
			got = append(got, n)
			if len(got) == 2 {
				return errDone
			}
			return nil
		})
	}()

	// Publish once the subscription exists.
	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	hub.Notify(models.Notification{EventType: models.EventTranscriptCleared, MeetingID: "m-1", Sequence: 7})

	if err := <-watchErr; !errors.Is(err, errDone) {
		t.Fatalf("expected watch to end via callback, got %v", err)
	}
	if got[0].EventType != models.EventTranscriptUpdated || got[0].IsRecording == nil || !*got[0].IsRecording {
		t.Errorf("expected initial state notification, got %+v", got[0])
	}
	if got[1].EventType != models.EventTranscriptCleared || got[1].Sequence != 7 {
		t.Errorf("unexpected second notification %+v", got[1])
	}
}

func TestToStructRejectsNonObjects(t *testing.T) {
	if _, err := toStruct([]int{1, 2}); err == nil {
		t.Error("expected error for a JSON array")
	}
}
