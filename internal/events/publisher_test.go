package events

import (
	"context"
	"testing"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writerTranscript != nil {
				t.Error("expected nil transcript writer when disabled")
			}
			if p.writerStatus != nil {
				t.Error("expected nil status writer when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	cfg := &Config{
		Enabled:         false,
		Brokers:         []string{"localhost:9092"},
		TopicTranscript: "test.transcript",
		TopicStatus:     "test.status",
		Principal:       "test-principal",
	}

	p := New(cfg)

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if p.topicTranscript != "test.transcript" {
		t.Errorf("expected transcript topic 'test.transcript', got %s", p.topicTranscript)
	}
	if p.topicStatus != "test.status" {
		t.Errorf("expected status topic 'test.status', got %s", p.topicStatus)
	}
}

func TestNew_EnabledCreatesWriters(t *testing.T) {
	p := New(&Config{
		Enabled:         true,
		Brokers:         []string{"localhost:9092"},
		TopicTranscript: "test.transcript",
		TopicStatus:     "test.status",
	})

	if !p.enabled {
		t.Fatal("expected publisher to be enabled")
	}
	if p.writerTranscript == nil || p.writerTranscript.Topic != "test.transcript" {
		t.Error("expected transcript writer bound to its topic")
	}
	if p.writerStatus == nil || p.writerStatus.Topic != "test.status" {
		t.Error("expected status writer bound to its topic")
	}
	if err := p.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}

func TestPublisher_PublishTranscript_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false, TopicTranscript: "test.transcript"})

	n := models.Notification{
		EventType:  models.EventTranscriptUpdated,
		MeetingID:  "meeting-1",
		Transcript: []models.TranscriptEntry{{Speaker: "Alice", Text: "hello there friend"}},
	}
	if err := p.PublishTranscript(context.Background(), "meeting-1", n); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_PublishStatus_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false, TopicStatus: "test.status"})

	recording := true
	n := models.Notification{EventType: models.EventRecordingStatusChanged, IsRecording: &recording}
	if err := p.PublishStatus(context.Background(), "meeting-1", n); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_Publish_InvalidJSON(t *testing.T) {
	p := New(&Config{Enabled: false})

	// Channels cannot be marshaled
	err := p.publish(context.Background(), nil, "test.topic", "test", "key", make(chan int))
	if err == nil {
		t.Error("expected error for unmarshalable event")
	}
}

func TestPublisher_Notify_LogOnly(t *testing.T) {
	p := New(&Config{Enabled: false})

	p.Notify(models.Notification{EventType: models.EventTranscriptCleared})
	p.Notify(models.Notification{EventType: models.EventRecordingStatusChanged, MeetingID: "m"})
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	p := New(&Config{Enabled: false})

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}
}

func TestPublisher_Close_NilPublisher(t *testing.T) {
	p := &Publisher{
		writerTranscript: nil,
		writerStatus:     nil,
	}

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing publisher with nil writers, got %v", err)
	}
}
