package models

// Event types for change notifications.
const (
	EventTranscriptUpdated      = "transcriptUpdated"
	EventTranscriptCleared      = "transcriptCleared"
	EventRecordingStatusChanged = "recordingStatusChanged"
)

// Notification is a change event delivered to observers.
type Notification struct {
	EventType   string            `json:"eventType"`
	MeetingID   string            `json:"meetingId"`
	Timestamp   int64             `json:"timestamp"`
	Sequence    uint64            `json:"sequence"`
	Transcript  []TranscriptEntry `json:"transcript,omitempty"`
	IsRecording *bool             `json:"isRecording,omitempty"`
}
