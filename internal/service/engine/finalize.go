package engine

import (
	"time"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability/logging"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/service/consolidate"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/service/similarity"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/service/speaker"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/service/transcript"
)

// Finalization triggers, used as metric labels.
const (
	triggerDeadline   = "deadline"
	triggerSweep      = "sweep"
	triggerStop       = "stop"
	triggerSuperseded = "superseded"
)

// armLocked schedules the buffer's deadline, replacing any previous one.
func (e *Engine) armLocked(buf *speaker.Buffer) {
	e.generation++
	gen := e.generation
	name := buf.Speaker()
	t := e.clock.AfterFunc(e.cfg.BufferWindow, func() { e.onDeadline(name, gen) })
	buf.Arm(t, gen)
}

func (e *Engine) onDeadline(name string, gen uint64) {
	e.withLock(func() {
		buf, ok := e.buffers.Lookup(name)
		if !ok || !buf.IsCurrent(gen) {
			return
		}
		e.finalizeLocked(buf, triggerDeadline)
		e.metrics.SetBufferState(e.buffers.Active(), e.transcript.Len())
	})
}

// finalizeLocked ends the buffer's sentence and appends it to the transcript
// unless it is too short or an exact repeat of a recent entry. It reports
// whether the buffer held any text.
func (e *Engine) finalizeLocked(buf *speaker.Buffer, trigger string) bool {
	text, ok := buf.Take()
	if !ok {
		return false
	}

	logger := logging.WithSpeaker(e.logger, buf.Speaker())
	if similarity.WordCount(text) < similarity.MinWordsForNewSentence {
		e.metrics.RecordFinalization("too_short", trigger)
		logger.Debug().Str("text", text).Str("trigger", trigger).Msg("Sentence too short, discarded")
		return true
	}
	if e.transcript.HasRecentExact(buf.Speaker(), text, transcript.ExactDuplicateWindow) {
		e.metrics.RecordFinalization("exact_duplicate", trigger)
		logger.Debug().Str("text", text).Str("trigger", trigger).Msg("Exact duplicate, discarded")
		return true
	}

	now := e.clock.Now()
	e.transcript.Append(transcript.NewEntry(buf.Speaker(), text, now))
	e.metrics.RecordFinalization("appended", trigger)
	logger.Debug().Str("text", text).Str("trigger", trigger).Msg("Sentence finalized")

	e.persistLocked()
	e.notifyThrottledLocked(now)
	return true
}

// consolidateLocked runs a consolidation pass and emits the result
// unthrottled. A no-op with fewer than two entries.
func (e *Engine) consolidateLocked() {
	if e.transcript.Len() <= 1 {
		return
	}
	start := time.Now()
	out, report := consolidate.Run(e.transcript.Entries())
	e.transcript.Replace(out)
	e.metrics.RecordConsolidation(report.Pruned, report.SameSpeaker, report.Misattributed, time.Since(start).Seconds())

	if report.Removed() > 0 {
		e.logger.Debug().
			Int("before", report.Before).
			Int("after", report.After).
			Int("pruned", report.Pruned).
			Int("sameSpeaker", report.SameSpeaker).
			Int("misattributed", report.Misattributed).
			Msg("Transcript consolidated")
	}

	e.persistLocked()
	e.queueTranscriptLocked(models.EventTranscriptUpdated)
}

func (e *Engine) startSweepLocked() {
	e.stopSweepLocked()
	e.generation++
	gen := e.generation
	e.sweepGen = gen
	e.sweep = e.clock.AfterFunc(e.cfg.ConsolidationInterval, func() { e.onSweep(gen) })
}

func (e *Engine) stopSweepLocked() {
	if e.sweep != nil {
		e.sweep.Stop()
		e.sweep = nil
	}
	e.sweepGen = 0
}

// onSweep force-finalizes buffers idle longer than the buffer window, then
// consolidates. It reschedules itself first so the interval keeps running.
func (e *Engine) onSweep(gen uint64) {
	e.withLock(func() {
		if gen == 0 || gen != e.sweepGen {
			return
		}
		e.startSweepLocked()
		if !e.recording {
			return
		}

		now := e.clock.Now()
		finalized := 0
		for _, name := range e.buffers.Speakers() {
			buf, _ := e.buffers.Lookup(name)
			if buf.State() != speaker.StateBuffering || now.Sub(buf.LastUpdate()) <= e.cfg.BufferWindow {
				continue
			}
			e.finalizeLocked(buf, triggerSweep)
			finalized++
		}
		if finalized > 0 || e.transcript.Len() > 1 {
			e.consolidateLocked()
		}
		e.metrics.SetBufferState(e.buffers.Active(), e.transcript.Len())
	})
}

func (e *Engine) persistLocked() {
	s := e.stateLocked()
	e.outbox = append(e.outbox, delivery{snapshot: &s})
}

// notifyThrottledLocked emits the transcript unless one was emitted within
// the throttle window. Skipped notifications are not queued.
func (e *Engine) notifyThrottledLocked(now time.Time) {
	if !e.lastNotify.IsZero() && now.Sub(e.lastNotify) <= e.cfg.NotificationThrottle {
		e.metrics.RecordNotificationThrottled()
		return
	}
	e.lastNotify = now
	e.queueTranscriptLocked(models.EventTranscriptUpdated)
}

func (e *Engine) queueTranscriptLocked(eventType string) {
	n := e.newNotificationLocked(eventType)
	n.Transcript = e.transcript.Entries()
	e.outbox = append(e.outbox, delivery{notification: &n})
}

func (e *Engine) queueStatusLocked(recording bool) {
	n := e.newNotificationLocked(models.EventRecordingStatusChanged)
	n.IsRecording = &recording
	e.outbox = append(e.outbox, delivery{notification: &n})
}

func (e *Engine) newNotificationLocked(eventType string) models.Notification {
	e.sequence++
	return models.Notification{
		EventType: eventType,
		MeetingID: e.meetingID,
		Timestamp: e.clock.Now().UnixMilli(),
		Sequence:  e.sequence,
	}
}

// dispatch drains the outbox outside the state mutex. Only one goroutine
// drains at a time, so deliveries keep their queue order; a caller that finds
// another drain in progress leaves its items to it.
func (e *Engine) dispatch() {
	for {
		if !e.dispatchMu.TryLock() {
			return
		}
		for {
			e.mu.Lock()
			pending := e.outbox
			e.outbox = nil
			e.mu.Unlock()
			if len(pending) == 0 {
				break
			}
			e.deliver(pending)
		}
		e.dispatchMu.Unlock()

		e.mu.Lock()
		empty := len(e.outbox) == 0
		e.mu.Unlock()
		if empty {
			return
		}
	}
}

func (e *Engine) deliver(pending []delivery) {
	for _, d := range pending {
		if d.snapshot != nil && e.persister != nil {
			e.persister.Persist(*d.snapshot)
		}
		if d.notification != nil {
			for _, o := range e.observers {
				o.Notify(*d.notification)
			}
			e.metrics.RecordNotification(d.notification.EventType)
		}
	}
}
