// Package postgres stores transcript snapshots in PostgreSQL, one row per
// meeting.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS transcript_snapshots (
    meeting_id         TEXT PRIMARY KEY,
    is_recording       BOOLEAN     NOT NULL,
    meeting_start_time TEXT,
    transcript         JSONB       NOT NULL,
    entry_count        INTEGER     NOT NULL,
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transcript_snapshots_updated_at
    ON transcript_snapshots (updated_at DESC);
`

const upsertSnapshot = `
INSERT INTO transcript_snapshots (meeting_id, is_recording, meeting_start_time, transcript, entry_count, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (meeting_id) DO UPDATE SET
    is_recording       = EXCLUDED.is_recording,
    meeting_start_time = EXCLUDED.meeting_start_time,
    transcript         = EXCLUDED.transcript,
    entry_count        = EXCLUDED.entry_count,
    updated_at         = now()`

const selectByMeeting = `
SELECT meeting_id, is_recording, meeting_start_time, transcript
FROM transcript_snapshots
WHERE meeting_id = $1`

const selectLatest = `
SELECT meeting_id, is_recording, meeting_start_time, transcript
FROM transcript_snapshots
ORDER BY updated_at DESC
LIMIT 1`

// Store persists snapshots through a pgx connection pool.
type Store struct {
	pool      *pgxpool.Pool
	meetingID string
}

// New connects to dsn and ensures the schema exists. Load returns the
// snapshot for meetingID, or the most recently updated one when meetingID is
// empty.
func New(ctx context.Context, dsn, meetingID string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return &Store{pool: pool, meetingID: meetingID}, nil
}

// Save upserts the snapshot row for state.MeetingID.
func (s *Store) Save(ctx context.Context, state models.State) error {
	if state.MeetingID == "" {
		return errors.New("postgres: snapshot has no meeting id")
	}
	entries := state.Transcript
	if entries == nil {
		entries = []models.TranscriptEntry{}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("postgres: encode transcript: %w", err)
	}

	_, err = s.pool.Exec(ctx, upsertSnapshot,
		state.MeetingID,
		state.IsRecording,
		state.MeetingStartTime,
		payload,
		len(entries),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert snapshot: %w", err)
	}
	return nil
}

// Load reads the configured meeting's snapshot.
func (s *Store) Load(ctx context.Context) (models.State, error) {
	var row pgx.Row
	if s.meetingID != "" {
		row = s.pool.QueryRow(ctx, selectByMeeting, s.meetingID)
	} else {
		row = s.pool.QueryRow(ctx, selectLatest)
	}

	var (
		state   models.State
		payload []byte
	)
	err := row.Scan(&state.MeetingID, &state.IsRecording, &state.MeetingStartTime, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.State{}, storage.ErrNotFound
	}
	if err != nil {
		return models.State{}, fmt.Errorf("postgres: load snapshot: %w", err)
	}
	if err := json.Unmarshal(payload, &state.Transcript); err != nil {
		return models.State{}, fmt.Errorf("postgres: decode transcript: %w", err)
	}
	return state, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
