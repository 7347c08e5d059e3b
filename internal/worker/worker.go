package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/minimeet/backend/internal/models"
	"github.com/minimeet/backend/pkg/queue"
	"github.com/minimeet/backend/pkg/storage"
)

// JobSource yields transcript jobs and takes back the ones that failed.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// MeetingReader loads the meeting being archived.
type MeetingReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error)
}

// ChatReader loads a meeting's full chat history. A limit of zero means everything.
type ChatReader interface {
	ListByMeeting(ctx context.Context, meetingID uuid.UUID, limit int) ([]models.ChatMessage, error)
}

// ObjectStore receives the rendered transcript.
type ObjectStore interface {
	UploadTranscript(ctx context.Context, key string, body io.Reader, size int64) error
}

// Transcript is the archived document for one ended meeting.
type Transcript struct {
	MeetingID   uuid.UUID            `json:"meeting_id"`
	Title       string               `json:"title"`
	Code        string               `json:"code"`
	HostID      uuid.UUID            `json:"host_id"`
	EndedAt     *time.Time           `json:"ended_at,omitempty"`
	RequestedBy uuid.UUID            `json:"requested_by"`
	ExportedAt  time.Time            `json:"exported_at"`
	Messages    []models.ChatMessage `json:"messages"`
}

// TranscriptExporter archives the chat of ended meetings to object storage.
type TranscriptExporter struct {
	jobs     JobSource
	meetings MeetingReader
	chat     ChatReader
	store    ObjectStore
	backoff  time.Duration
	logger   *zap.Logger
}

// NewTranscriptExporter creates a transcript export worker.
func NewTranscriptExporter(jobs JobSource, meetings MeetingReader, chat ChatReader, store ObjectStore, logger *zap.Logger) *TranscriptExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranscriptExporter{
		jobs:     jobs,
		meetings: meetings,
		chat:     chat,
		store:    store,
		backoff:  queue.RetryBackoff,
		logger:   logger,
	}
}

// Process executes one transcript export job.
func (e *TranscriptExporter) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeTranscriptExport {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.TranscriptExportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	m, err := e.meetings.GetByID(ctx, payload.MeetingID)
	if err != nil {
		return fmt.Errorf("load meeting %s: %w", payload.MeetingID, err)
	}
	messages, err := e.chat.ListByMeeting(ctx, payload.MeetingID, 0)
	if err != nil {
		return fmt.Errorf("load chat: %w", err)
	}

	body, err := json.Marshal(Transcript{
		MeetingID:   m.ID,
		Title:       m.Title,
		Code:        m.Code,
		HostID:      m.HostID,
		EndedAt:     m.EndedAt,
		RequestedBy: payload.RequestedBy,
		ExportedAt:  time.Now().UTC(),
		Messages:    messages,
	})
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	key := storage.TranscriptKey(m.ID.String())
	if err := e.store.UploadTranscript(ctx, key, bytes.NewReader(body), int64(len(body))); err != nil {
		return err
	}
	e.logger.Info("transcript exported",
		zap.String("meeting_id", m.ID.String()), zap.String("key", key), zap.Int("messages", len(messages)))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (e *TranscriptExporter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("transcript worker stopping")
			return
		default:
		}

		job, err := e.jobs.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			e.logger.Warn("dequeue error", zap.Error(err))
			e.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		e.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := e.Process(ctx, job); err != nil {
			e.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := e.jobs.Retry(ctx, job); reErr != nil {
				e.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			e.sleep(ctx)
		}
	}
}

func (e *TranscriptExporter) sleep(ctx context.Context) {
	t := time.NewTimer(e.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
