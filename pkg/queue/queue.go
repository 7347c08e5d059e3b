package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueTranscripts is the Redis list key for meeting transcript export jobs.
	QueueTranscripts = "worker:transcripts"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// DefaultMaxRetries is the number of attempts before a job moves to the DLQ.
	DefaultMaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeTranscriptExport JobType = "transcript_export"
)

// TranscriptExportPayload asks the worker to archive a meeting's chat to object storage.
type TranscriptExportPayload struct {
	MeetingID   uuid.UUID `json:"meeting_id"`
	RequestedBy uuid.UUID `json:"requested_by"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewJob wraps payload in an envelope with a fresh id.
func NewJob(jobType JobType, payload interface{}) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client     *redis.Client
	logger     *zap.Logger
	maxRetries int
}

// NewQueue creates a new Redis-backed job queue. maxRetries <= 0 uses DefaultMaxRetries.
func NewQueue(client *redis.Client, maxRetries int, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Queue{client: client, logger: logger, maxRetries: maxRetries}
}

// EnqueueTranscriptExport enqueues a transcript export for a finished meeting.
func (q *Queue) EnqueueTranscriptExport(ctx context.Context, payload TranscriptExportPayload) error {
	job, err := NewJob(JobTypeTranscriptExport, payload)
	if err != nil {
		return err
	}
	if err := q.push(ctx, QueueTranscripts, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued transcript export job", zap.String("job_id", job.ID), zap.String("meeting_id", payload.MeetingID.String()))
	return nil
}

func (q *Queue) push(ctx context.Context, key string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	return nil
}

// Dequeue blocks until a transcript job is available or ctx is done.
// A nil job with a nil error means the popped entry was unreadable and was skipped.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, 0, QueueTranscripts).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// retryTarget returns the list a failed job goes to after its attempt is counted.
func retryTarget(job *Job, maxRetries int) string {
	if job.Attempt >= maxRetries {
		return QueueDLQ
	}
	return QueueTranscripts
}

// Retry re-enqueues a job with incremented attempt, or moves it to the DLQ
// once it has used up its attempts.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	target := retryTarget(job, q.maxRetries)
	if err := q.push(ctx, target, job); err != nil {
		q.logger.Error("retry push failed", zap.String("job_id", job.ID), zap.String("queue", target), zap.Error(err))
		return err
	}
	if target == QueueDLQ {
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
