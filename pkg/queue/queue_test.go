package queue

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	payload := TranscriptExportPayload{MeetingID: uuid.New(), RequestedBy: uuid.New()}
	job, err := NewJob(JobTypeTranscriptExport, payload)
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobTypeTranscriptExport, job.Type)
	assert.Zero(t, job.Attempt)

	var got TranscriptExportPayload
	require.NoError(t, json.Unmarshal(job.Payload, &got))
	assert.Equal(t, payload, got)
	assert.Contains(t, string(job.Payload), `"meeting_id"`)
}

func TestNewJobRejectsUnencodable(t *testing.T) {
	_, err := NewJob(JobTypeTranscriptExport, make(chan int))
	assert.Error(t, err)
}

func TestRetryTarget(t *testing.T) {
	job := &Job{Attempt: 1}
	assert.Equal(t, QueueTranscripts, retryTarget(job, 3))
	job.Attempt = 3
	assert.Equal(t, QueueDLQ, retryTarget(job, 3))
	job.Attempt = 5
	assert.Equal(t, QueueDLQ, retryTarget(job, 3))
}

func TestNewQueueDefaults(t *testing.T) {
	q := NewQueue(nil, 0, nil)
	assert.Equal(t, DefaultMaxRetries, q.maxRetries)
	assert.NotNil(t, q.logger)
}
