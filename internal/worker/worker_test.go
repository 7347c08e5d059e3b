package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/minimeet/backend/internal/models"
	"github.com/minimeet/backend/pkg/queue"
)

type fakeJobs struct {
	mu      sync.Mutex
	jobs    []*queue.Job
	retried []*queue.Job
}

func (f *fakeJobs) Dequeue(ctx context.Context) (*queue.Job, error) {
	f.mu.Lock()
	if len(f.jobs) > 0 {
		job := f.jobs[0]
		f.jobs = f.jobs[1:]
		f.mu.Unlock()
		return job, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeJobs) Retry(_ context.Context, job *queue.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job.Attempt++
	f.retried = append(f.retried, job)
	return nil
}

func (f *fakeJobs) retriedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.retried)
}

type fakeMeetings map[uuid.UUID]*models.Meeting

func (f fakeMeetings) GetByID(_ context.Context, id uuid.UUID) (*models.Meeting, error) {
	if m, ok := f[id]; ok {
		return m, nil
	}
	return nil, models.ErrNotFound
}

type fakeChat struct {
	messages  []models.ChatMessage
	lastLimit int
}

func (f *fakeChat) ListByMeeting(_ context.Context, _ uuid.UUID, limit int) ([]models.ChatMessage, error) {
	f.lastLimit = limit
	return f.messages, nil
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (f *fakeStore) UploadTranscript(_ context.Context, key string, body io.Reader, size int64) error {
	if f.err != nil {
		return f.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func exportJob(t *testing.T, meetingID uuid.UUID) *queue.Job {
	t.Helper()
	job, err := queue.NewJob(queue.JobTypeTranscriptExport, queue.TranscriptExportPayload{MeetingID: meetingID, RequestedBy: uuid.New()})
	require.NoError(t, err)
	return job
}

func TestProcessUploadsTranscript(t *testing.T) {
	m := &models.Meeting{ID: uuid.New(), Title: "Standup", Code: "ABC123", HostID: uuid.New()}
	chat := &fakeChat{messages: []models.ChatMessage{
		{ID: uuid.New(), MeetingID: m.ID, Message: "morning", Type: models.ChatTypeText},
		{ID: uuid.New(), MeetingID: m.ID, Message: "bye", Type: models.ChatTypeText},
	}}
	store := &fakeStore{objects: map[string][]byte{}}
	e := NewTranscriptExporter(&fakeJobs{}, fakeMeetings{m.ID: m}, chat, store, zap.NewNop())

	require.NoError(t, e.Process(context.Background(), exportJob(t, m.ID)))
	assert.Zero(t, chat.lastLimit)

	raw, ok := store.objects["transcripts/"+m.ID.String()+".json"]
	require.True(t, ok)
	var doc Transcript
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "Standup", doc.Title)
	require.Len(t, doc.Messages, 2)
	assert.Equal(t, "bye", doc.Messages[1].Message)
}

func TestProcessErrors(t *testing.T) {
	m := &models.Meeting{ID: uuid.New()}
	store := &fakeStore{objects: map[string][]byte{}}
	e := NewTranscriptExporter(&fakeJobs{}, fakeMeetings{m.ID: m}, &fakeChat{}, store, zap.NewNop())

	assert.Error(t, e.Process(context.Background(), &queue.Job{Type: "other"}))
	assert.ErrorIs(t, e.Process(context.Background(), exportJob(t, uuid.New())), models.ErrNotFound)

	store.err = errors.New("s3 down")
	assert.Error(t, e.Process(context.Background(), exportJob(t, m.ID)))
}

func TestRunRetriesFailedJobs(t *testing.T) {
	m := &models.Meeting{ID: uuid.New()}
	jobs := &fakeJobs{}
	store := &fakeStore{objects: map[string][]byte{}, err: errors.New("s3 down")}
	e := NewTranscriptExporter(jobs, fakeMeetings{m.ID: m}, &fakeChat{}, store, zap.NewNop())
	e.backoff = time.Millisecond
	jobs.jobs = []*queue.Job{exportJob(t, m.ID)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return jobs.retriedCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, 1, jobs.retried[0].Attempt)
}
