package transcripts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/minimeet/backend/internal/middleware"
	"github.com/minimeet/backend/internal/models"
	"github.com/minimeet/backend/pkg/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSigner struct {
	urls map[string]string
	err  error
}

func (f *fakeSigner) TranscriptURL(_ context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if u, ok := f.urls[key]; ok {
		return u, nil
	}
	return "", storage.ErrObjectNotFound
}

type fakeMeetings map[uuid.UUID]*models.Meeting

func (f fakeMeetings) GetByID(_ context.Context, id uuid.UUID) (*models.Meeting, error) {
	if m, ok := f[id]; ok {
		return m, nil
	}
	return nil, models.ErrNotFound
}

func TestGet(t *testing.T) {
	ended := &models.Meeting{ID: uuid.New(), HostID: uuid.New()}
	live := &models.Meeting{ID: uuid.New(), HostID: ended.HostID, IsActive: true}
	pending := &models.Meeting{ID: uuid.New(), HostID: ended.HostID}
	signer := &fakeSigner{urls: map[string]string{
		storage.TranscriptKey(ended.ID.String()): "https://signed.example/t.json",
	}}
	h := NewHandler(signer, fakeMeetings{ended.ID: ended, live.ID: live, pending.ID: pending}, zap.NewNop())

	r := gin.New()
	r.GET("/meetings/:id/transcript", func(c *gin.Context) {
		id, _ := uuid.Parse(c.GetHeader("X-User"))
		c.Set(middleware.ContextUserID, id)
	}, h.Get)
	get := func(meetingID, user uuid.UUID) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/meetings/"+meetingID.String()+"/transcript", nil)
		req.Header.Set("X-User", user.String())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := get(ended.ID, ended.HostID)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "https://signed.example/t.json", body.Data.URL)

	assert.Equal(t, http.StatusForbidden, get(ended.ID, uuid.New()).Code)
	assert.Equal(t, http.StatusConflict, get(live.ID, live.HostID).Code)
	assert.Equal(t, http.StatusNotFound, get(pending.ID, pending.HostID).Code)
	assert.Equal(t, http.StatusNotFound, get(uuid.New(), ended.HostID).Code)

	signer.err = errors.New("s3 down")
	assert.Equal(t, http.StatusInternalServerError, get(ended.ID, ended.HostID).Code)
}
