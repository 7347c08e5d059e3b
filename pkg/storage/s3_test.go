package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTranscriptKey(t *testing.T) {
	assert.Equal(t, "transcripts/abc.json", TranscriptKey("abc"))
}

func TestPresignExpire(t *testing.T) {
	assert.Equal(t, 15*time.Minute, presignExpire(0))
	assert.Equal(t, 15*time.Minute, presignExpire(-3))
	assert.Equal(t, 60*time.Minute, presignExpire(60))
}
