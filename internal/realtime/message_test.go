package realtime

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	meetingID := uuid.New()
	target := uuid.New()

	tests := []struct {
		name string
		msg  WSMessage
		want inbound
	}{
		{
			name: "join",
			msg:  WSMessage{Event: EventJoinMeeting, Data: json.RawMessage(`{"meeting_id":"` + meetingID.String() + `"}`)},
			want: &joinMeeting{MeetingID: meetingID},
		},
		{
			name: "ice candidate keeps payload opaque",
			msg:  WSMessage{Event: EventICECandidate, Data: json.RawMessage(`{"target_id":"c1","candidate":{"sdpMid":"0"}}`)},
			want: &signalMessage{Kind: EventICECandidate, TargetID: "c1", Candidate: json.RawMessage(`{"sdpMid":"0"}`)},
		},
		{
			name: "mute",
			msg:  WSMessage{Event: EventMuteUser, Data: json.RawMessage(`{"target_user_id":"` + target.String() + `"}`)},
			want: &targetAction{Kind: EventMuteUser, TargetUserID: target},
		},
		{
			name: "missing data",
			msg:  WSMessage{Event: EventLowerHand},
			want: &handSignal{Kind: EventLowerHand},
		},
		{
			name: "null data",
			msg:  WSMessage{Event: EventEnableChat, Data: json.RawMessage(`null`)},
			want: &roomToggle{Kind: EventEnableChat},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decode(tt.msg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.msg.Event, got.event())
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := decode(WSMessage{Event: "teleport"})
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = decode(WSMessage{Event: EventJoinMeeting, Data: json.RawMessage(`{"meeting_id":"not-a-uuid"}`)})
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = decode(WSMessage{Event: EventWhiteboardToggle, Data: json.RawMessage(`"yes"`)})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestMarshalPayloadDefaultsToEmptyObject(t *testing.T) {
	data, err := marshalPayload(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}
