package msgs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/robofw/pkg/l1/msgs"
)

func TestUpdateMessagesKinds(t *testing.T) {
	tests := []struct {
		name    string
		msg     msgs.SerializableMessage
		command bool
		reply   bool
	}{
		{name: "begin", msg: &UpdateBegin{TotalSize: 512, TotalChunks: 2}, command: true},
		{name: "chunk", msg: &UpdateChunk{Index: 1, Data: []byte{1, 2, 3}, Last: true}, command: true},
		{name: "abort", msg: &UpdateAbort{Reason: "user"}, command: true},
		{name: "query", msg: &UpdateStatusQuery{}, command: true},
		{name: "reply", msg: &UpdateStatusReply{State: "active", ReceivedSize: 88}, command: true, reply: true},
		{name: "status", msg: &UpdateStatus{Event: "update_status", Status: "complete"}},
		{name: "progress", msg: &UpdateProgress{ReceivedSize: 10, TotalSize: 20}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			typed, err := msgs.TypedFrom(test.msg)
			require.NoError(t, err)
			require.Equal(t, test.command, typed.IsCommand())
			require.Equal(t, test.reply, typed.IsReply())
			require.Equal(t, msgs.GroupOTA, typed.Group())

			data, err := typed.Encode()
			require.NoError(t, err)
			decodedTyped, err := msgs.DecodeTyped(data)
			require.NoError(t, err)
			decoded, err := decodedTyped.Decode()
			require.NoError(t, err)
			require.IsType(t, test.msg, decoded)
			require.Equal(t, test.msg.Serializable().String(), decoded.(msgs.SerializableMessage).Serializable().String())
		})
	}
}
