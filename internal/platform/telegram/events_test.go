package telegram

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-builders/exmatrikulator-bot/internal/domain/chat"
)

func decodeUpdate(t *testing.T, raw string) Update {
	t.Helper()
	var u Update
	require.NoError(t, json.Unmarshal([]byte(raw), &u))
	return u
}

func TestEvent_MembersJoined(t *testing.T) {
	u := decodeUpdate(t, `{"update_id":1,"message":{
		"message_id":50,"date":1,
		"chat":{"id":-100,"type":"supergroup","title":"Erstis"},
		"from":{"id":42,"first_name":"Ann"},
		"new_chat_members":[{"id":42,"first_name":"Ann"},{"id":43,"is_bot":true,"first_name":"Bot"}]
	}}`)

	ev, ok := u.Event().(chat.MembersJoined)
	require.True(t, ok)
	assert.Equal(t, chat.MessageRef{ChatID: -100, MessageID: 50}, ev.Message)
	assert.Equal(t, chat.ChatSupergroup, ev.ChatType)
	assert.Equal(t, "Erstis", ev.ChatTitle)
	require.Len(t, ev.Members, 2)
	assert.True(t, ev.Members[1].IsBot)
}

func TestEvent_MemberLeft(t *testing.T) {
	u := decodeUpdate(t, `{"update_id":2,"message":{
		"message_id":51,"date":1,
		"chat":{"id":-100,"type":"group"},
		"from":{"id":42,"first_name":"Ann"},
		"left_chat_member":{"id":42,"first_name":"Ann"}
	}}`)

	ev, ok := u.Event().(chat.MemberLeft)
	require.True(t, ok)
	assert.EqualValues(t, 42, ev.Member.ID)
	assert.EqualValues(t, 51, ev.Message.MessageID)
}

func TestEvent_TextWithReply(t *testing.T) {
	u := decodeUpdate(t, `{"update_id":3,"message":{
		"message_id":52,"date":1,
		"chat":{"id":-100,"type":"group"},
		"from":{"id":7,"first_name":"Bob"},
		"text":"/verifyAll",
		"reply_to_message":{"message_id":9,"date":1,"chat":{"id":-100,"type":"group"}}
	}}`)

	ev, ok := u.Event().(chat.TextMessage)
	require.True(t, ok)
	assert.Equal(t, "/verifyAll", ev.Text)
	assert.EqualValues(t, 7, ev.From.ID)
	require.NotNil(t, ev.ReplyTo)
	assert.EqualValues(t, 9, ev.ReplyTo.MessageID)
}

func TestEvent_Callback(t *testing.T) {
	u := decodeUpdate(t, `{"update_id":4,"callback_query":{
		"id":"cb","from":{"id":42,"first_name":"Ann"},"data":"notabot_42",
		"message":{"message_id":60,"date":1,"chat":{"id":-100,"type":"group"},
			"reply_to_message":{"message_id":50,"date":1,"chat":{"id":-100,"type":"group"}}}
	}}`)

	ev, ok := u.Event().(chat.CallbackResponse)
	require.True(t, ok)
	assert.Equal(t, "cb", ev.ID)
	assert.Equal(t, "notabot_42", ev.Token)
	require.NotNil(t, ev.Origin)
	assert.Equal(t, chat.MessageRef{ChatID: -100, MessageID: 60}, ev.Origin.Ref)
	require.NotNil(t, ev.Origin.ReplyTo)
	assert.EqualValues(t, 50, ev.Origin.ReplyTo.MessageID)
}

func TestEvent_CallbackOnInaccessibleMessage(t *testing.T) {
	u := decodeUpdate(t, `{"update_id":5,"callback_query":{
		"id":"cb","from":{"id":42,"first_name":"Ann"},"data":"notabot_42",
		"message":{"message_id":60,"date":0,"chat":{"id":-100,"type":"group"}}
	}}`)

	ev, ok := u.Event().(chat.CallbackResponse)
	require.True(t, ok)
	assert.Nil(t, ev.Origin)
}

func TestEvent_Unsupported(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"photo without text", `{"update_id":6,"message":{"message_id":1,"date":1,"chat":{"id":1,"type":"private"},"from":{"id":1,"first_name":"A"}}}`},
		{"edited message", `{"update_id":7,"edited_message":{"message_id":1,"date":1,"chat":{"id":1,"type":"private"},"text":"x"}}`},
		{"empty", `{"update_id":8}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := decodeUpdate(t, tt.raw).Event()
			assert.Equal(t, chat.KindUnsupported, ev.Kind())
		})
	}
}
