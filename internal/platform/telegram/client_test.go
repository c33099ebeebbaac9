package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/open-builders/exmatrikulator-bot/internal/common/errors"
	"github.com/open-builders/exmatrikulator-bot/internal/domain/chat"
)

const testToken = "123:secret"

type recordedCall struct {
	Method string
	Body   map[string]any
}

type botAPI struct {
	mu      sync.Mutex
	calls   []recordedCall
	replies map[string]string
}

func newBotAPI(t *testing.T, replies map[string]string) (*botAPI, *Client) {
	t.Helper()
	api := &botAPI{replies: replies}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := "/bot" + testToken + "/"
		if !strings.HasPrefix(r.URL.Path, prefix) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		method := strings.TrimPrefix(r.URL.Path, prefix)
		raw, _ := io.ReadAll(r.Body)
		body := map[string]any{}
		_ = json.Unmarshal(raw, &body)

		api.mu.Lock()
		api.calls = append(api.calls, recordedCall{Method: method, Body: body})
		reply, ok := api.replies[method]
		api.mu.Unlock()

		if !ok {
			reply = `{"ok":true,"result":true}`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return api, NewClient(srv.URL, testToken, 0)
}

func (a *botAPI) last(t *testing.T) recordedCall {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	require.NotEmpty(t, a.calls)
	return a.calls[len(a.calls)-1]
}

func TestSendMessage_WithButtonAndReply(t *testing.T) {
	api, client := newBotAPI(t, map[string]string{
		"sendMessage": `{"ok":true,"result":{"message_id":77,"chat":{"id":-100,"type":"supergroup"},"date":1}}`,
	})

	ref, err := client.SendMessage(context.Background(), chat.OutgoingMessage{
		ChatID:    -100,
		Text:      "hello",
		ParseMode: chat.ParseModeHTML,
		ReplyTo:   5,
		Button:    &chat.Button{Text: "press", Data: "notabot_42"},
	})
	require.NoError(t, err)
	assert.Equal(t, chat.MessageRef{ChatID: -100, MessageID: 77}, ref)

	call := api.last(t)
	assert.Equal(t, "sendMessage", call.Method)
	assert.EqualValues(t, -100, call.Body["chat_id"])
	assert.Equal(t, "HTML", call.Body["parse_mode"])
	assert.EqualValues(t, 5, call.Body["reply_parameters"].(map[string]any)["message_id"])

	keyboard := call.Body["reply_markup"].(map[string]any)["inline_keyboard"].([]any)
	require.Len(t, keyboard, 1)
	button := keyboard[0].([]any)[0].(map[string]any)
	assert.Equal(t, "press", button["text"])
	assert.Equal(t, "notabot_42", button["callback_data"])
}

func TestSendMessage_PlainOmitsOptionalFields(t *testing.T) {
	api, client := newBotAPI(t, map[string]string{
		"sendMessage": `{"ok":true,"result":{"message_id":1,"chat":{"id":9,"type":"private"},"date":1}}`,
	})

	_, err := client.SendMessage(context.Background(), chat.OutgoingMessage{ChatID: 9, Text: "x"})
	require.NoError(t, err)

	call := api.last(t)
	assert.NotContains(t, call.Body, "parse_mode")
	assert.NotContains(t, call.Body, "reply_parameters")
	assert.NotContains(t, call.Body, "reply_markup")
}

func TestDeleteAndAnswer(t *testing.T) {
	api, client := newBotAPI(t, nil)
	ctx := context.Background()

	require.NoError(t, client.DeleteMessage(ctx, chat.MessageRef{ChatID: -1, MessageID: 3}))
	call := api.last(t)
	assert.Equal(t, "deleteMessage", call.Method)
	assert.EqualValues(t, 3, call.Body["message_id"])

	require.NoError(t, client.AnswerCallback(ctx, "cb-1", ""))
	call = api.last(t)
	assert.Equal(t, "answerCallbackQuery", call.Method)
	assert.Equal(t, "cb-1", call.Body["callback_query_id"])
	assert.NotContains(t, call.Body, "text")
}

func TestChatAdministrators(t *testing.T) {
	_, client := newBotAPI(t, map[string]string{
		"getChatAdministrators": `{"ok":true,"result":[
			{"status":"creator","user":{"id":1,"is_bot":false,"first_name":"A"}},
			{"status":"administrator","user":{"id":2,"is_bot":true,"first_name":"B"}}
		]}`,
	})

	ids, err := client.ChatAdministrators(context.Background(), -100)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)
}

func TestCall_APIError(t *testing.T) {
	_, client := newBotAPI(t, map[string]string{
		"deleteMessage": `{"ok":false,"error_code":400,"description":"Bad Request: message to delete not found"}`,
	})

	err := client.DeleteMessage(context.Background(), chat.MessageRef{ChatID: 1, MessageID: 2})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTelegramAPI))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.Code)
	assert.Equal(t, "deleteMessage", apiErr.Method)
	assert.False(t, apiErr.IsRateLimited())
}

func TestCall_RateLimited(t *testing.T) {
	_, client := newBotAPI(t, map[string]string{
		"sendMessage": `{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":3}}`,
	})

	_, err := client.SendMessage(context.Background(), chat.OutgoingMessage{ChatID: 1, Text: "x"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeRateLimit))

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "telegram", appErr.Details["service"])
	assert.Equal(t, "3s", appErr.Details["retry_after"])
	assert.Equal(t, "sendMessage", appErr.Details["method"])

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 3, apiErr.RetryAfter)
}

func TestCall_TransportErrorHidesToken(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", testToken, 0)

	_, err := client.GetMe(context.Background())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testToken)
}

func TestGetUpdates(t *testing.T) {
	api, client := newBotAPI(t, map[string]string{
		"getUpdates": `{"ok":true,"result":[{"update_id":10,"message":{"message_id":1,"chat":{"id":5,"type":"private"},"date":1,"from":{"id":5,"first_name":"X"},"text":"/aboutme"}}]}`,
	})

	updates, err := client.GetUpdates(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.EqualValues(t, 10, updates[0].UpdateID)

	call := api.last(t)
	assert.EqualValues(t, 10, call.Body["offset"])
	assert.ElementsMatch(t, []any{"message", "callback_query"}, call.Body["allowed_updates"])
}
