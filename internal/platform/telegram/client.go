package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	apperrors "github.com/open-builders/exmatrikulator-bot/internal/common/errors"
	"github.com/open-builders/exmatrikulator-bot/internal/domain/chat"
)

const (
	DefaultAPIURL  = "https://api.telegram.org"
	requestTimeout = 10 * time.Second
)

// Client is a minimal Bot API client. It implements chat.Messenger.
type Client struct {
	httpClient *http.Client
	apiURL     string
	token      string
	limiter    *rate.Limiter
}

var _ chat.Messenger = (*Client)(nil)

// NewClient creates a client for the given bot token. rps bounds outgoing
// requests per second; zero or less disables limiting.
func NewClient(apiURL, token string, rps float64) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		if int(rps) > burst {
			burst = int(rps)
		}
	}
	return &Client{
		// Deadlines come from the request context, long polls outlive requestTimeout.
		httpClient: &http.Client{},
		apiURL:     strings.TrimRight(apiURL, "/"),
		token:      token,
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// GetMe returns the bot's own account.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.call(ctx, "getMe", struct{}{}, &me, requestTimeout); err != nil {
		return nil, err
	}
	return &me, nil
}

// GetUpdates long-polls for updates with ids of at least offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	req := getUpdatesRequest{
		Offset:         offset,
		Timeout:        int(timeout / time.Second),
		AllowedUpdates: []string{"message", "callback_query"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", req, &updates, timeout+requestTimeout); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *Client) SendMessage(ctx context.Context, msg chat.OutgoingMessage) (chat.MessageRef, error) {
	req := sendMessageRequest{
		ChatID:    msg.ChatID,
		Text:      msg.Text,
		ParseMode: string(msg.ParseMode),
	}
	if msg.ReplyTo != 0 {
		req.ReplyParameters = &ReplyParameters{MessageID: msg.ReplyTo, AllowSendingWithoutReply: true}
	}
	if msg.Button != nil {
		req.ReplyMarkup = &InlineKeyboardMarkup{
			InlineKeyboard: [][]InlineKeyboardButton{{
				{Text: msg.Button.Text, CallbackData: msg.Button.Data},
			}},
		}
	}

	var sent Message
	if err := c.call(ctx, "sendMessage", req, &sent, requestTimeout); err != nil {
		return chat.MessageRef{}, err
	}
	return sent.ref(), nil
}

func (c *Client) DeleteMessage(ctx context.Context, ref chat.MessageRef) error {
	var ok bool
	return c.call(ctx, "deleteMessage", deleteMessageRequest{ChatID: ref.ChatID, MessageID: ref.MessageID}, &ok, requestTimeout)
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	var ok bool
	return c.call(ctx, "answerCallbackQuery", answerCallbackQueryRequest{CallbackQueryID: callbackID, Text: text}, &ok, requestTimeout)
}

func (c *Client) ChatAdministrators(ctx context.Context, chatID int64) ([]int64, error) {
	var members []ChatMember
	if err := c.call(ctx, "getChatAdministrators", chatRequest{ChatID: chatID}, &members, requestTimeout); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.User.ID)
	}
	return ids, nil
}

// call posts params as JSON to the Bot API method and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params, out any, timeout time.Duration) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return apperrors.NewTelegramAPIError(method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(params)
	if err != nil {
		return apperrors.NewTelegramAPIError(method, fmt.Errorf("failed to encode request: %w", err))
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.apiURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewTelegramAPIError(method, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The URL carries the token; drop it from the error.
		return apperrors.NewTelegramAPIError(method, fmt.Errorf("failed to send request: %s", c.redact(err.Error())))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewTelegramAPIError(method, fmt.Errorf("failed to read response: %w", err))
	}

	zerolog.Ctx(ctx).Debug().
		Str("method", method).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("telegram request")

	envelope := response[json.RawMessage]{}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return apperrors.NewTelegramAPIError(method, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err))
	}

	if !envelope.Ok {
		apiErr := &APIError{Method: method, Code: envelope.ErrorCode, Description: envelope.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if envelope.Parameters != nil {
			apiErr.RetryAfter = envelope.Parameters.RetryAfter
		}
		if apiErr.IsRateLimited() {
			return apperrors.NewRateLimitError("telegram", time.Duration(apiErr.RetryAfter)*time.Second, apiErr).
				WithDetail("method", method)
		}
		return apperrors.NewTelegramAPIError(method, apiErr)
	}

	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return apperrors.NewTelegramAPIError(method, fmt.Errorf("failed to decode result: %w", err))
	}
	return nil
}

func (c *Client) redact(s string) string {
	if c.token == "" {
		return s
	}
	return strings.ReplaceAll(s, c.token, "<token>")
}
