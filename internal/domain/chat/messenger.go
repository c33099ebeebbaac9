package chat

import (
	"context"
	"time"
)

// ParseMode is the markup mode of an outgoing message.
type ParseMode string

const (
	ParseModeNone ParseMode = ""
	ParseModeHTML ParseMode = "HTML"
)

// Button is a single inline keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

// OutgoingMessage is a text message to send.
type OutgoingMessage struct {
	ChatID    int64
	Text      string
	ParseMode ParseMode
	// ReplyTo is the message id to reply to; zero sends a standalone message.
	ReplyTo int64
	Button  *Button
}

// Messenger is the outbound side of the chat service.
type Messenger interface {
	SendMessage(ctx context.Context, msg OutgoingMessage) (MessageRef, error)
	DeleteMessage(ctx context.Context, ref MessageRef) error
	// AnswerCallback acknowledges a button press. A non-empty text is shown as a toast.
	AnswerCallback(ctx context.Context, callbackID, text string) error
	ChatAdministrators(ctx context.Context, chatID int64) ([]int64, error)
}

// Challenge is an issued, not yet resolved verification challenge.
type Challenge struct {
	ChatID        int64     `json:"chat_id"`
	UserID        int64     `json:"user_id"`
	MessageID     int64     `json:"message_id"`
	JoinMessageID int64     `json:"join_message_id,omitempty"`
	IssuedAt      time.Time `json:"issued_at"`
}

// Ref returns the challenge message reference.
func (c Challenge) Ref() MessageRef {
	return MessageRef{ChatID: c.ChatID, MessageID: c.MessageID}
}
