package chat

import "fmt"

// Kind is the classification of an inbound event.
type Kind string

const (
	KindText        Kind = "text"
	KindJoined      Kind = "members_joined"
	KindLeft        Kind = "member_left"
	KindCallback    Kind = "callback"
	KindUnsupported Kind = "unsupported"
)

// ChatType is the Telegram chat type of the chat an event happened in.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// IsGroup reports whether challenges may be issued in chats of this type.
func (t ChatType) IsGroup() bool {
	return t == ChatGroup || t == ChatSupergroup
}

// User is a Telegram account as seen in an event.
type User struct {
	ID        int64
	IsBot     bool
	FirstName string
	LastName  string
	Username  string
}

// DisplayName returns the best human readable name of u.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	case u.Username != "":
		return u.Username
	default:
		return fmt.Sprintf("User %d", u.ID)
	}
}

// MessageRef identifies a message in a chat.
type MessageRef struct {
	ChatID    int64
	MessageID int64
}

// IsZero reports whether r points to no message.
func (r MessageRef) IsZero() bool {
	return r.ChatID == 0 && r.MessageID == 0
}

// Event is the closed set of inbound events the dispatcher understands.
// Only types declared in this package implement it.
type Event interface {
	Kind() Kind
	isEvent()
}

// TextMessage is a plain text message, commands included.
type TextMessage struct {
	Message  MessageRef
	ChatType ChatType
	From     User
	Text     string
	ReplyTo  *MessageRef
}

// MembersJoined is the service message posted when users join a chat.
type MembersJoined struct {
	Message   MessageRef
	ChatType  ChatType
	ChatTitle string
	From      User
	Members   []User
}

// MemberLeft is the service message posted when a user leaves or is removed from a chat.
type MemberLeft struct {
	Message MessageRef
	From    User
	Member  User
}

// CallbackResponse is a press on an inline button.
type CallbackResponse struct {
	ID    string
	From  User
	Token string
	// Origin is the message carrying the button; nil when Telegram did not include it.
	Origin *OriginMessage
}

// OriginMessage is the message an inline button belongs to.
type OriginMessage struct {
	Ref     MessageRef
	ReplyTo *MessageRef
}

// Unsupported is any update the bot does not act on.
type Unsupported struct {
	UpdateID    int64
	Description string
}

func (TextMessage) Kind() Kind      { return KindText }
func (MembersJoined) Kind() Kind    { return KindJoined }
func (MemberLeft) Kind() Kind       { return KindLeft }
func (CallbackResponse) Kind() Kind { return KindCallback }
func (Unsupported) Kind() Kind      { return KindUnsupported }

func (TextMessage) isEvent()      {}
func (MembersJoined) isEvent()    {}
func (MemberLeft) isEvent()       {}
func (CallbackResponse) isEvent() {}
func (Unsupported) isEvent()      {}
