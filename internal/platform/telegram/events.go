package telegram

import "github.com/open-builders/exmatrikulator-bot/internal/domain/chat"

// Event converts the update into the bot's event model.
func (u Update) Event() chat.Event {
	switch {
	case u.CallbackQuery != nil:
		return callbackEvent(u.CallbackQuery)
	case u.Message != nil:
		return messageEvent(u.UpdateID, u.Message)
	case u.EditedMessage != nil:
		return chat.Unsupported{UpdateID: u.UpdateID, Description: "edited_message"}
	case u.ChannelPost != nil:
		return chat.Unsupported{UpdateID: u.UpdateID, Description: "channel_post"}
	default:
		return chat.Unsupported{UpdateID: u.UpdateID, Description: "unknown update"}
	}
}

func messageEvent(updateID int64, m *Message) chat.Event {
	ref := m.ref()
	var from chat.User
	if m.From != nil {
		from = m.From.toChat()
	}

	switch {
	case len(m.NewChatMembers) > 0:
		members := make([]chat.User, 0, len(m.NewChatMembers))
		for _, u := range m.NewChatMembers {
			members = append(members, u.toChat())
		}
		return chat.MembersJoined{
			Message:   ref,
			ChatType:  chat.ChatType(m.Chat.Type),
			ChatTitle: m.Chat.Title,
			From:      from,
			Members:   members,
		}
	case m.LeftChatMember != nil:
		return chat.MemberLeft{Message: ref, From: from, Member: m.LeftChatMember.toChat()}
	case m.Text != "" && m.From != nil:
		ev := chat.TextMessage{
			Message:  ref,
			ChatType: chat.ChatType(m.Chat.Type),
			From:     from,
			Text:     m.Text,
		}
		if m.ReplyToMessage != nil {
			r := m.ReplyToMessage.ref()
			ev.ReplyTo = &r
		}
		return ev
	default:
		return chat.Unsupported{UpdateID: updateID, Description: "message without text"}
	}
}

func callbackEvent(q *CallbackQuery) chat.CallbackResponse {
	ev := chat.CallbackResponse{ID: q.ID, From: q.From.toChat(), Token: q.Data}
	// Inaccessible messages arrive with date 0.
	if q.Message != nil && q.Message.Date != 0 {
		origin := &chat.OriginMessage{Ref: q.Message.ref()}
		if q.Message.ReplyToMessage != nil {
			r := q.Message.ReplyToMessage.ref()
			origin.ReplyTo = &r
		}
		ev.Origin = origin
	}
	return ev
}

func (m *Message) ref() chat.MessageRef {
	return chat.MessageRef{ChatID: m.Chat.ID, MessageID: m.MessageID}
}

func (u User) toChat() chat.User {
	return chat.User{
		ID:        u.ID,
		IsBot:     u.IsBot,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
	}
}
