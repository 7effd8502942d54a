package onebot

import (
	"strconv"
	"strings"
)

// Post types.
const (
	PostTypeMessage = "message"
	PostTypeNotice  = "notice"
	PostTypeMeta    = "meta_event"
)

// Event is a OneBot v11 event as posted to the webhook. Only the fields the
// bot acts on are decoded.
type Event struct {
	Time        int64   `json:"time"`
	SelfID      int64   `json:"self_id"`
	PostType    string  `json:"post_type"`
	MessageType string  `json:"message_type,omitempty"`
	NoticeType  string  `json:"notice_type,omitempty"`
	SubType     string  `json:"sub_type,omitempty"`
	MessageID   int64   `json:"message_id,omitempty"`
	UserID      int64   `json:"user_id,omitempty"`
	GroupID     int64   `json:"group_id,omitempty"`
	TargetID    int64   `json:"target_id,omitempty"`
	RawMessage  string  `json:"raw_message,omitempty"`
	Message     Message `json:"message,omitempty"`
}

// IsMessage reports whether e is a private or group message.
func (e *Event) IsMessage() bool {
	return e.PostType == PostTypeMessage
}

// IsPoke reports whether e is a poke notification.
func (e *Event) IsPoke() bool {
	return e.PostType == PostTypeNotice && e.NoticeType == "notify" && e.SubType == "poke"
}

// IsGroup reports whether e happened in a group.
func (e *Event) IsGroup() bool {
	return e.GroupID != 0
}

// UserKey is the string form of the acting user's id.
func (e *Event) UserKey() string {
	return strconv.FormatInt(e.UserID, 10)
}

// SelfKey is the string form of the bot's id.
func (e *Event) SelfKey() string {
	return strconv.FormatInt(e.SelfID, 10)
}

// ToMe reports whether the event is addressed to the bot: a poke aimed at
// it, a private message, or a group message that mentions it or starts with
// one of its nicknames.
func (e *Event) ToMe(nicknames []string) bool {
	switch {
	case e.IsPoke():
		return e.TargetID == e.SelfID
	case e.IsMessage() && e.MessageType == "private":
		return true
	case e.IsMessage():
		if e.Message.Mentions(e.SelfKey()) {
			return true
		}
		text := strings.TrimSpace(e.Message.PlainText())
		for _, nick := range nicknames {
			if nick != "" && strings.HasPrefix(text, nick) {
				return true
			}
		}
	}
	return false
}

// CommandText returns the message text with a leading nickname and
// surrounding whitespace removed. Mentions are not text and drop out.
func (e *Event) CommandText(nicknames []string) string {
	text := strings.TrimSpace(e.Message.PlainText())
	for _, nick := range nicknames {
		if nick != "" && strings.HasPrefix(text, nick) {
			text = strings.TrimSpace(strings.TrimPrefix(text, nick))
			text = strings.TrimLeft(text, ",，")
			return strings.TrimSpace(text)
		}
	}
	return text
}

// ReplyTarget is where a reply to e should go.
func (e *Event) ReplyTarget() Target {
	if e.IsGroup() {
		return Target{GroupID: e.GroupID}
	}
	return Target{UserID: e.UserID}
}

// Target addresses a send_msg call. Exactly one field is set.
type Target struct {
	UserID  int64
	GroupID int64
}
