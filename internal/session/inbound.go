package session

import (
	"strings"
	"time"

	"github.com/chatpulse/chatpulse-cli/internal/convstate"
	"github.com/chatpulse/chatpulse-cli/internal/realtime"
)

// inbound is a push message reduced to what the Tracker needs.
type inbound struct {
	id     convstate.ID
	sender string
	ts     int64
	self   bool
}

// mapMessage decides which conversation a pushed message belongs to.
//
// Group messages go to their group. A direct message belongs to the other
// party: the recipient when we sent it, the sender otherwise. Direct
// messages not addressed to us, messages to ourselves, and messages with an
// unparsable timestamp are dropped with a reason. A missing timestamp means
// now.
func mapMessage(msg realtime.Message, self string, now func() time.Time) (inbound, string) {
	isSelf := msg.Sender == self

	var id convstate.ID
	if strings.HasPrefix(msg.Recipients, "group-") {
		parsed, ok := convstate.ParseRecipient(msg.Recipients)
		if !ok {
			return inbound{}, "invalid group recipient"
		}
		id = parsed
	} else {
		partner := msg.Sender
		if isSelf {
			partner = firstOther(msg.Recipients, self)
		} else if !addressedTo(msg.Recipients, self) {
			return inbound{}, "direct message not addressed to us"
		}
		if partner == "" || partner == self {
			return inbound{}, "message to self"
		}
		id = convstate.Direct(partner)
	}

	ts, ok, err := realtime.ParseTimestamp(msg.Timestamp)
	if err != nil {
		return inbound{}, "unparsable timestamp"
	}
	if !ok {
		ts = now().UnixMilli()
	}
	return inbound{id: id, sender: msg.Sender, ts: ts, self: isSelf}, ""
}

func addressedTo(recipients, user string) bool {
	for _, r := range strings.Split(recipients, ",") {
		if strings.TrimSpace(r) == user {
			return true
		}
	}
	return false
}

func firstOther(recipients, self string) string {
	for _, r := range strings.Split(recipients, ",") {
		if r = strings.TrimSpace(r); r != "" && r != self {
			return r
		}
	}
	return ""
}

// handleEvent applies one push event on the dispatch loop. Messages from
// others are followed by a poll, or by a server mark-read when their
// conversation is focused.
func (s *Session) handleEvent(ev realtime.Event) bool {
	switch ev.Name {
	case realtime.EventReceiveMessage:
		msg, err := realtime.DecodeMessage(ev.Data)
		if err != nil {
			s.logger.Debug("dropping push message", "error", err)
			return false
		}
		in, reason := mapMessage(msg, s.cfg.Username, s.now)
		if reason != "" {
			s.logger.Debug("dropping push message", "reason", reason, "sender", msg.Sender, "recipients", msg.Recipients)
			return false
		}
		s.state.applyIncoming(in)
		if !in.self {
			// A focused conversation is read on arrival.
			if in.id == s.state.focused {
				s.requestMarkRead(in.id)
			} else {
				s.requestPoll()
			}
		}
		return true
	case realtime.EventMessageDeleted, realtime.EventChatCleared, realtime.EventFileDeleted, realtime.EventGroupDeleted:
		s.requestPoll()
		return false
	default:
		s.logger.Debug("ignoring push event", "event", ev.Name)
		return false
	}
}
