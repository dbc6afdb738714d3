package convstate

import "strconv"

// Totals summarises unread state across all conversations, the numbers the
// chats/groups header badges show.
type Totals struct {
	Chats     int  `json:"chats"`  // unread direct messages
	Groups    int  `json:"groups"` // unread group messages
	HasUnread bool `json:"has_unread"`
}

// Totals sums unread counts by conversation kind.
func (t *Tracker) Totals() Totals {
	var out Totals
	for id, e := range t.entries {
		switch id.Kind {
		case KindDirect:
			out.Chats += e.unread
		case KindGroup:
			out.Groups += e.unread
		}
	}
	out.HasUnread = out.Chats > 0 || out.Groups > 0
	return out
}

// BadgeLabel is the text shown on a conversation badge: empty when there is
// nothing unread, "New" for a single message, the count otherwise.
func BadgeLabel(unread int) string {
	switch {
	case unread <= 0:
		return ""
	case unread == 1:
		return "New"
	default:
		return strconv.Itoa(unread)
	}
}
