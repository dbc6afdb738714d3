package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chatpulse/chatpulse-cli/internal/convstate"
	"github.com/chatpulse/chatpulse-cli/internal/realtime"
)

func TestMapMessage(t *testing.T) {
	const ts = "2024-05-01T10:00:00Z"
	const tsMillis = int64(1714557600000)

	tests := []struct {
		name   string
		msg    realtime.Message
		want   inbound
		reason string
	}{
		{
			name: "direct from other",
			msg:  realtime.Message{Sender: "bob", Recipients: "alice", Timestamp: ts},
			want: inbound{id: convstate.Direct("bob"), sender: "bob", ts: tsMillis},
		},
		{
			name: "direct sent by self",
			msg:  realtime.Message{Sender: "alice", Recipients: "bob", Timestamp: ts},
			want: inbound{id: convstate.Direct("bob"), sender: "alice", ts: tsMillis, self: true},
		},
		{
			name: "group from other",
			msg:  realtime.Message{Sender: "bob", Recipients: "group-4", Timestamp: ts},
			want: inbound{id: convstate.Group("4"), sender: "bob", ts: tsMillis},
		},
		{
			name: "group sent by self",
			msg:  realtime.Message{Sender: "alice", Recipients: "group-4", Timestamp: ts},
			want: inbound{id: convstate.Group("4"), sender: "alice", ts: tsMillis, self: true},
		},
		{
			name: "recipient list including self",
			msg:  realtime.Message{Sender: "bob", Recipients: "carol, alice", Timestamp: ts},
			want: inbound{id: convstate.Direct("bob"), sender: "bob", ts: tsMillis},
		},
		{
			name: "missing timestamp uses now",
			msg:  realtime.Message{Sender: "bob", Recipients: "alice"},
			want: inbound{id: convstate.Direct("bob"), sender: "bob", ts: fixedNow.UnixMilli()},
		},
		{
			name:   "direct between others",
			msg:    realtime.Message{Sender: "bob", Recipients: "carol", Timestamp: ts},
			reason: "direct message not addressed to us",
		},
		{
			name:   "note to self",
			msg:    realtime.Message{Sender: "alice", Recipients: "alice", Timestamp: ts},
			reason: "message to self",
		},
		{
			name:   "bad group",
			msg:    realtime.Message{Sender: "bob", Recipients: "group-", Timestamp: ts},
			reason: "invalid group recipient",
		},
		{
			name:   "bad timestamp",
			msg:    realtime.Message{Sender: "bob", Recipients: "alice", Timestamp: "yesterday"},
			reason: "unparsable timestamp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := mapMessage(tt.msg, "alice", clock)
			assert.Equal(t, tt.reason, reason)
			if tt.reason == "" {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestHandleEventIgnoresUnknownAndMalformed(t *testing.T) {
	s := New(Config{Username: "alice"}, Deps{Clock: clock, Logger: quietLogger()})

	assert.False(t, s.handleEvent(realtime.Event{Name: "typing"}))
	assert.False(t, s.handleEvent(realtime.Event{Name: realtime.EventReceiveMessage, Data: []byte(`{"sender":""}`)}))
	assert.Equal(t, 0, s.state.tracker.Len())

	assert.True(t, s.handleEvent(messageEvent("bob", "alice", "")))
	assert.Equal(t, 1, s.state.tracker.UnreadCount(convstate.Direct("bob")))

	assert.False(t, s.handleEvent(realtime.Event{Name: realtime.EventGroupDeleted}))
	select {
	case <-s.wake:
	default:
		t.Fatal("expected a poll request")
	}
}
