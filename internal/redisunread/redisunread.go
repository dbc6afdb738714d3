// Package redisunread reads per-user conversation unread counts from the
// Redis layout the chat backend maintains:
//
//	im:conv:idx:<user>          ZSET  member p:<peer> | g:<group>, score update_at millis
//	im:conv:<user>:<member>     HASH  unread_count, last_msg_id, update_at, ...
package redisunread

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/chatpulse/chatpulse-cli/internal/convstate"
)

const (
	keyPrefix   = "im:conv:"
	fieldUnread = "unread_count"
	memberPeer  = "p:"
	memberGroup = "g:"
)

// IndexKey is the recency index for user.
func IndexKey(user string) string { return keyPrefix + "idx:" + user }

// ConversationKey is the per-conversation hash for user.
func ConversationKey(user string, id convstate.ID) string {
	return keyPrefix + user + ":" + Member(id)
}

// Member encodes id as an index member.
func Member(id convstate.ID) string {
	if id.IsGroup() {
		return memberGroup + id.Key
	}
	return memberPeer + id.Key
}

// ParseMember decodes an index member.
func ParseMember(m string) (convstate.ID, bool) {
	switch {
	case strings.HasPrefix(m, memberPeer):
		id := convstate.Direct(m[len(memberPeer):])
		return id, id.Valid()
	case strings.HasPrefix(m, memberGroup):
		id := convstate.Group(m[len(memberGroup):])
		return id, id.Valid()
	}
	return convstate.ID{}, false
}

// Options configures NewClient.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient opens a go-redis client.
func NewClient(opts Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// Source serves unread snapshots for one user.
type Source struct {
	rdb    redis.Cmdable
	user   string
	logger *slog.Logger
}

// New returns a Source reading user's conversations.
func New(rdb redis.Cmdable, user string) *Source {
	return &Source{rdb: rdb, user: user, logger: slog.Default()}
}

// FetchUnread returns the unread count of every indexed conversation.
// Conversations whose hash has no unread_count report 0.
func (s *Source) FetchUnread(ctx context.Context) (convstate.PollSnapshot, error) {
	members, err := s.rdb.ZRange(ctx, IndexKey(s.user), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read conversation index: %w", err)
	}
	if len(members) == 0 {
		return convstate.PollSnapshot{}, nil
	}

	ids := make([]convstate.ID, 0, len(members))
	for _, m := range members {
		id, ok := ParseMember(m)
		if !ok {
			s.logger.Debug("skipping malformed conversation member", "member", m)
			continue
		}
		ids = append(ids, id)
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGet(ctx, ConversationKey(s.user, id), fieldUnread)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read unread counts: %w", err)
	}

	snap := make(convstate.PollSnapshot, len(ids))
	for i, id := range ids {
		n, err := cmds[i].Int()
		switch {
		case errors.Is(err, redis.Nil):
			n = 0
		case err != nil:
			s.logger.Debug("skipping unreadable count", "conversation", id.String(), "error", err)
			continue
		}
		snap[id] = n
	}
	return snap, nil
}

// MarkRead zeroes the stored unread count.
func (s *Source) MarkRead(ctx context.Context, id convstate.ID) error {
	if !id.Valid() {
		return fmt.Errorf("mark read: invalid conversation")
	}
	if err := s.rdb.HSet(ctx, ConversationKey(s.user, id), fieldUnread, 0).Err(); err != nil {
		return fmt.Errorf("mark read %s: %w", id, err)
	}
	return nil
}
