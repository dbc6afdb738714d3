package session

import (
	"context"
	"time"
)

// poll fetches unread counts at PollInterval and whenever a poll is
// requested. Pending mark-read calls go out first so the poll that follows
// already reflects them. Polls run one at a time; requests that arrive
// during a poll collapse into one follow-up poll. Failures are logged and
// the previous counts stay in place.
func (s *Session) poll(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-s.wake:
		}
		s.pollOnce(ctx)
	}
}

func (s *Session) pollOnce(ctx context.Context) {
	for _, id := range s.takePendingReads() {
		if err := s.deps.Reads.MarkRead(ctx, id); err != nil && ctx.Err() == nil {
			s.logger.Warn("mark read failed", "conversation", id.String(), "error", err)
		}
	}
	if s.deps.Unread == nil {
		return
	}

	snap, err := s.deps.Unread.FetchUnread(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("unread poll failed", "error", err)
		}
		return
	}
	select {
	case s.snapshots <- snap:
	case <-ctx.Done():
	}
}
