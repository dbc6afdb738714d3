package session

import (
	"context"
	"errors"
	"time"

	"github.com/chatpulse/chatpulse-cli/internal/realtime"
)

var errStreamClosed = errors.New("push stream closed")

// pump keeps a push stream open, reconnecting with capped exponential
// backoff. Each reconnect requests a poll to catch up on what was missed.
func (s *Session) pump(ctx context.Context, rooms []string) error {
	backoff := s.cfg.MinBackoff
	connected := false

	for {
		start := time.Now()
		events, err := s.deps.Push.Stream(ctx, rooms)
		if err == nil {
			if connected {
				s.requestPoll()
			}
			connected = true
			s.logger.Debug("push connected", "rooms", len(rooms))
			err = s.forward(ctx, events)
		}
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(start) > backoffResetAfter {
			backoff = s.cfg.MinBackoff
		}
		s.logger.Warn("push disconnected, reconnecting", "error", err, "backoff", backoff)

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil
		}
		backoff = min(backoff*2, s.cfg.MaxBackoff)
	}
}

// forward copies events to the dispatch loop until the stream ends.
func (s *Session) forward(ctx context.Context, events <-chan realtime.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return errStreamClosed
			}
			if ev.Err != nil {
				return ev.Err
			}
			select {
			case s.events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
