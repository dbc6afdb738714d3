package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/chatpulse/chatpulse-cli/internal/api"
)

type directorySnapshot struct {
	Users  []api.UserStatus `json:"users"`
	Groups []api.Group      `json:"groups"`
}

// loadDirectory returns the cached directory when fresh, otherwise fetches
// and caches it.
func (s *Session) loadDirectory(ctx context.Context) (directorySnapshot, error) {
	var dir directorySnapshot
	if s.deps.Cache != nil && s.deps.Cache.Get(&dir) {
		s.logger.Debug("directory from cache", "users", len(dir.Users), "groups", len(dir.Groups))
		return dir, nil
	}
	if s.deps.Directory == nil {
		return dir, nil
	}

	users, userErr := s.deps.Directory.UsersStatus(ctx)
	if userErr != nil {
		userErr = fmt.Errorf("list users: %w", userErr)
	}
	groups, groupErr := s.deps.Directory.Groups(ctx)
	if groupErr != nil {
		groupErr = fmt.Errorf("list groups: %w", groupErr)
	}
	dir = directorySnapshot{Users: users, Groups: groups}
	if err := errors.Join(userErr, groupErr); err != nil {
		return dir, err
	}
	if s.deps.Cache != nil {
		s.deps.Cache.Put(dir)
	}
	return dir, nil
}

// seedDirectory registers every known user and group with the tracker. A
// partial or failed listing is logged; the session still runs.
func (s *Session) seedDirectory(ctx context.Context) {
	dir, err := s.loadDirectory(ctx)
	if err != nil {
		s.logger.Warn("directory incomplete", "error", err)
	}
	s.state.seed(dir)
}
