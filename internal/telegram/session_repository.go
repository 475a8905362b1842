package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ai-nutritionist/internal/profile"
	"ai-nutritionist/internal/shared"
	"ai-nutritionist/internal/store"
)

// Session remembers a chat user's last suggestion so /rate and /latest can
// refer back to it.
type Session struct {
	UserID     int64                  `json:"user_id"`
	LastPlanID string                 `json:"last_plan_id,omitempty"`
	Recipes    map[shared.Slot]string `json:"recipes,omitempty"`
	Profile    *profile.Profile       `json:"profile,omitempty"`
	UpdatedMs  int64                  `json:"ts_ms"`
}

// SessionRepository keeps one session per user under telegram_sessions/<id>.
type SessionRepository struct {
	store store.Store
	now   func() time.Time
}

// NewSessionRepository creates a new SessionRepository instance
func NewSessionRepository(s store.Store) *SessionRepository {
	return &SessionRepository{store: s, now: time.Now}
}

func sessionPath(userID int64) string {
	return "telegram_sessions/" + strconv.FormatInt(userID, 10)
}

// Get returns the user's session, or nil when there is none.
func (sr *SessionRepository) Get(ctx context.Context, userID int64) (*Session, error) {
	raw, err := sr.store.GetNode(ctx, sessionPath(userID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session for %d: %w", userID, err)
	}
	return &s, nil
}

// Save replaces the user's session.
func (sr *SessionRepository) Save(ctx context.Context, s *Session) error {
	s.UpdatedMs = sr.now().UnixMilli()
	if err := sr.store.Set(ctx, sessionPath(s.UserID), s); err != nil {
		return fmt.Errorf("failed to save session for %d: %w", s.UserID, err)
	}
	return nil
}

// Delete forgets the user's session. Deleting a missing session is not an
// error.
func (sr *SessionRepository) Delete(ctx context.Context, userID int64) error {
	err := sr.store.Remove(ctx, sessionPath(userID))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}
