package persistence

import (
	"context"
	"fmt"

	"mailbrief/core/domain"
)

func (s *Store) SaveNotification(ctx context.Context, userID int64, title, message string, kind domain.NotificationType) error {
	const query = `
		INSERT INTO notifications (user_id, type, title, message, is_read, created_at)
		VALUES ($1, $2, $3, $4, false, now())`

	if _, err := s.db.ExecContext(ctx, query, userID, string(kind), title, message); err != nil {
		return fmt.Errorf("persistence: save notification for user %d: %w", userID, err)
	}
	return nil
}
