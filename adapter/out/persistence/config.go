package persistence

import (
	"context"
	"fmt"

	"mailbrief/core/domain"
)

type configRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// GetUserConfig loads a user's string key/value config map (§6).
func (s *Store) GetUserConfig(ctx context.Context, userID int64) (domain.UserConfig, error) {
	const query = `SELECT key, value FROM user_config WHERE user_id = $1`

	var rows []configRow
	if err := s.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("persistence: get user config for user %d: %w", userID, err)
	}

	cfg := make(domain.UserConfig, len(rows))
	for _, r := range rows {
		cfg[r.Key] = r.Value
	}
	return cfg, nil
}
