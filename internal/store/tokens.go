// ABOUTME: SQLite persistence for visitor tokens attached to authenticated users
// ABOUTME: Backs identity promotion so anonymous activity links forward after login

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/growthtools/abtrack/internal/scope"
)

// VisitorToken returns the stored visitor token for a user.
// Returns scope.ErrNoToken when the user has none.
func (s *SQLiteStore) VisitorToken(ctx context.Context, userID string) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		`SELECT token FROM visitor_tokens WHERE user_id = ?`, userID,
	).Scan(&token)

	if err == sql.ErrNoRows {
		return "", scope.ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("querying visitor token: %w", err)
	}

	return token, nil
}

// SetVisitorToken stores or replaces the visitor token for a user.
func (s *SQLiteStore) SetVisitorToken(ctx context.Context, userID, token string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO visitor_tokens (user_id, token, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at
	`, userID, token, now, now)
	if err != nil {
		return fmt.Errorf("saving visitor token: %w", err)
	}

	s.logger.Debug("saved visitor token", "user_id", userID)
	return nil
}

// Ensure SQLiteStore implements the resolver's PrincipalStore interface
var _ scope.PrincipalStore = (*SQLiteStore)(nil)
