package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/artpar/cmskit/ports"
)

// MembershipStore implements ports.MembershipStore using SQLite.
type MembershipStore struct {
	db *DB
}

// NewMembershipStore creates a new membership store.
func NewMembershipStore(db *DB) *MembershipStore {
	return &MembershipStore{db: db}
}

func (s *MembershipStore) ForUser(ctx context.Context, userID string) (ports.Membership, error) {
	var m ports.Membership
	var role, created string
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT context_id, user_id, role, created_at FROM memberships WHERE user_id = ?`,
		userID,
	).Scan(&m.ContextID, &m.UserID, &role, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Membership{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.Membership{}, err
	}
	m.Role = ports.Role(role)
	m.CreatedAt = parseTime(created)
	return m, nil
}

func (s *MembershipStore) Add(ctx context.Context, m ports.Membership) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO memberships (user_id, context_id, role, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			context_id = excluded.context_id,
			role = excluded.role`,
		m.UserID, m.ContextID, string(m.Role), formatTime(m.CreatedAt),
	)
	return err
}

var _ ports.MembershipStore = (*MembershipStore)(nil)
