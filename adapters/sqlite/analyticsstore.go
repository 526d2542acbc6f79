package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/artpar/cmskit/ports"
)

// AnalyticsStore records analytics events in SQLite.
type AnalyticsStore struct {
	db *DB
}

// NewAnalyticsStore creates a new analytics store.
func NewAnalyticsStore(db *DB) *AnalyticsStore {
	return &AnalyticsStore{db: db}
}

// Record writes a batch of events in one transaction.
func (s *AnalyticsStore) Record(ctx context.Context, events []ports.AnalyticsRecord) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO analytics_events (name, context_id, user_id, properties, at) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		var props sql.NullString
		if len(e.Properties) > 0 {
			b, err := json.Marshal(e.Properties)
			if err != nil {
				return fmt.Errorf("encode properties of %s: %w", e.Name, err)
			}
			props = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, e.Name, e.ContextID, e.UserID, props, formatTime(e.At)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Recent returns the latest events, newest first.
func (s *AnalyticsStore) Recent(ctx context.Context, limit int) ([]ports.AnalyticsRecord, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT name, context_id, user_id, properties, at FROM analytics_events
		ORDER BY at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ports.AnalyticsRecord
	for rows.Next() {
		var e ports.AnalyticsRecord
		var contextID, userID, props sql.NullString
		var at string
		if err := rows.Scan(&e.Name, &contextID, &userID, &props, &at); err != nil {
			return nil, err
		}
		e.ContextID = contextID.String
		e.UserID = userID.String
		if props.Valid {
			if err := json.Unmarshal([]byte(props.String), &e.Properties); err != nil {
				return nil, fmt.Errorf("decode properties: %w", err)
			}
		}
		e.At = parseTime(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ ports.AnalyticsSink = (*AnalyticsStore)(nil)
