package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/cmskit/domain/collection"
	"github.com/artpar/cmskit/ports"
)

// CollectionStore implements ports.CollectionStore using SQLite.
type CollectionStore struct {
	db *DB
}

// NewCollectionStore creates a new collection store.
func NewCollectionStore(db *DB) *CollectionStore {
	return &CollectionStore{db: db}
}

// Create stores a collection and its initial configuration in one transaction.
func (s *CollectionStore) Create(ctx context.Context, c collection.Collection, cfg collection.Config) error {
	doc, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tx, err := s.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO collections (id, owner_id, name, slug, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.Name, c.Slug, formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert collection: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO collection_configs (collection_id, config, updated_at) VALUES (?, ?, ?)`,
		c.ID, string(doc), formatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert config: %w", err)
	}

	return tx.Commit()
}

// Get retrieves a collection by ID.
func (s *CollectionStore) Get(ctx context.Context, id string) (collection.Collection, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT id, owner_id, name, slug, created_at, updated_at FROM collections WHERE id = ?`,
		id,
	)
	c, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return collection.Collection{}, ports.ErrNotFound
	}
	return c, err
}

// ListByOwner returns the collections of an owner, oldest first.
func (s *CollectionStore) ListByOwner(ctx context.Context, ownerID string) ([]collection.Collection, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, owner_id, name, slug, created_at, updated_at FROM collections
		WHERE owner_id = ? ORDER BY created_at, id`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []collection.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Delete removes a collection. Its configuration and items cascade.
func (s *CollectionStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.DB.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCollection(row scanner) (collection.Collection, error) {
	var c collection.Collection
	var created, updated string
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Slug, &created, &updated); err != nil {
		return collection.Collection{}, err
	}
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return c, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// ConfigStore implements ports.ConfigStore using SQLite. The configuration
// is one JSON document per collection, replaced whole.
type ConfigStore struct {
	db  *DB
	now func() time.Time
}

// NewConfigStore creates a new config store.
func NewConfigStore(db *DB) *ConfigStore {
	return &ConfigStore{db: db, now: time.Now}
}

func (s *ConfigStore) Load(ctx context.Context, collectionID string) (collection.Config, error) {
	var doc string
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT config FROM collection_configs WHERE collection_id = ?`,
		collectionID,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return collection.Config{}, ports.ErrNotFound
	}
	if err != nil {
		return collection.Config{}, err
	}

	cfg := collection.Empty()
	if err := json.Unmarshal([]byte(doc), &cfg); err != nil {
		return collection.Config{}, fmt.Errorf("decode config of %s: %w", collectionID, err)
	}
	return cfg, nil
}

func (s *ConfigStore) Replace(ctx context.Context, collectionID string, cfg collection.Config) error {
	doc, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	res, err := s.db.DB.ExecContext(ctx,
		`UPDATE collection_configs SET config = ?, updated_at = ? WHERE collection_id = ?`,
		string(doc), formatTime(s.now()), collectionID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

var (
	_ ports.CollectionStore = (*CollectionStore)(nil)
	_ ports.ConfigStore     = (*ConfigStore)(nil)
)
