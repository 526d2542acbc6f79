package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/artpar/cmskit/domain/collection"
	"github.com/artpar/cmskit/ports"
)

// CollectionStore implements ports.CollectionStore.
type CollectionStore struct {
	db *sql.DB
}

func (s *CollectionStore) Create(ctx context.Context, c collection.Collection, cfg collection.Config) error {
	doc, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO collections (id, owner_id, name, slug, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.OwnerID, c.Name, c.Slug, c.CreatedAt, c.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert collection: %w", translate(err))
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO collection_configs (collection_id, config, updated_at)
		VALUES ($1, $2, $3)`,
		c.ID, doc, c.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert config: %w", translate(err))
	}
	return tx.Commit()
}

func (s *CollectionStore) Get(ctx context.Context, id string) (collection.Collection, error) {
	c, err := scanCollection(s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, slug, created_at, updated_at
		FROM collections WHERE id = $1`, id))
	return c, translate(err)
}

func (s *CollectionStore) ListByOwner(ctx context.Context, ownerID string) ([]collection.Collection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, name, slug, created_at, updated_at
		FROM collections WHERE owner_id = $1 ORDER BY created_at, id`, ownerID)
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

func (s *CollectionStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE id = $1`, id)
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
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Slug, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// ConfigStore implements ports.ConfigStore with one JSONB document per
// collection.
type ConfigStore struct {
	db  *sql.DB
	now func() time.Time
}

func (s *ConfigStore) Load(ctx context.Context, collectionID string) (collection.Config, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT config FROM collection_configs WHERE collection_id = $1`, collectionID,
	).Scan(&doc)
	if err != nil {
		return collection.Config{}, translate(err)
	}
	cfg := collection.Empty()
	if err := json.Unmarshal(doc, &cfg); err != nil {
		return collection.Config{}, fmt.Errorf("decode config of %s: %w", collectionID, err)
	}
	return cfg, nil
}

func (s *ConfigStore) Replace(ctx context.Context, collectionID string, cfg collection.Config) error {
	doc, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE collection_configs SET config = $1, updated_at = $2 WHERE collection_id = $3`,
		doc, s.now().UTC(), collectionID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ItemStore implements ports.ItemStore. Custom field values live in the
// item_data JSONB column.
type ItemStore struct {
	db *sql.DB
}

const itemColumns = `collection_id, id, owner_id, title, slug, content, author, date, tags, cover, item_data, published_at, created_at, updated_at`

func (s *ItemStore) Create(ctx context.Context, it collection.Item) error {
	data, err := itemData(it)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		it.CollectionID, it.ID, it.OwnerID, it.Title, it.Slug, it.Content, it.Author, it.Date,
		pq.Array(tagsOf(it)), it.Cover, data, nullTimePtr(it.PublishedAt), it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", translate(err))
	}
	return nil
}

func (s *ItemStore) Get(ctx context.Context, collectionID, id string) (collection.Item, error) {
	it, err := scanItem(s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE collection_id = $1 AND id = $2`,
		collectionID, id))
	return it, translate(err)
}

func (s *ItemStore) Update(ctx context.Context, it collection.Item) error {
	data, err := itemData(it)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE items SET title = $1, slug = $2, content = $3, author = $4, date = $5,
			tags = $6, cover = $7, item_data = $8, published_at = $9, updated_at = $10
		WHERE collection_id = $11 AND id = $12`,
		it.Title, it.Slug, it.Content, it.Author, it.Date,
		pq.Array(tagsOf(it)), it.Cover, data, nullTimePtr(it.PublishedAt), it.UpdatedAt,
		it.CollectionID, it.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *ItemStore) List(ctx context.Context, collectionID string, limit int) ([]collection.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE collection_id = $1 ORDER BY created_at DESC, id DESC`
	args := []any{collectionID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []collection.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func tagsOf(it collection.Item) []string {
	if it.Tags == nil {
		return []string{}
	}
	return it.Tags
}

func itemData(it collection.Item) ([]byte, error) {
	d := it.Data
	if d == nil {
		d = map[string]any{}
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode item_data: %w", err)
	}
	return b, nil
}

func scanItem(row scanner) (collection.Item, error) {
	var it collection.Item
	var tags []string
	var data []byte
	var published sql.NullTime
	err := row.Scan(&it.CollectionID, &it.ID, &it.OwnerID, &it.Title, &it.Slug, &it.Content,
		&it.Author, &it.Date, pq.Array(&tags), &it.Cover, &data, &published, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return collection.Item{}, err
	}
	if len(tags) > 0 {
		it.Tags = tags
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &it.Data); err != nil {
			return collection.Item{}, fmt.Errorf("decode item_data of %s: %w", it.ID, err)
		}
	}
	if published.Valid {
		t := published.Time
		it.PublishedAt = &t
	}
	return it, nil
}

// MembershipStore implements ports.MembershipStore.
type MembershipStore struct {
	db *sql.DB
}

func (s *MembershipStore) ForUser(ctx context.Context, userID string) (ports.Membership, error) {
	var m ports.Membership
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT context_id, user_id, role, created_at FROM memberships WHERE user_id = $1`, userID,
	).Scan(&m.ContextID, &m.UserID, &role, &m.CreatedAt)
	if err != nil {
		return ports.Membership{}, translate(err)
	}
	m.Role = ports.Role(role)
	return m, nil
}

func (s *MembershipStore) Add(ctx context.Context, m ports.Membership) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memberships (user_id, context_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET context_id = EXCLUDED.context_id, role = EXCLUDED.role`,
		m.UserID, m.ContextID, string(m.Role), m.CreatedAt,
	)
	return err
}

var (
	_ ports.CollectionStore = (*CollectionStore)(nil)
	_ ports.ConfigStore     = (*ConfigStore)(nil)
	_ ports.ItemStore       = (*ItemStore)(nil)
	_ ports.MembershipStore = (*MembershipStore)(nil)
)
