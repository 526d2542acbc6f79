package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/artpar/cmskit/domain/collection"
	"github.com/artpar/cmskit/ports"
)

// ItemStore implements ports.ItemStore using SQLite. Custom field values are
// kept in the item_data JSON column.
type ItemStore struct {
	db *DB
}

// NewItemStore creates a new item store.
func NewItemStore(db *DB) *ItemStore {
	return &ItemStore{db: db}
}

const itemColumns = `collection_id, id, owner_id, title, slug, content, author, date, tags, cover, item_data, published_at, created_at, updated_at`

func (s *ItemStore) Create(ctx context.Context, it collection.Item) error {
	args, err := itemArgs(it)
	if err != nil {
		return err
	}
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (s *ItemStore) Get(ctx context.Context, collectionID, id string) (collection.Item, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE collection_id = ? AND id = ?`,
		collectionID, id,
	)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return collection.Item{}, ports.ErrNotFound
	}
	return it, err
}

func (s *ItemStore) Update(ctx context.Context, it collection.Item) error {
	tags, data, err := encodeItemJSON(it)
	if err != nil {
		return err
	}
	res, err := s.db.DB.ExecContext(ctx,
		`UPDATE items SET title = ?, slug = ?, content = ?, author = ?, date = ?, tags = ?,
			cover = ?, item_data = ?, published_at = ?, updated_at = ?
		WHERE collection_id = ? AND id = ?`,
		it.Title, it.Slug, it.Content, it.Author, it.Date, tags,
		it.Cover, data, nullableTime(it), formatTime(it.UpdatedAt),
		it.CollectionID, it.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *ItemStore) List(ctx context.Context, collectionID string, limit int) ([]collection.Item, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE collection_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`,
		collectionID, limit,
	)
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

func itemArgs(it collection.Item) ([]any, error) {
	tags, data, err := encodeItemJSON(it)
	if err != nil {
		return nil, err
	}
	return []any{
		it.CollectionID, it.ID, it.OwnerID, it.Title, it.Slug, it.Content, it.Author, it.Date,
		tags, it.Cover, data, nullableTime(it), formatTime(it.CreatedAt), formatTime(it.UpdatedAt),
	}, nil
}

func encodeItemJSON(it collection.Item) (tags, data string, err error) {
	t := it.Tags
	if t == nil {
		t = []string{}
	}
	tb, err := json.Marshal(t)
	if err != nil {
		return "", "", fmt.Errorf("encode tags: %w", err)
	}
	d := it.Data
	if d == nil {
		d = map[string]any{}
	}
	dataJSON, err := json.Marshal(d)
	if err != nil {
		return "", "", fmt.Errorf("encode item_data: %w", err)
	}
	return string(tb), string(dataJSON), nil
}

func nullableTime(it collection.Item) sql.NullString {
	if it.PublishedAt == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*it.PublishedAt), Valid: true}
}

func scanItem(row scanner) (collection.Item, error) {
	var it collection.Item
	var tags, data, created, updated string
	var published sql.NullString
	err := row.Scan(&it.CollectionID, &it.ID, &it.OwnerID, &it.Title, &it.Slug, &it.Content,
		&it.Author, &it.Date, &tags, &it.Cover, &data, &published, &created, &updated)
	if err != nil {
		return collection.Item{}, err
	}
	if err := json.Unmarshal([]byte(tags), &it.Tags); err != nil {
		return collection.Item{}, fmt.Errorf("decode tags of %s: %w", it.ID, err)
	}
	if len(it.Tags) == 0 {
		it.Tags = nil
	}
	if err := json.Unmarshal([]byte(data), &it.Data); err != nil {
		return collection.Item{}, fmt.Errorf("decode item_data of %s: %w", it.ID, err)
	}
	if published.Valid {
		t := parseTime(published.String)
		it.PublishedAt = &t
	}
	it.CreatedAt = parseTime(created)
	it.UpdatedAt = parseTime(updated)
	return it, nil
}

var _ ports.ItemStore = (*ItemStore)(nil)
