package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/cmskit/adapters/sqlite"
	"github.com/artpar/cmskit/domain/collection"
	"github.com/artpar/cmskit/domain/field"
	"github.com/artpar/cmskit/ports"
)

func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "cmskit-test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createCollection(t *testing.T, db *sqlite.DB, id, owner string, cfg collection.Config) {
	t.Helper()
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	c := collection.Collection{ID: id, OwnerID: owner, Name: id, Slug: id, CreatedAt: now, UpdatedAt: now}
	if err := sqlite.NewCollectionStore(db).Create(context.Background(), c, cfg); err != nil {
		t.Fatalf("create collection %s: %v", id, err)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var version int
	var dirty bool
	if err := db.QueryRow("SELECT version, dirty FROM schema_migrations").Scan(&version, &dirty); err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if version != 2 || dirty {
		t.Errorf("schema version = %d (dirty %v), want 2", version, dirty)
	}
}

// -----------------------------------------------------------------------------
// CollectionStore Tests
// -----------------------------------------------------------------------------

func TestCollectionStore_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := sqlite.NewCollectionStore(db)

	createCollection(t, db, "blog", "alice", collection.Empty())

	got, err := store.Get(ctx, "blog")
	if err != nil {
		t.Fatalf("get collection: %v", err)
	}
	if got.OwnerID != "alice" {
		t.Errorf("OwnerID = %s, want alice", got.OwnerID)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not restored")
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestCollectionStore_ListByOwner(t *testing.T) {
	db := setupTestDB(t)
	createCollection(t, db, "a", "alice", collection.Empty())
	createCollection(t, db, "b", "alice", collection.Empty())
	createCollection(t, db, "c", "bob", collection.Empty())

	got, err := sqlite.NewCollectionStore(db).ListByOwner(context.Background(), "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("ListByOwner = %+v, want a, b", got)
	}
}

func TestCollectionStore_DeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createCollection(t, db, "blog", "alice", collection.Empty())

	items := sqlite.NewItemStore(db)
	if err := items.Create(ctx, collection.Item{ID: "i1", CollectionID: "blog", OwnerID: "alice", Title: "Hello"}); err != nil {
		t.Fatalf("create item: %v", err)
	}

	if err := sqlite.NewCollectionStore(db).Delete(ctx, "blog"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := items.Get(ctx, "blog", "i1"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("item survived collection delete: %v", err)
	}
	if _, err := sqlite.NewConfigStore(db).Load(ctx, "blog"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("config survived collection delete: %v", err)
	}
	if err := sqlite.NewCollectionStore(db).Delete(ctx, "blog"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

// -----------------------------------------------------------------------------
// ConfigStore Tests
// -----------------------------------------------------------------------------

func TestConfigStore_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createCollection(t, db, "shop", "alice", collection.Empty())
	store := sqlite.NewConfigStore(db)

	cfg := collection.Config{
		CustomFields: []field.Config{
			{Slug: "price", Label: "Price", Type: field.TypeNumber, Required: true,
				Options: []field.Option{{Key: field.OptMin, Value: field.NumberValue(0)}}},
			{Slug: "status", Label: "Status", Type: field.TypeSelect,
				Options: []field.Option{{Key: field.OptChoices, Value: field.ChoiceListValue{{Value: "draft", Label: "Draft"}}}}},
		},
		BuiltInFields: map[string]collection.BuiltInFieldSettings{
			"tags": {Visible: false},
		},
	}
	if err := store.Replace(ctx, "shop", cfg); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := store.Load(ctx, "shop")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.CustomFields) != 2 {
		t.Fatalf("expected 2 custom fields, got %d", len(got.CustomFields))
	}
	if v, ok := field.Find(got.CustomFields[0].Options, field.OptMin); !ok || v != field.NumberValue(0) {
		t.Errorf("min option = %v, want 0", v)
	}
	if choices := got.CustomFields[1].OptionSet().Choices(); len(choices) != 1 || choices[0].Value != "draft" {
		t.Errorf("choices = %+v", choices)
	}
	if s, ok := got.BuiltInFields["tags"]; !ok || s.Visible {
		t.Errorf("tags override = %+v, want hidden", s)
	}
}

func TestConfigStore_ReplaceMissing(t *testing.T) {
	db := setupTestDB(t)
	err := sqlite.NewConfigStore(db).Replace(context.Background(), "nope", collection.Empty())
	if !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("Replace(missing) error = %v, want ErrNotFound", err)
	}
}

// -----------------------------------------------------------------------------
// ItemStore Tests
// -----------------------------------------------------------------------------

func TestItemStore_CreateGetUpdate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createCollection(t, db, "blog", "alice", collection.Empty())
	store := sqlite.NewItemStore(db)

	created := time.Date(2026, 2, 2, 9, 30, 0, 123456789, time.UTC)
	it := collection.Item{
		ID: "i1", CollectionID: "blog", OwnerID: "alice",
		Title: "Hello", Slug: "hello", Tags: []string{"go", "cms"},
		Data:      map[string]any{"rating": 4.5, "featured": true},
		CreatedAt: created, UpdatedAt: created,
	}
	if err := store.Create(ctx, it); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(ctx, "blog", "i1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Hello" || len(got.Tags) != 2 {
		t.Errorf("unexpected item %+v", got)
	}
	if got.Data["rating"] != 4.5 || got.Data["featured"] != true {
		t.Errorf("item_data = %v", got.Data)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if got.IsPublished() {
		t.Error("new item should not be published")
	}

	pub := created.Add(time.Hour)
	got.PublishedAt = &pub
	got.Title = "Hello again"
	if err := store.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, _ := store.Get(ctx, "blog", "i1")
	if again.Title != "Hello again" || !again.IsPublished() || !again.PublishedAt.Equal(pub) {
		t.Errorf("update not persisted: %+v", again)
	}

	if err := store.Update(ctx, collection.Item{ID: "missing", CollectionID: "blog"}); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func TestItemStore_ListNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createCollection(t, db, "blog", "alice", collection.Empty())
	store := sqlite.NewItemStore(db)

	base := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		at := base.Add(time.Duration(i) * time.Second)
		if err := store.Create(ctx, collection.Item{ID: id, CollectionID: "blog", OwnerID: "alice", CreatedAt: at, UpdatedAt: at}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	all, _ := store.List(ctx, "blog", 0)
	if len(all) != 3 || all[0].ID != "new" || all[2].ID != "old" {
		t.Errorf("List = %v, want newest first", ids(all))
	}
	two, _ := store.List(ctx, "blog", 2)
	if len(two) != 2 {
		t.Errorf("List(limit 2) returned %d items", len(two))
	}
}

func TestItemStore_RequiresCollection(t *testing.T) {
	db := setupTestDB(t)
	err := sqlite.NewItemStore(db).Create(context.Background(), collection.Item{ID: "i1", CollectionID: "ghost", OwnerID: "x"})
	if err == nil {
		t.Error("expected foreign key violation")
	}
}

func ids(items []collection.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

// -----------------------------------------------------------------------------
// MembershipStore Tests
// -----------------------------------------------------------------------------

func TestMembershipStore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := sqlite.NewMembershipStore(db)

	if _, err := store.ForUser(ctx, "u1"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("ForUser error = %v, want ErrNotFound", err)
	}

	now := time.Now()
	store.Add(ctx, ports.Membership{ContextID: "team", UserID: "u1", Role: ports.RoleEditor, CreatedAt: now})
	if err := store.Add(ctx, ports.Membership{ContextID: "team", UserID: "u1", Role: ports.RoleOwner, CreatedAt: now}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	m, err := store.ForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ForUser: %v", err)
	}
	if m.ContextID != "team" || m.Role != ports.RoleOwner {
		t.Errorf("unexpected membership %+v", m)
	}
}

// -----------------------------------------------------------------------------
// AnalyticsStore Tests
// -----------------------------------------------------------------------------

func TestAnalyticsStore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := sqlite.NewAnalyticsStore(db)

	if err := store.Record(ctx, nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	err := store.Record(ctx, []ports.AnalyticsRecord{
		{Name: "item.created", ContextID: "c1", At: base},
		{Name: "item.published", ContextID: "c1", UserID: "u1", Properties: map[string]any{"item": "i1"}, At: base.Add(time.Minute)},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].Name != "item.published" {
		t.Fatalf("Recent = %+v", got)
	}
	if got[0].Properties["item"] != "i1" || got[0].UserID != "u1" {
		t.Errorf("unexpected event %+v", got[0])
	}
	if got[1].Properties != nil {
		t.Errorf("expected nil properties, got %v", got[1].Properties)
	}
}
