package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/artpar/cmskit/adapters/clock"
	"github.com/artpar/cmskit/adapters/idgen"
	"github.com/artpar/cmskit/adapters/memory"
	"github.com/artpar/cmskit/adapters/ownership"
	"github.com/artpar/cmskit/core/capability"
	captest "github.com/artpar/cmskit/core/capability/testing"
	"github.com/artpar/cmskit/domain/collection"
	"github.com/artpar/cmskit/domain/field"
	"github.com/artpar/cmskit/ports"
	"github.com/rs/zerolog"
)

// recordingMetrics captures service-level counts.
type recordingMetrics struct {
	mu          sync.Mutex
	validations map[string][]string
	uploads     []string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{validations: make(map[string][]string)}
}

func (m *recordingMetrics) ValidationFailed(target string, codes ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validations[target] = append(m.validations[target], codes...)
}

func (m *recordingMetrics) UploadFinished(provider, outcome string, bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, provider+":"+outcome)
}

func (m *recordingMetrics) codes(target string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.validations[target]...)
}

func (m *recordingMetrics) outcomes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.uploads...)
}

type fixture struct {
	store     *memory.Store
	owner     capability.ContextProvider
	cache     *captest.MockCache
	analytics *captest.MockAnalytics
	clock     *clock.Fake
	ids       *idgen.Sequential
	metrics   *recordingMetrics
}

func newFixture() *fixture {
	store := memory.NewStore()
	return &fixture{
		store:     store,
		owner:     ownership.NewRowLevel(store.Collections()),
		cache:     captest.NewMockCache("memory"),
		analytics: captest.NewMockAnalytics("mock"),
		clock:     clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		ids:       idgen.NewSequential("col_"),
		metrics:   newRecordingMetrics(),
	}
}

func (f *fixture) collections() *CollectionService {
	return NewCollectionService(f.store.Collections(), f.store.Configs(), f.owner, f.cache, f.analytics,
		f.ids, f.clock, f.metrics, zerolog.Nop())
}

func (f *fixture) items() *ItemService {
	return NewItemService(f.store.Collections(), f.store.Configs(), f.store.Items(), f.owner, f.cache, f.analytics,
		idgen.NewSequential("itm_"), f.clock, f.metrics, time.Minute, zerolog.Nop())
}

func (f *fixture) publisher() *PublishService {
	return NewPublishService(f.store.Collections(), f.store.Items(), f.owner, f.cache, f.analytics, f.clock, zerolog.Nop())
}

func statusField() field.Config {
	return field.Config{
		Label:    "Draft Status",
		Type:     field.TypeSelect,
		Required: true,
		Options: []field.Option{{Key: field.OptChoices, Value: field.ChoiceListValue{
			{Label: "Draft", Value: "draft"},
			{Label: "Published", Value: "published"},
		}}},
	}
}

func (f *fixture) createCollection(t *testing.T, userID string, cfg collection.Config) collection.Collection {
	t.Helper()
	c, _, err := f.collections().Create(context.Background(), userID, "Blog Posts", cfg)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return c
}

func TestCollectionService_Create(t *testing.T) {
	f := newFixture()
	svc := f.collections()

	cfg := collection.Config{CustomFields: []field.Config{statusField()}}
	c, res, err := svc.Create(context.Background(), "user-1", "  Blog Posts ", cfg)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !res.Valid {
		t.Fatalf("expected valid result, got %+v", res.Issues)
	}
	if c.ID != "col_1" || c.OwnerID != "user-1" || c.Name != "Blog Posts" || c.Slug != "blog-posts" {
		t.Errorf("unexpected collection %+v", c)
	}
	if !c.CreatedAt.Equal(f.clock.Now()) {
		t.Errorf("CreatedAt = %v, want %v", c.CreatedAt, f.clock.Now())
	}

	stored, err := f.store.Configs().Load(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if stored.CustomFields[0].Slug != "draft_status" {
		t.Errorf("expected normalized slug stored, got %q", stored.CustomFields[0].Slug)
	}
	if names := f.analytics.EventNames(); len(names) != 1 || names[0] != "collection.created" {
		t.Errorf("events = %v", names)
	}
}

func TestCollectionService_Create_Invalid(t *testing.T) {
	f := newFixture()
	svc := f.collections()

	cfg := collection.Config{CustomFields: []field.Config{{Label: "Title", Type: field.TypeText}}}
	_, res, err := svc.Create(context.Background(), "user-1", "", cfg)
	ve, ok := field.AsValidation(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(ve.Result.Issues) != 2 || len(res.Issues) != 2 {
		t.Fatalf("expected reserved slug and missing name, got %+v", ve.Result.Issues)
	}
	if got := f.metrics.codes(TargetConfig); len(got) != 2 {
		t.Errorf("validation codes = %v", got)
	}
	if list, _ := f.store.Collections().ListByOwner(context.Background(), "user-1"); len(list) != 0 {
		t.Errorf("invalid collection was stored: %+v", list)
	}
}

func TestCollectionService_Create_NameLengthInCharacters(t *testing.T) {
	f := newFixture()
	svc := f.collections()

	name := "Caf" + strings.Repeat("é", 97)
	c, _, err := svc.Create(context.Background(), "user-1", name, collection.Empty())
	if err != nil {
		t.Fatalf("100 characters: Create() error = %v", err)
	}
	if c.Name != name {
		t.Errorf("Name = %q", c.Name)
	}

	_, res, err := svc.Create(context.Background(), "user-1", name+"é", collection.Empty())
	if _, ok := field.AsValidation(err); !ok {
		t.Fatalf("101 characters: expected validation error, got %v", err)
	}
	if len(res.Issues) != 1 || res.Issues[0].Code != field.CodeTooLong {
		t.Errorf("issues = %+v", res.Issues)
	}
}

func TestCollectionService_Create_Forbidden(t *testing.T) {
	f := newFixture()
	mock := captest.NewMockContext("mock")
	mock.SetReadOnly("viewer")
	f.owner = mock

	_, _, err := f.collections().Create(context.Background(), "viewer", "Posts", collection.Empty())
	if !errors.Is(err, capability.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}

	_, _, err = f.collections().Create(context.Background(), "", "Posts", collection.Empty())
	if !errors.Is(err, capability.ErrForbidden) {
		t.Errorf("anonymous: expected ErrForbidden, got %v", err)
	}
}

func TestCollectionService_ListAndGet(t *testing.T) {
	f := newFixture()
	svc := f.collections()
	a := f.createCollection(t, "user-1", collection.Empty())
	f.createCollection(t, "user-2", collection.Empty())

	list, err := svc.List(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != a.ID {
		t.Errorf("List() = %+v", list)
	}

	if _, err := svc.Get(context.Background(), "user-2", a.ID); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("other user's collection: expected ErrNotFound, got %v", err)
	}
	got, err := svc.Get(context.Background(), "user-1", a.ID)
	if err != nil || got.ID != a.ID {
		t.Errorf("Get() = %+v, %v", got, err)
	}
}

func TestCollectionService_ReplaceConfig(t *testing.T) {
	f := newFixture()
	svc := f.collections()
	c := f.createCollection(t, "user-1", collection.Empty())

	cfg := collection.Config{
		CustomFields: []field.Config{
			statusField(),
			{Label: "Attachment", Type: field.TypeFile},
		},
		BuiltInFields: map[string]collection.BuiltInFieldSettings{
			"author": {Visible: false},
			"title":  {Visible: false},
		},
	}
	res, err := svc.ReplaceConfig(context.Background(), "user-1", c.ID, cfg)
	if err != nil {
		t.Fatalf("ReplaceConfig() error = %v", err)
	}
	if len(res.Warnings) != 2 {
		t.Errorf("expected accept and core override warnings, got %+v", res.Warnings)
	}

	stored, err := svc.LoadConfig(context.Background(), "user-1", c.ID)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if len(stored.CustomFields) != 2 {
		t.Fatalf("expected 2 custom fields, got %d", len(stored.CustomFields))
	}
	if _, ok := stored.BuiltInFields["title"]; ok {
		t.Error("core field override should be dropped")
	}
	if p := f.cache.Patterns(); len(p) != 1 || p[0] != collection.CachePattern(c.ID) {
		t.Errorf("invalidated patterns = %v", p)
	}
}

func TestCollectionService_ReplaceConfig_RejectsAndKeepsOld(t *testing.T) {
	f := newFixture()
	svc := f.collections()
	c := f.createCollection(t, "user-1", collection.Config{CustomFields: []field.Config{statusField()}})

	bad := collection.Config{CustomFields: []field.Config{
		{Label: "Author", Type: field.TypeText},
		{Label: "Mood", Type: field.TypeSelect},
	}}
	res, err := svc.ReplaceConfig(context.Background(), "user-1", c.ID, bad)
	if _, ok := field.AsValidation(err); !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	if res.Valid || res.FirstError() == "" {
		t.Errorf("expected issues in result, got %+v", res)
	}

	stored, _ := svc.LoadConfig(context.Background(), "user-1", c.ID)
	if len(stored.CustomFields) != 1 || stored.CustomFields[0].Slug != "draft_status" {
		t.Errorf("config changed after rejected save: %+v", stored.CustomFields)
	}
	if len(f.cache.Patterns()) != 0 {
		t.Error("rejected save should not invalidate the cache")
	}
}

func TestCollectionService_ReplaceConfig_Forbidden(t *testing.T) {
	f := newFixture()
	c := f.createCollection(t, "user-1", collection.Empty())

	_, err := f.collections().ReplaceConfig(context.Background(), "user-2", c.ID, collection.Empty())
	if !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound for another context, got %v", err)
	}
}

func TestCollectionService_ReplaceConfig_CacheFailureDoesNotBlock(t *testing.T) {
	f := newFixture()
	c := f.createCollection(t, "user-1", collection.Empty())
	f.cache.SetDeleteError(errors.New("cache down"))

	if _, err := f.collections().ReplaceConfig(context.Background(), "user-1", c.ID, collection.Empty()); err != nil {
		t.Errorf("ReplaceConfig() error = %v", err)
	}
}

func TestCollectionService_Fields(t *testing.T) {
	f := newFixture()
	c := f.createCollection(t, "user-1", collection.Config{
		CustomFields: []field.Config{statusField()},
		BuiltInFields: map[string]collection.BuiltInFieldSettings{
			"cover": {Visible: false, Required: true},
			"tags":  {Visible: true, Required: true},
		},
	})

	view, err := f.collections().Fields(context.Background(), "user-1", c.ID)
	if err != nil {
		t.Fatalf("Fields() error = %v", err)
	}
	byslug := map[string]collection.ResolvedField{}
	for _, rf := range view.BuiltIn {
		byslug[rf.Slug] = rf
	}
	if rf := byslug["title"]; !rf.Visible || !rf.Required {
		t.Errorf("title = %+v", rf)
	}
	if rf := byslug["cover"]; rf.Visible || rf.Required {
		t.Errorf("hidden cover must not be required: %+v", rf)
	}
	if rf := byslug["tags"]; !rf.Visible || !rf.Required {
		t.Errorf("tags = %+v", rf)
	}
	if len(view.Custom) != 1 || view.Custom[0].Slug != "draft_status" {
		t.Errorf("custom = %+v", view.Custom)
	}
}

func TestCollectionService_Delete(t *testing.T) {
	f := newFixture()
	svc := f.collections()
	c := f.createCollection(t, "user-1", collection.Empty())

	if err := svc.Delete(context.Background(), "user-2", c.ID); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound for another context, got %v", err)
	}
	if err := svc.Delete(context.Background(), "user-1", c.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(context.Background(), "user-1", c.ID); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected deleted collection gone, got %v", err)
	}
	if p := f.cache.Patterns(); len(p) != 1 {
		t.Errorf("expected one invalidation, got %v", p)
	}
}
