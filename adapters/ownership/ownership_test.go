package ownership

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/artpar/cmskit/adapters/memory"
	"github.com/artpar/cmskit/core/capability"
	"github.com/artpar/cmskit/domain/collection"
	"github.com/artpar/cmskit/ports"
)

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.NewStore()
	ctx := context.Background()
	for _, c := range []collection.Collection{
		{ID: "blog", OwnerID: "alice", CreatedAt: time.Unix(1, 0)},
		{ID: "notes", OwnerID: "bob", CreatedAt: time.Unix(2, 0)},
		{ID: "docs", OwnerID: "team", CreatedAt: time.Unix(3, 0)},
	} {
		if err := s.Collections().Create(ctx, c, collection.Empty()); err != nil {
			t.Fatalf("seed %s: %v", c.ID, err)
		}
	}
	return s
}

func TestRowLevel(t *testing.T) {
	ctx := context.Background()
	p := NewRowLevel(newStore(t).Collections())

	oc, err := p.GetContext(ctx, "alice")
	if err != nil {
		t.Fatalf("GetContext() error = %v", err)
	}
	if oc.ID != "alice" || oc.Role != string(ports.RoleOwner) || oc.Shared {
		t.Errorf("unexpected context %+v", oc)
	}

	if _, err := p.GetContext(ctx, ""); !errors.Is(err, capability.ErrForbidden) {
		t.Errorf("GetContext(\"\") error = %v, want ErrForbidden", err)
	}

	ids, _ := p.OwnedCollections(ctx, "alice")
	if len(ids) != 1 || ids[0] != "blog" {
		t.Errorf("OwnedCollections = %v, want [blog]", ids)
	}

	tests := []struct {
		name   string
		user   string
		collID string
		want   bool
	}{
		{"owner edits", "alice", "blog", true},
		{"other user", "bob", "blog", false},
		{"missing collection", "alice", "nope", false},
		{"anonymous", "", "blog", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.CanEdit(ctx, tt.user, tt.collID)
			if err != nil {
				t.Fatalf("CanEdit() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CanEdit() = %v, want %v", got, tt.want)
			}
			if del, _ := p.CanDelete(ctx, tt.user, tt.collID); del != tt.want {
				t.Errorf("CanDelete() = %v, want %v", del, tt.want)
			}
		})
	}

	if ok, _ := p.CanCreate(ctx, "alice"); !ok {
		t.Error("expected users to create collections")
	}
	if ok, _ := p.CanCreate(ctx, ""); ok {
		t.Error("expected anonymous create refused")
	}
}

func TestMembership(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	s.Memberships().Add(ctx, ports.Membership{ContextID: "team", UserID: "owner", Role: ports.RoleOwner})
	s.Memberships().Add(ctx, ports.Membership{ContextID: "team", UserID: "ed", Role: ports.RoleEditor})
	s.Memberships().Add(ctx, ports.Membership{ContextID: "team", UserID: "vi", Role: ports.RoleViewer})
	p := NewMembership(s.Memberships(), s.Collections())

	oc, err := p.GetContext(ctx, "ed")
	if err != nil {
		t.Fatalf("GetContext() error = %v", err)
	}
	if oc.ID != "team" || oc.Role != "editor" || !oc.Shared {
		t.Errorf("unexpected context %+v", oc)
	}

	solo, _ := p.GetContext(ctx, "alice")
	if solo.ID != "alice" || solo.Shared {
		t.Errorf("expected personal context without membership, got %+v", solo)
	}

	ids, _ := p.OwnedCollections(ctx, "vi")
	if len(ids) != 1 || ids[0] != "docs" {
		t.Errorf("OwnedCollections(vi) = %v, want [docs]", ids)
	}

	tests := []struct {
		user       string
		collID     string
		wantCreate bool
		wantEdit   bool
		wantDelete bool
	}{
		{"owner", "docs", true, true, true},
		{"ed", "docs", true, true, false},
		{"vi", "docs", false, false, false},
		{"ed", "blog", true, false, false},
		{"alice", "blog", true, true, true},
		{"", "docs", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.user+"/"+tt.collID, func(t *testing.T) {
			if got, _ := p.CanCreate(ctx, tt.user); got != tt.wantCreate {
				t.Errorf("CanCreate() = %v, want %v", got, tt.wantCreate)
			}
			if got, _ := p.CanEdit(ctx, tt.user, tt.collID); got != tt.wantEdit {
				t.Errorf("CanEdit() = %v, want %v", got, tt.wantEdit)
			}
			if got, _ := p.CanDelete(ctx, tt.user, tt.collID); got != tt.wantDelete {
				t.Errorf("CanDelete() = %v, want %v", got, tt.wantDelete)
			}
		})
	}
}

type failingMembers struct{}

func (failingMembers) ForUser(context.Context, string) (ports.Membership, error) {
	return ports.Membership{}, errors.New("db down")
}
func (failingMembers) Add(context.Context, ports.Membership) error { return nil }

func TestMembership_StoreError(t *testing.T) {
	p := NewMembership(failingMembers{}, memory.NewStore().Collections())
	if _, err := p.CanEdit(context.Background(), "u", "c"); err == nil {
		t.Error("expected store error surfaced")
	}
}
