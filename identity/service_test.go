package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRegister(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, staticAuthority("authority-key"))

	ctx := context.Background()
	id, err := svc.Register(ctx, RegisterParams{OwnerKey: "alice-key", DisplayName: "Alice"})
	if err != nil {
		t.Fatalf("register: unexpected error: %v", err)
	}
	if id.OwnerKey != "alice-key" {
		t.Fatalf("expected owner key %q got %q", "alice-key", id.OwnerKey)
	}
	if id.Reputation != 0 {
		t.Fatalf("expected zero initial reputation, got %d", id.Reputation)
	}
	if id.Banned {
		t.Fatal("expected new identity to be unbanned")
	}
}

func TestRegister_Validation(t *testing.T) {
	svc := NewService(newFakeRepository(), staticAuthority("a"))
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterParams{OwnerKey: "k", DisplayName: ""}); !errors.Is(err, ErrInvalidDisplayName) {
		t.Fatalf("expected ErrInvalidDisplayName for empty name, got %v", err)
	}

	long := strings.Repeat("x", MaxDisplayNameLen+1)
	if _, err := svc.Register(ctx, RegisterParams{OwnerKey: "k", DisplayName: long}); !errors.Is(err, ErrInvalidDisplayName) {
		t.Fatalf("expected ErrInvalidDisplayName for overlong name, got %v", err)
	}

	max := strings.Repeat("x", MaxDisplayNameLen)
	if _, err := svc.Register(ctx, RegisterParams{OwnerKey: "k", DisplayName: max}); err != nil {
		t.Fatalf("expected max-length name to be accepted, got %v", err)
	}

	if _, err := svc.Register(ctx, RegisterParams{DisplayName: "NoKey"}); !errors.Is(err, ErrMissingOwnerKey) {
		t.Fatalf("expected ErrMissingOwnerKey, got %v", err)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	svc := NewService(newFakeRepository(), staticAuthority("a"))
	ctx := context.Background()

	params := RegisterParams{OwnerKey: "alice-key", DisplayName: "Alice"}
	if _, err := svc.Register(ctx, params); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, err := svc.Register(ctx, params); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestSetBan_AuthorityGate(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, staticAuthority("authority-key"))
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterParams{OwnerKey: "bob-key", DisplayName: "Bob"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.SetBan(ctx, "bob-key", "bob-key", true); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-authority caller, got %v", err)
	}

	id, err := svc.SetBan(ctx, "authority-key", "bob-key", true)
	if err != nil {
		t.Fatalf("set ban: %v", err)
	}
	if !id.Banned {
		t.Fatal("expected identity to be banned")
	}

	banned, err := svc.IsBanned(ctx, "bob-key")
	if err != nil {
		t.Fatalf("is banned: %v", err)
	}
	if !banned {
		t.Fatal("expected ban predicate to report true")
	}

	// Unban is the same gate in reverse.
	id, err = svc.SetBan(ctx, "authority-key", "bob-key", false)
	if err != nil {
		t.Fatalf("unban: %v", err)
	}
	if id.Banned {
		t.Fatal("expected identity to be unbanned")
	}
}

func TestSetBan_UnknownTarget(t *testing.T) {
	svc := NewService(newFakeRepository(), staticAuthority("authority-key"))

	if _, err := svc.SetBan(context.Background(), "authority-key", "ghost", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

type staticAuthority string

func (s staticAuthority) AuthorityKey(context.Context) (string, error) {
	return string(s), nil
}

type fakeRepository struct {
	byOwnerKey map[string]Identity
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{byOwnerKey: make(map[string]Identity)}
}

func (f *fakeRepository) Create(ctx context.Context, params RegisterParams) (Identity, error) {
	if _, exists := f.byOwnerKey[params.OwnerKey]; exists {
		return Identity{}, ErrAlreadyRegistered
	}
	id := Identity{
		Address:     "identity-" + params.OwnerKey,
		OwnerKey:    params.OwnerKey,
		DisplayName: params.DisplayName,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	f.byOwnerKey[params.OwnerKey] = id
	return id, nil
}

func (f *fakeRepository) GetByOwnerKey(ctx context.Context, ownerKey string) (Identity, error) {
	id, ok := f.byOwnerKey[ownerKey]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return id, nil
}

func (f *fakeRepository) SetBanned(ctx context.Context, ownerKey string, banned bool) (Identity, error) {
	id, ok := f.byOwnerKey[ownerKey]
	if !ok {
		return Identity{}, ErrNotFound
	}
	id.Banned = banned
	id.UpdatedAt = time.Now().UTC()
	f.byOwnerKey[ownerKey] = id
	return id, nil
}
