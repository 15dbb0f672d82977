package listing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCreate(t *testing.T) {
	repo := newFakeRepository("seller-key")
	svc := NewService(repo)

	l, err := svc.Create(context.Background(), CreateParams{
		OwnerKey:   "seller-key",
		ContentRef: "bafybeigdyrzt5example",
		Price:      1_000_000,
	})
	if err != nil {
		t.Fatalf("create: unexpected error: %v", err)
	}
	if l.Status != StatusActive {
		t.Fatalf("expected new listing to be active, got %s", l.Status)
	}
	if l.Price != 1_000_000 {
		t.Fatalf("expected price 1000000, got %d", l.Price)
	}
}

func TestCreate_ContentRefBounds(t *testing.T) {
	repo := newFakeRepository("seller-key")
	svc := NewService(repo)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateParams{OwnerKey: "seller-key", ContentRef: ""}); !errors.Is(err, ErrInvalidContentRef) {
		t.Fatalf("expected ErrInvalidContentRef for empty ref, got %v", err)
	}

	over := strings.Repeat("a", MaxContentRefLen+1)
	if _, err := svc.Create(ctx, CreateParams{OwnerKey: "seller-key", ContentRef: over}); !errors.Is(err, ErrInvalidContentRef) {
		t.Fatalf("expected ErrInvalidContentRef for overlong ref, got %v", err)
	}

	max := strings.Repeat("a", MaxContentRefLen)
	if _, err := svc.Create(ctx, CreateParams{OwnerKey: "seller-key", ContentRef: max}); err != nil {
		t.Fatalf("expected max-length ref to be accepted, got %v", err)
	}

	// Bounds count runes, not bytes. A max-length multibyte ref is
	// twice MaxContentRefLen in bytes and must still pass.
	wide := strings.Repeat("ó", MaxContentRefLen)
	if _, err := svc.Create(ctx, CreateParams{OwnerKey: "seller-key", ContentRef: wide}); err != nil {
		t.Fatalf("expected max-rune multibyte ref to be accepted, got %v", err)
	}
	if _, err := svc.Create(ctx, CreateParams{OwnerKey: "seller-key", ContentRef: wide + "a"}); !errors.Is(err, ErrInvalidContentRef) {
		t.Fatalf("expected ErrInvalidContentRef past the rune bound, got %v", err)
	}
}

func TestCreate_ZeroPriceAllowed(t *testing.T) {
	repo := newFakeRepository("seller-key")
	svc := NewService(repo)

	if _, err := svc.Create(context.Background(), CreateParams{
		OwnerKey:   "seller-key",
		ContentRef: "free-sample",
		Price:      0,
	}); err != nil {
		t.Fatalf("expected zero price to be allowed, got %v", err)
	}
}

func TestCreate_PriceRange(t *testing.T) {
	repo := newFakeRepository("seller-key")
	svc := NewService(repo)

	if _, err := svc.Create(context.Background(), CreateParams{
		OwnerKey:   "seller-key",
		ContentRef: "too-expensive",
		Price:      MaxPrice + 1,
	}); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	repo := newFakeRepository("seller-key")
	svc := NewService(repo)
	ctx := context.Background()

	params := CreateParams{OwnerKey: "seller-key", ContentRef: "bafybeigdyrzt5example", Price: 10}
	if _, err := svc.Create(ctx, params); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := svc.Create(ctx, params); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestCreate_OwnerGate(t *testing.T) {
	repo := newFakeRepository("seller-key")
	svc := NewService(repo)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateParams{OwnerKey: "stranger", ContentRef: "cid"}); !errors.Is(err, ErrOwnerNotRegistered) {
		t.Fatalf("expected ErrOwnerNotRegistered, got %v", err)
	}

	repo.banned["seller-key"] = true
	if _, err := svc.Create(ctx, CreateParams{OwnerKey: "seller-key", ContentRef: "cid"}); !errors.Is(err, ErrOwnerBanned) {
		t.Fatalf("expected ErrOwnerBanned, got %v", err)
	}
}

func TestStatus_CanRetire(t *testing.T) {
	if !StatusActive.CanRetire() {
		t.Fatal("active listings must be retirable")
	}
	if StatusRetired.CanRetire() {
		t.Fatal("retired listings must never re-enter the transition")
	}
}

type fakeRepository struct {
	registered map[string]bool
	banned     map[string]bool
	byAddress  map[string]Listing
	byOwnerRef map[string]string
}

func newFakeRepository(registeredOwners ...string) *fakeRepository {
	f := &fakeRepository{
		registered: make(map[string]bool),
		banned:     make(map[string]bool),
		byAddress:  make(map[string]Listing),
		byOwnerRef: make(map[string]string),
	}
	for _, o := range registeredOwners {
		f.registered[o] = true
	}
	return f
}

func (f *fakeRepository) Create(ctx context.Context, params CreateParams) (Listing, error) {
	if !f.registered[params.OwnerKey] {
		return Listing{}, ErrOwnerNotRegistered
	}
	if f.banned[params.OwnerKey] {
		return Listing{}, ErrOwnerBanned
	}
	key := params.OwnerKey + "\x00" + params.ContentRef
	if _, exists := f.byOwnerRef[key]; exists {
		return Listing{}, ErrDuplicate
	}
	l := Listing{
		Address:    "listing-" + key,
		OwnerKey:   params.OwnerKey,
		Price:      params.Price,
		ContentRef: params.ContentRef,
		Status:     StatusActive,
		CreatedAt:  time.Now().UTC(),
	}
	f.byOwnerRef[key] = l.Address
	f.byAddress[l.Address] = l
	return l, nil
}

func (f *fakeRepository) GetByAddress(ctx context.Context, address string) (Listing, error) {
	l, ok := f.byAddress[address]
	if !ok {
		return Listing{}, ErrNotFound
	}
	return l, nil
}

func (f *fakeRepository) ListByOwner(ctx context.Context, ownerKey string, limit int) ([]Listing, error) {
	out := []Listing{}
	for _, l := range f.byAddress {
		if l.OwnerKey == ownerKey {
			out = append(out, l)
		}
	}
	return out, nil
}
