package gifts

import (
	"database/sql"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestFormatCents(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{15000, "150.00"},
		{123456, "1234.56"},
		{-250, "-2.50"},
	}
	for _, tt := range tests {
		if got := FormatCents(tt.in); got != tt.want {
			t.Errorf("FormatCents(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestList_OrderedAndIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()
	s.AddGift(ctx, "Jogo de panelas", "Inox, 5 peças", 45000)
	s.AddGift(ctx, "Lua de mel", "Contribuição livre", -1)
	s.AddGift(ctx, "Cafeteira", "", 15000)

	first, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("List returned %d gifts, want 3", len(first))
	}
	for i := 1; i < len(first); i++ {
		if first[i-1].ID >= first[i].ID {
			t.Errorf("gifts not ordered by id: %d before %d", first[i-1].ID, first[i].ID)
		}
	}
	if first[1].HasPrice || first[1].Price() != "" {
		t.Errorf("unpriced gift = %+v", first[1])
	}
	if first[2].Price() != "150.00" {
		t.Errorf("price = %q, want 150.00", first[2].Price())
	}

	second, _ := s.List(ctx)
	if !reflect.DeepEqual(first, second) {
		t.Error("consecutive List calls differ")
	}
	if n, _ := s.CountPayments(ctx); n != 0 {
		t.Errorf("List created %d payments", n)
	}
}

func TestList_Empty(t *testing.T) {
	s := newTestStore(t)
	got, err := s.List(t.Context())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("List on empty catalog = %#v, want empty slice", got)
	}
}

func TestGet_Unknown(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(t.Context(), 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(999) err = %v, want ErrNotFound", err)
	}
}

func TestCreatePending(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()
	g, _ := s.AddGift(ctx, "Cafeteira", "", 15000)

	p, err := s.CreatePending(ctx, g)
	if err != nil {
		t.Fatalf("CreatePending: %v", err)
	}
	id, err := uuid.Parse(p.ID)
	if err != nil {
		t.Fatalf("payment id %q is not a uuid: %v", p.ID, err)
	}
	if id.Version() != 7 {
		t.Errorf("payment id version = %d, want 7", id.Version())
	}
	if p.Status != StatusPending || p.AmountCents != 15000 {
		t.Errorf("payment = %+v", p)
	}

	if err := s.SetCheckoutURL(ctx, p.ID, "https://mp.example/checkout/1"); err != nil {
		t.Fatalf("SetCheckoutURL: %v", err)
	}
	got, err := s.Payment(ctx, p.ID)
	if err != nil {
		t.Fatalf("Payment: %v", err)
	}
	if got.CheckoutURL != "https://mp.example/checkout/1" || got.GiftName != "Cafeteira" {
		t.Errorf("stored payment = %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not restored")
	}

	// Not idempotent: a second request is a second record.
	s.CreatePending(ctx, g)
	if n, _ := s.CountPayments(ctx); n != 2 {
		t.Errorf("CountPayments = %d, want 2", n)
	}
}

func TestSetCheckoutURL_Unknown(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetCheckoutURL(t.Context(), "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.Payment(t.Context(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Payment err = %v, want ErrNotFound", err)
	}
}
