// Package gifts holds the wedding gift catalog and the pending payment
// records created when a guest asks to pay for a gift.
package gifts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a gift or payment id is unknown.
var ErrNotFound = errors.New("not found")

// Payment status values. Only StatusPending is written here; the rest
// are set by payment reconciliation outside this service.
const (
	StatusPending   = "pendente"
	StatusApproved  = "aprovado"
	StatusRejected  = "recusado"
	StatusCancelled = "cancelado"
)

// Gift is a catalog item. Prices are kept in cents; a gift may have no
// price, in which case it cannot be paid for through a checkout link.
type Gift struct {
	ID          int64
	Name        string
	Description string
	PriceCents  int64
	HasPrice    bool
	ImageURL    string
}

// Price returns the price formatted with two decimals, e.g. "150.00",
// or "" when the gift has no price.
func (g Gift) Price() string {
	if !g.HasPrice {
		return ""
	}
	return FormatCents(g.PriceCents)
}

// Payment is a payment attempt for one gift.
type Payment struct {
	ID          string
	GiftID      int64
	GiftName    string
	AmountCents int64
	Status      string
	CheckoutURL string
	CreatedAt   time.Time
}

// FormatCents renders an amount in cents with two decimals.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// Store persists gifts and payments in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a gift store, running migrations on first use.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger.With("component", "gifts")}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate gifts: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS gifts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price_cents INTEGER,
		image_url TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		gift_id INTEGER NOT NULL REFERENCES gifts(id) ON DELETE CASCADE,
		amount_cents INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pendente',
		checkout_url TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_payments_gift ON payments(gift_id);
	`)
	return err
}

// AddGift inserts a catalog item. A negative priceCents stores the gift
// without a price.
func (s *Store) AddGift(ctx context.Context, name, description string, priceCents int64) (*Gift, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("gift name is required")
	}

	var price any
	if priceCents >= 0 {
		price = priceCents
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO gifts (name, description, price_cents) VALUES (?, ?, ?)`,
		name, description, price)
	if err != nil {
		return nil, fmt.Errorf("insert gift %s: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("gift id: %w", err)
	}
	return &Gift{
		ID:          id,
		Name:        name,
		Description: description,
		PriceCents:  max(priceCents, 0),
		HasPrice:    priceCents >= 0,
	}, nil
}

const giftSelect = `SELECT id, name, description, price_cents, image_url FROM gifts`

// List returns the whole catalog ordered by id. It has no side effects.
func (s *Store) List(ctx context.Context) ([]Gift, error) {
	rows, err := s.db.QueryContext(ctx, giftSelect+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query gifts: %w", err)
	}
	defer rows.Close()

	gifts := []Gift{}
	for rows.Next() {
		g, err := scanGift(rows)
		if err != nil {
			return nil, err
		}
		gifts = append(gifts, *g)
	}
	return gifts, rows.Err()
}

// Get returns a gift by id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (*Gift, error) {
	return scanGift(s.db.QueryRowContext(ctx, giftSelect+` WHERE id = ?`, id))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGift(row scanner) (*Gift, error) {
	var g Gift
	var price sql.NullInt64
	err := row.Scan(&g.ID, &g.Name, &g.Description, &price, &g.ImageURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan gift: %w", err)
	}
	g.PriceCents = price.Int64
	g.HasPrice = price.Valid
	return &g, nil
}

// CreatePending records a pending payment for gift at its current
// price. Every call creates a new record.
func (s *Store) CreatePending(ctx context.Context, g *Gift) (*Payment, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate payment id: %w", err)
	}
	p := &Payment{
		ID:          id.String(),
		GiftID:      g.ID,
		GiftName:    g.Name,
		AmountCents: g.PriceCents,
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO payments (id, gift_id, amount_cents, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.GiftID, p.AmountCents, p.Status, p.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert payment for gift %d: %w", g.ID, err)
	}

	s.logger.Info("payment created", "payment_id", p.ID, "gift_id", g.ID, "amount_cents", p.AmountCents)
	return p, nil
}

// SetCheckoutURL stores the provider checkout link for a payment.
func (s *Store) SetCheckoutURL(ctx context.Context, paymentID, url string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET checkout_url = ? WHERE id = ?`, url, paymentID)
	if err != nil {
		return fmt.Errorf("update payment %s: %w", paymentID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Payment returns a payment by id, or ErrNotFound.
func (s *Store) Payment(ctx context.Context, id string) (*Payment, error) {
	var p Payment
	var created string
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.gift_id, g.name, p.amount_cents, p.status, p.checkout_url, p.created_at
		FROM payments p JOIN gifts g ON g.id = p.gift_id
		WHERE p.id = ?`, id).
		Scan(&p.ID, &p.GiftID, &p.GiftName, &p.AmountCents, &p.Status, &p.CheckoutURL, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query payment %s: %w", id, err)
	}
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		p.CreatedAt = t
	}
	return &p, nil
}

// CountPayments returns the number of payment records.
func (s *Store) CountPayments(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count payments: %w", err)
	}
	return n, nil
}
