// Package guests manages the wedding guest list: primary guests, the
// extra guests attached to each party, and their attendance answers.
package guests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrNotFound is returned when no guest matches a phone number.
var ErrNotFound = errors.New("guest not found")

// Attendance flags shared by primary and extra guests. Exactly one of
// Confirmed, Rejected and NotAnswered is true.
type Attendance struct {
	Confirmed   bool `json:"is_confirmed"`
	Rejected    bool `json:"is_rejected"`
	NotAnswered bool `json:"not_answered"`
}

// Guest is the primary contact of an invited party.
type Guest struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone_number"`
	Attendance
}

// ExtraGuest belongs to a primary guest's party.
type ExtraGuest struct {
	ID          int64  `json:"id"`
	MainGuestID int64  `json:"main_guest_id"`
	Name        string `json:"name"`
	Phone       string `json:"phone_number,omitempty"`
	Attendance
}

// Confirmation describes an applied attendance answer.
type Confirmation struct {
	Guest     Guest
	Confirmed bool
	// Names lists the primary guest first, then every extra guest of the
	// party in id order.
	Names []string
	// ViaExtra is set when the phone belonged to an extra guest and the
	// answer was redirected to the primary.
	ViaExtra bool
}

// Store persists guests in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a guest store, running migrations on first use.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger.With("component", "guests")}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate guests: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS guests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		phone_number TEXT NOT NULL UNIQUE,
		is_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
		is_rejected BOOLEAN NOT NULL DEFAULT FALSE,
		not_answered BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS extra_guests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		main_guest_id INTEGER NOT NULL REFERENCES guests(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		phone_number TEXT,
		is_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
		is_rejected BOOLEAN NOT NULL DEFAULT FALSE,
		not_answered BOOLEAN NOT NULL DEFAULT TRUE
	);
	CREATE INDEX IF NOT EXISTS idx_extra_guests_main ON extra_guests(main_guest_id);
	CREATE INDEX IF NOT EXISTS idx_extra_guests_phone ON extra_guests(phone_number);
	`)
	return err
}

// AddGuest inserts a primary guest. The phone is stored normalized.
func (s *Store) AddGuest(ctx context.Context, name, phone string) (*Guest, error) {
	name = strings.TrimSpace(name)
	phone = NormalizePhone(phone)
	if name == "" || phone == "" {
		return nil, fmt.Errorf("guest name and phone are required")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO guests (name, phone_number) VALUES (?, ?)`, name, phone)
	if err != nil {
		return nil, fmt.Errorf("insert guest %s: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("guest id: %w", err)
	}
	return &Guest{ID: id, Name: name, Phone: phone, Attendance: Attendance{NotAnswered: true}}, nil
}

// AddExtraGuest attaches an extra guest to a primary guest's party.
// Phone may be empty.
func (s *Store) AddExtraGuest(ctx context.Context, mainGuestID int64, name, phone string) (*ExtraGuest, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("extra guest name is required")
	}
	phone = NormalizePhone(phone)

	var phoneArg any
	if phone != "" {
		phoneArg = phone
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO extra_guests (main_guest_id, name, phone_number) VALUES (?, ?, ?)`,
		mainGuestID, name, phoneArg)
	if err != nil {
		return nil, fmt.Errorf("insert extra guest %s: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("extra guest id: %w", err)
	}
	return &ExtraGuest{
		ID: id, MainGuestID: mainGuestID, Name: name, Phone: phone,
		Attendance: Attendance{NotAnswered: true},
	}, nil
}

// Guest returns a primary guest by id.
func (s *Store) Guest(ctx context.Context, id int64) (*Guest, error) {
	return scanGuest(s.db.QueryRowContext(ctx, guestSelect+` WHERE id = ?`, id))
}

// Extras returns the extra guests of a party in id order.
func (s *Store) Extras(ctx context.Context, mainGuestID int64) ([]ExtraGuest, error) {
	return queryExtras(ctx, s.db, mainGuestID)
}

// ConfirmPresence records an attendance answer for the party owning
// phone. Lookup order: primary guest by any phone variant, then extra
// guest by any variant, redirected once to its primary. The primary and
// every extra guest of the party are updated in one transaction.
func (s *Store) ConfirmPresence(ctx context.Context, phone string, confirm bool) (*Confirmation, error) {
	variants := PhoneVariants(phone)
	if len(variants) == 0 {
		return nil, ErrNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	guest, viaExtra, err := findParty(ctx, tx, variants)
	if err != nil {
		return nil, err
	}

	att := Attendance{Confirmed: confirm, Rejected: !confirm, NotAnswered: false}
	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `
		UPDATE guests SET is_confirmed = ?, is_rejected = ?, not_answered = ?, updated_at = ?
		WHERE id = ?`,
		att.Confirmed, att.Rejected, att.NotAnswered, now, guest.ID); err != nil {
		return nil, fmt.Errorf("update guest %d: %w", guest.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE extra_guests SET is_confirmed = ?, is_rejected = ?, not_answered = ?
		WHERE main_guest_id = ?`,
		att.Confirmed, att.Rejected, att.NotAnswered, guest.ID); err != nil {
		return nil, fmt.Errorf("update party of guest %d: %w", guest.ID, err)
	}

	extras, err := queryExtras(ctx, tx, guest.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	guest.Attendance = att
	names := make([]string, 0, 1+len(extras))
	names = append(names, guest.Name)
	for _, e := range extras {
		names = append(names, e.Name)
	}

	s.logger.Info("attendance recorded",
		"guest_id", guest.ID,
		"confirmed", confirm,
		"party_size", len(names),
		"via_extra", viaExtra,
	)

	return &Confirmation{Guest: *guest, Confirmed: confirm, Names: names, ViaExtra: viaExtra}, nil
}

// Summary counts guests (primary and extra) by attendance state.
type Summary struct {
	Confirmed   int `json:"confirmed"`
	Rejected    int `json:"rejected"`
	NotAnswered int `json:"not_answered"`
}

// Summarize returns attendance totals across all parties.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(is_confirmed), 0),
			COALESCE(SUM(is_rejected), 0),
			COALESCE(SUM(not_answered), 0)
		FROM (
			SELECT is_confirmed, is_rejected, not_answered FROM guests
			UNION ALL
			SELECT is_confirmed, is_rejected, not_answered FROM extra_guests
		)`).Scan(&sum.Confirmed, &sum.Rejected, &sum.NotAnswered)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize attendance: %w", err)
	}
	return sum, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const guestSelect = `SELECT id, name, phone_number, is_confirmed, is_rejected, not_answered FROM guests`

func findParty(ctx context.Context, q querier, variants []string) (*Guest, bool, error) {
	for _, p := range variants {
		g, err := scanGuest(q.QueryRowContext(ctx, guestSelect+` WHERE phone_number = ?`, p))
		if err == nil {
			return g, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}
	}

	for _, p := range variants {
		var mainID int64
		err := q.QueryRowContext(ctx,
			`SELECT main_guest_id FROM extra_guests WHERE phone_number = ? ORDER BY id LIMIT 1`, p).Scan(&mainID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("lookup extra guest: %w", err)
		}
		// One level only: the primary is resolved by id, never by phone.
		g, err := scanGuest(q.QueryRowContext(ctx, guestSelect+` WHERE id = ?`, mainID))
		if err != nil {
			return nil, false, err
		}
		return g, true, nil
	}

	return nil, false, ErrNotFound
}

func scanGuest(row *sql.Row) (*Guest, error) {
	var g Guest
	err := row.Scan(&g.ID, &g.Name, &g.Phone, &g.Confirmed, &g.Rejected, &g.NotAnswered)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan guest: %w", err)
	}
	return &g, nil
}

func queryExtras(ctx context.Context, q querier, mainGuestID int64) ([]ExtraGuest, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, main_guest_id, name, COALESCE(phone_number, ''), is_confirmed, is_rejected, not_answered
		FROM extra_guests WHERE main_guest_id = ? ORDER BY id`, mainGuestID)
	if err != nil {
		return nil, fmt.Errorf("query extra guests: %w", err)
	}
	defer rows.Close()

	var out []ExtraGuest
	for rows.Next() {
		var e ExtraGuest
		if err := rows.Scan(&e.ID, &e.MainGuestID, &e.Name, &e.Phone, &e.Confirmed, &e.Rejected, &e.NotAnswered); err != nil {
			return nil, fmt.Errorf("scan extra guest: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
