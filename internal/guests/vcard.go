package guests

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-vcard"
)

// ImportReport summarizes a vCard import.
type ImportReport struct {
	Guests  int      `json:"guests"`
	Extras  int      `json:"extras"`
	Skipped []string `json:"skipped,omitempty"`
}

type importCard struct {
	name    string
	phone   string
	related string
}

// ImportVCards reads a vCard stream exported from a phone's contacts.
// Each card with a telephone becomes a primary guest. A card carrying a
// RELATED property that names a primary guest (by phone, with or
// without a tel: prefix, or by formatted name) becomes an extra guest of
// that party instead; its telephone is optional.
func (s *Store) ImportVCards(ctx context.Context, r io.Reader) (*ImportReport, error) {
	dec := vcard.NewDecoder(r)

	var cards []importCard
	for {
		card, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode vcard: %w", err)
		}
		cards = append(cards, importCard{
			name:    cardName(card),
			phone:   card.PreferredValue(vcard.FieldTelephone),
			related: strings.TrimSpace(card.PreferredValue(vcard.FieldRelated)),
		})
	}

	report := &ImportReport{}
	byPhone := make(map[string]int64)
	byName := make(map[string]int64)

	// Primaries first so extras can reference a card later in the file.
	for _, c := range cards {
		if c.related != "" {
			continue
		}
		if c.name == "" || c.phone == "" {
			report.Skipped = append(report.Skipped, describeCard(c, "missing name or phone"))
			continue
		}
		g, err := s.AddGuest(ctx, c.name, c.phone)
		if err != nil {
			report.Skipped = append(report.Skipped, describeCard(c, err.Error()))
			continue
		}
		byPhone[g.Phone] = g.ID
		byName[strings.ToLower(g.Name)] = g.ID
		report.Guests++
	}

	for _, c := range cards {
		if c.related == "" {
			continue
		}
		if c.name == "" {
			report.Skipped = append(report.Skipped, describeCard(c, "missing name"))
			continue
		}
		mainID, ok := resolveRelated(c.related, byPhone, byName)
		if !ok {
			report.Skipped = append(report.Skipped, describeCard(c, "related guest not found: "+c.related))
			continue
		}
		if _, err := s.AddExtraGuest(ctx, mainID, c.name, c.phone); err != nil {
			report.Skipped = append(report.Skipped, describeCard(c, err.Error()))
			continue
		}
		report.Extras++
	}

	s.logger.Info("guest list imported",
		"guests", report.Guests,
		"extras", report.Extras,
		"skipped", len(report.Skipped),
	)
	return report, nil
}

func cardName(card vcard.Card) string {
	if fn := strings.TrimSpace(card.PreferredValue(vcard.FieldFormattedName)); fn != "" {
		return fn
	}
	if n := card.Name(); n != nil {
		return strings.TrimSpace(strings.Join([]string{n.GivenName, n.FamilyName}, " "))
	}
	return ""
}

func resolveRelated(ref string, byPhone, byName map[string]int64) (int64, bool) {
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "tel:") {
		ref = ref[len("tel:"):]
	}
	for _, p := range PhoneVariants(ref) {
		if id, ok := byPhone[p]; ok {
			return id, true
		}
	}
	id, ok := byName[strings.ToLower(strings.TrimSpace(ref))]
	return id, ok
}

func describeCard(c importCard, reason string) string {
	name := c.name
	if name == "" {
		name = "(unnamed)"
	}
	return name + ": " + reason
}
