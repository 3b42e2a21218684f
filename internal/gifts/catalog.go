package gifts

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// CatalogEntry is one gift in a YAML catalog file:
//
//	- name: Cafeteira
//	  description: Para o café da manhã dos noivos
//	  price: "150.00"
//
// An empty price imports the gift without one.
type CatalogEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
}

// ParseCents converts a decimal amount such as "150", "150.5",
// "150.50" or "150,50" to cents.
func ParseCents(s string) (int64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has more than two decimals", s)
	}
	frac += strings.Repeat("0", 2-len(frac))

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w < 0 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return w*100 + f, nil
}

// ImportYAML adds every entry of a YAML catalog and returns how many
// gifts were added. Entries are validated before anything is written.
func (s *Store) ImportYAML(ctx context.Context, r io.Reader) (int, error) {
	var entries []CatalogEntry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil {
		return 0, fmt.Errorf("decode catalog: %w", err)
	}

	prices := make([]int64, len(entries))
	for i, e := range entries {
		if strings.TrimSpace(e.Name) == "" {
			return 0, fmt.Errorf("catalog entry %d: name is required", i+1)
		}
		prices[i] = -1
		if strings.TrimSpace(e.Price) != "" {
			cents, err := ParseCents(e.Price)
			if err != nil {
				return 0, fmt.Errorf("catalog entry %d (%s): %w", i+1, e.Name, err)
			}
			prices[i] = cents
		}
	}

	for i, e := range entries {
		if _, err := s.AddGift(ctx, e.Name, e.Description, prices[i]); err != nil {
			return i, err
		}
	}
	s.logger.Info("gift catalog imported", "gifts", len(entries))
	return len(entries), nil
}
