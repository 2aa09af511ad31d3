// Package db provides the embedded database schema and seed data.
package db

import (
	_ "embed"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/xenking/munchify/internal/domain/promo"
)

// Schema contains the DDL statements for the users, orders and promos tables.
// It is idempotent and safe to run on every start.
//
//go:embed migrations/001_schema.sql
var Schema string

//go:embed seed/promos.yaml
var seedPromos []byte

type promoDoc struct {
	Code        string     `yaml:"code"`
	Type        string     `yaml:"type"`
	Value       string     `yaml:"value"`
	MinItems    int        `yaml:"min_items"`
	Description string     `yaml:"description"`
	ValidFrom   *time.Time `yaml:"valid_from"`
	ValidUntil  *time.Time `yaml:"valid_until"`
	MaxUses     int        `yaml:"max_uses"`
}

// SeedPromos returns the bundled promo codes.
func SeedPromos() ([]promo.Rule, error) {
	return ParsePromos(seedPromos)
}

// ParsePromos decodes a YAML list of promo rules.
func ParsePromos(data []byte) ([]promo.Rule, error) {
	var docs []promoDoc
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, errors.Wrap(err, "decode promos")
	}
	rules := make([]promo.Rule, 0, len(docs))
	for _, d := range docs {
		kind := promo.Kind(d.Type)
		if !kind.Valid() {
			return nil, errors.Errorf("promo %s: unknown type %q", d.Code, d.Type)
		}
		value, err := decimal.NewFromString(d.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "promo %s: value", d.Code)
		}
		rules = append(rules, promo.Rule{
			Code:        promo.NormalizeCode(d.Code),
			Kind:        kind,
			Value:       value,
			MinItems:    d.MinItems,
			Description: d.Description,
			ValidFrom:   d.ValidFrom,
			ValidUntil:  d.ValidUntil,
			MaxUses:     d.MaxUses,
		})
	}
	return rules, nil
}
