package postgres

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money columns are selected as ::text and parsed here so no precision is
// lost to float conversion.

func parseDecimal(col, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("postgres: parse %s %q: %w", col, s, err)
	}
	return d, nil
}

func parseOptionalDecimal(col string, s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := parseDecimal(col, *s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
