package service

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

// DefaultFeeRate is the broker fee charged on a position's gross value.
var DefaultFeeRate = decimal.RequireFromString("0.025")

// Settlement is the valuation of a position at a closing price.
type Settlement struct {
	ClosePrice decimal.Decimal
	Quantity   decimal.Decimal
	Gross      decimal.Decimal
	Fee        decimal.Decimal
	Net        decimal.Decimal
	// Capped is set when the loss was limited to the margin.
	Capped bool
}

// Credit is what closing returns to the balance: margin plus net profit. It
// is never negative because Net is never below -margin.
func (s Settlement) Credit(margin decimal.Decimal) decimal.Decimal {
	return domain.RoundMoney(margin.Add(s.Net))
}

// EntryPrice is the price a new position opens at: the ask for a long, the
// bid for a short.
func EntryPrice(dir domain.Direction, q domain.LiveQuote) decimal.Decimal {
	if dir == domain.DirectionShort {
		return q.BidPrice
	}
	return q.AskPrice
}

// ClosingPrice is the price an open position settles at: the bid for a long,
// the ask for a short.
func ClosingPrice(dir domain.Direction, q domain.LiveQuote) decimal.Decimal {
	if dir == domain.DirectionShort {
		return q.AskPrice
	}
	return q.BidPrice
}

// Settle values a position closed at closePrice.
//
//	quantity = margin / entry                (8 dp)
//	gross    = ±(close - entry) * quantity   (2 dp; negated for SHORT)
//	fee      = (margin + gross) * feeRate    (2 dp; 0 once nothing is left)
//	net      = max(gross - fee, -margin)
//
// A position can lose at most its margin: a short whose price more than
// doubles settles at net = -margin with no fee.
func Settle(dir domain.Direction, entry, margin, closePrice, feeRate decimal.Decimal) Settlement {
	qty := decimal.Zero
	if entry.IsPositive() {
		qty = margin.DivRound(entry, domain.QuantityPlaces)
	}
	diff := closePrice.Sub(entry)
	if dir == domain.DirectionShort {
		diff = diff.Neg()
	}
	gross := domain.RoundMoney(diff.Mul(qty))
	fee := decimal.Zero
	if remaining := margin.Add(gross); remaining.IsPositive() {
		fee = domain.RoundMoney(remaining.Mul(feeRate))
	}
	st := Settlement{
		ClosePrice: closePrice,
		Quantity:   qty,
		Gross:      gross,
		Fee:        fee,
		Net:        domain.RoundMoney(gross.Sub(fee)),
	}
	if floor := margin.Neg(); st.Net.LessThan(floor) {
		st.Net = floor
		st.Capped = true
	}
	return st
}
