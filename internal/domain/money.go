package domain

import "github.com/shopspring/decimal"

// MoneyPlaces is the precision of every stored price, balance, profit and fee.
const MoneyPlaces = 2

// QuantityPlaces is the precision of a position's notional item quantity.
const QuantityPlaces = 8

// RoundMoney rounds d half away from zero to MoneyPlaces.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}
