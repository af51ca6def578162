package skinport

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

// APIItem is one element of the /v1/items response. Price fields are null
// when the item has no active listing.
type APIItem struct {
	MarketHashName string           `json:"market_hash_name"`
	Currency       string           `json:"currency"`
	SuggestedPrice *decimal.Decimal `json:"suggested_price"`
	ItemPage       string           `json:"item_page"`
	MarketPage     string           `json:"market_page"`
	MinPrice       *decimal.Decimal `json:"min_price"`
	MaxPrice       *decimal.Decimal `json:"max_price"`
	MeanPrice      *decimal.Decimal `json:"mean_price"`
	MedianPrice    *decimal.Decimal `json:"median_price"`
	Quantity       int64            `json:"quantity"`
	CreatedAt      int64            `json:"created_at"`
	UpdatedAt      int64            `json:"updated_at"`
}

// ToDomain converts the API item into a domain.ReferenceItem.
func (a APIItem) ToDomain() domain.ReferenceItem {
	return domain.ReferenceItem{
		AssetID:  a.MarketHashName,
		MinPrice: a.MinPrice,
		Quantity: a.Quantity,
	}
}
