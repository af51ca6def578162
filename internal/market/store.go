// Package market holds the live, in-memory price model for every tracked
// asset. Reference syncs set base prices, the tick generator drifts current
// prices, and trading reads bid/ask on every request.
package market

import (
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

// VolatilityFunc returns the fractional price move for one asset on one tick,
// e.g. 0.0015 for +0.15%.
type VolatilityFunc func() decimal.Decimal

// UniformVolatility returns moves drawn uniformly from [-maxPct%, +maxPct%].
func UniformVolatility(maxPct float64) VolatilityFunc {
	return func() decimal.Decimal {
		pct := (rand.Float64()*2 - 1) * maxPct
		return decimal.NewFromFloat(pct / 100)
	}
}

// Config controls the spread and default tick behaviour of a Store.
type Config struct {
	// SpreadFactor is the fraction applied below and above the current price
	// to derive bid and ask. 0.02 gives bid = 0.98x and ask = 1.02x.
	SpreadFactor decimal.Decimal
	// Volatility is the default move generator used by TickAll(nil).
	Volatility VolatilityFunc
	// Now is the clock used to stamp quotes.
	Now func() time.Time
}

// DefaultConfig is a 2% spread with uniform +/-0.2% ticks.
func DefaultConfig() Config {
	return Config{
		SpreadFactor: decimal.NewFromFloat(0.02),
		Volatility:   UniformVolatility(0.2),
		Now:          time.Now,
	}
}

// Store is a concurrency-safe map of asset ids to live quotes.
//
// Each entry is an atomic pointer to an immutable quote, so a reader always
// observes a bid/current/ask triple that was written together. Writers (the
// reference sync and the tick generator) are serialized by writeMu; the map
// lock only guards the key set.
type Store struct {
	spread     decimal.Decimal
	volatility VolatilityFunc
	now        func() time.Time

	writeMu sync.Mutex

	mu     sync.RWMutex
	quotes map[string]*atomic.Pointer[domain.LiveQuote]
	order  []string

	liquidity atomic.Pointer[decimal.Decimal]
	lastTick  atomic.Int64
}

// NewStore creates an empty Store. A nil Volatility or Now falls back to
// DefaultConfig, as does a negative SpreadFactor.
func NewStore(cfg Config) *Store {
	def := DefaultConfig()
	if cfg.Volatility == nil {
		cfg.Volatility = def.Volatility
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	if cfg.SpreadFactor.IsNegative() {
		cfg.SpreadFactor = def.SpreadFactor
	}
	s := &Store{
		spread:     cfg.SpreadFactor,
		volatility: cfg.Volatility,
		now:        cfg.Now,
		quotes:     make(map[string]*atomic.Pointer[domain.LiveQuote]),
	}
	zero := decimal.Zero
	s.liquidity.Store(&zero)
	return s
}

// Quote returns a copy of the live quote for assetID. Lookup is exact; an
// unknown asset returns false.
func (s *Store) Quote(assetID string) (domain.LiveQuote, bool) {
	s.mu.RLock()
	entry, ok := s.quotes[assetID]
	s.mu.RUnlock()
	if !ok {
		return domain.LiveQuote{}, false
	}
	q := entry.Load()
	if q == nil {
		return domain.LiveQuote{}, false
	}
	return *q, true
}

// UpsertBase records a reference price. A new asset starts trading at the
// base price. For an existing asset only the base price and quantity change;
// the drifted current, bid and ask are kept. Non-positive prices are ignored
// and reported as false.
func (s *Store) UpsertBase(assetID string, basePrice decimal.Decimal, quantity int64) bool {
	if assetID == "" || !basePrice.IsPositive() {
		return false
	}
	base := domain.RoundMoney(basePrice)
	if !base.IsPositive() {
		return false
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	entry, ok := s.quotes[assetID]
	s.mu.RUnlock()

	if ok {
		prev := entry.Load()
		next := *prev
		next.BasePrice = base
		next.Quantity = quantity
		entry.Store(&next)
		return true
	}

	q := s.priced(domain.LiveQuote{
		AssetID:   assetID,
		BasePrice: base,
		Quantity:  quantity,
	}, base)
	s.insert(assetID, &q)
	return true
}

// Restore inserts previously saved quotes for assets the store does not track
// yet. It returns how many were inserted.
func (s *Store) Restore(quotes []domain.LiveQuote) int {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	n := 0
	for _, q := range quotes {
		if q.AssetID == "" || !q.CurrentPrice.IsPositive() {
			continue
		}
		s.mu.RLock()
		_, exists := s.quotes[q.AssetID]
		s.mu.RUnlock()
		if exists {
			continue
		}
		restored := s.priced(q, q.CurrentPrice)
		s.insert(q.AssetID, &restored)
		n++
	}
	return n
}

// ApplyTick moves one asset's current price by delta and re-derives bid and
// ask. It reports false for an unknown asset.
func (s *Store) ApplyTick(assetID string, delta decimal.Decimal) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	entry, ok := s.quotes[assetID]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	s.tickEntry(entry, delta)
	return true
}

// TickAll applies one independent move to every tracked asset. A nil vol uses
// the store's configured generator. It returns the number of assets ticked.
func (s *Store) TickAll(vol VolatilityFunc) int {
	if vol == nil {
		vol = s.volatility
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for _, entry := range s.entries() {
		s.tickEntry(entry, vol())
	}
	n := s.Len()
	s.lastTick.Store(s.now().UnixNano())
	return n
}

// SetLiquidity publishes the latest liquid market cap computed by a sync.
func (s *Store) SetLiquidity(v decimal.Decimal) {
	v = domain.RoundMoney(v)
	s.liquidity.Store(&v)
}

// Stats returns catalog size and liquid market cap.
func (s *Store) Stats() domain.MarketStats {
	return domain.MarketStats{
		TotalAssetsTracked: s.Len(),
		LiquidMarketCap:    *s.liquidity.Load(),
	}
}

// LastTick returns when TickAll last completed, or the zero time.
func (s *Store) LastTick() time.Time {
	ns := s.lastTick.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Len returns the number of tracked assets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.quotes)
}

// All returns a copy of every quote in insertion order.
func (s *Store) All() []domain.LiveQuote {
	entries := s.entries()
	out := make([]domain.LiveQuote, 0, len(entries))
	for _, e := range entries {
		if q := e.Load(); q != nil {
			out = append(out, *q)
		}
	}
	return out
}

// Movers returns the n highest-priced assets, most expensive first.
func (s *Store) Movers(n int) []domain.LiveQuote {
	all := s.All()
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CurrentPrice.GreaterThan(all[j].CurrentPrice)
	})
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

// Catalog returns up to n asset ids in the order they were first tracked.
func (s *Store) Catalog(n int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.order) {
		n = len(s.order)
	}
	out := make([]string, n)
	copy(out, s.order[:n])
	return out
}

func (s *Store) entries() []*atomic.Pointer[domain.LiveQuote] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*atomic.Pointer[domain.LiveQuote], 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.quotes[id])
	}
	return out
}

// insert must be called with writeMu held.
func (s *Store) insert(assetID string, q *domain.LiveQuote) {
	entry := &atomic.Pointer[domain.LiveQuote]{}
	entry.Store(q)
	s.mu.Lock()
	s.quotes[assetID] = entry
	s.order = append(s.order, assetID)
	s.mu.Unlock()
}

// tickEntry must be called with writeMu held.
func (s *Store) tickEntry(entry *atomic.Pointer[domain.LiveQuote], delta decimal.Decimal) {
	prev := entry.Load()
	if prev == nil {
		return
	}
	current := domain.RoundMoney(prev.CurrentPrice.Add(prev.CurrentPrice.Mul(delta)))
	if !current.IsPositive() {
		return
	}
	next := s.priced(*prev, current)
	entry.Store(&next)
}

// priced returns q with current set and bid/ask derived from it.
func (s *Store) priced(q domain.LiveQuote, current decimal.Decimal) domain.LiveQuote {
	one := decimal.NewFromInt(1)
	q.CurrentPrice = current
	q.BidPrice = domain.RoundMoney(current.Mul(one.Sub(s.spread)))
	q.AskPrice = domain.RoundMoney(current.Mul(one.Add(s.spread)))
	q.UpdatedAt = s.now().UTC()
	return q
}
