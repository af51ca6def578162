package skinport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

const itemsFixture = `[
  {"market_hash_name":"AK-47 | Redline (Field-Tested)","currency":"USD","suggested_price":13.1,"min_price":12.45,"max_price":40,"mean_price":15.2,"median_price":14,"quantity":312,"created_at":1535988253,"updated_at":1700000000},
  {"market_hash_name":"Sticker | Unlisted","currency":"USD","suggested_price":0.5,"min_price":null,"max_price":null,"mean_price":null,"median_price":null,"quantity":0,"created_at":1535988253,"updated_at":1700000000}
]`

func TestGetItems(t *testing.T) {
	var gotQuery, gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/items", r.URL.Path)
		gotQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(itemsFixture))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, UserAgent: "test-agent"})
	items, err := c.GetItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "app_id=730&currency=USD&tradable=0", gotQuery)
	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, "application/json", gotAccept)

	assert.Equal(t, "AK-47 | Redline (Field-Tested)", items[0].AssetID)
	require.NotNil(t, items[0].MinPrice)
	assert.Equal(t, "12.45", items[0].MinPrice.String())
	assert.Equal(t, int64(312), items[0].Quantity)

	assert.Nil(t, items[1].MinPrice)
	assert.Zero(t, items[1].Quantity)
}

func TestGetItemsStatusErrors(t *testing.T) {
	status := http.StatusTooManyRequests
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"message":"slow down"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.GetItems(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	status = http.StatusBadGateway
	_, err = c.GetItems(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestGetItemsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.GetItems(context.Background())
	require.Error(t, err)
}

func TestGetItemsBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).GetItems(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode items")
}
