package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealer-pricing/internal/storage"
)

func TestListingsFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/listings", r.URL.Path)
		assert.Equal(t, "Skoda", r.URL.Query().Get("make"))
		assert.Equal(t, "Octavia", r.URL.Query().Get("model"))
		assert.Equal(t, "2019", r.URL.Query().Get("year_from"))
		assert.Equal(t, "2025", r.URL.Query().Get("year_to"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"listings":[
			{"id":11,"source":"finn","make":"Skoda","model":"Octavia","year":2021,"km":64000,"price":"239000","listed_at":"2025-02-10T00:00:00Z","fetched_at":"2025-02-28T00:00:00Z"},
			{"id":12,"source":"finn","make":"Skoda","model":"Octavia","year":2022,"km":41000,"price":"0","listed_at":"2025-02-11T00:00:00Z","fetched_at":"2025-02-28T00:00:00Z"}
		]}`))
	}))
	defer srv.Close()

	l := NewListings(ListingsOptions{BaseURL: srv.URL + "/", APIToken: "secret", Timeout: time.Second}, zerolog.Nop())

	got, err := l.ListComparables(context.Background(), storage.ComparableQuery{
		Make: "Skoda", Model: "Octavia", MinYear: 2019, MaxYear: 2025, Limit: 50,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(11), got[0].ID)
	assert.Equal(t, 2021, got[0].ModelYear)
	assert.Equal(t, 64000, got[0].MileageKm)
	assert.Equal(t, "239000", got[0].Price.String())
}

func TestListingsFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "unknown model"})
	}))
	defer srv.Close()

	l := NewListings(ListingsOptions{BaseURL: srv.URL, Timeout: time.Second}, zerolog.Nop())
	_, err := l.ListComparables(context.Background(), storage.ComparableQuery{Make: "Skoda", Model: "Nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model")
}

func TestListingsRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"listings":[]}`))
	}))
	defer srv.Close()

	l := NewListings(ListingsOptions{BaseURL: srv.URL, Timeout: time.Second, Retries: 2}, zerolog.Nop())
	got, err := l.ListComparables(context.Background(), storage.ComparableQuery{Make: "Skoda", Model: "Octavia"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestListingsRequiresMakeAndModel(t *testing.T) {
	l := NewListings(ListingsOptions{BaseURL: "http://127.0.0.1:1"}, zerolog.Nop())
	_, err := l.ListComparables(context.Background(), storage.ComparableQuery{Make: "Skoda"})
	assert.Error(t, err)
}

func TestListingsRespectsContextWhileRateLimited(t *testing.T) {
	l := NewListings(ListingsOptions{BaseURL: "http://127.0.0.1:1", RPS: 0.001, Burst: 1}, zerolog.Nop())
	require.True(t, l.limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := l.ListComparables(ctx, storage.ComparableQuery{Make: "Skoda", Model: "Octavia"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}
