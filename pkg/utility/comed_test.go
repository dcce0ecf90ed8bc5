package utility

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestComEd(t *testing.T, priceType string, handler http.HandlerFunc) *ComEd {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	c := &ComEd{
		apiURL:    ts.URL + "/api",
		priceType: priceType,
		client:    ts.Client(),
	}
	require.NoError(t, c.Validate())
	return c
}

func TestComEd(t *testing.T) {
	t.Run("GetCurrentPrice_CurrentHourAverage", func(t *testing.T) {
		c := newTestComEd(t, ComEdCurrentHourAverage, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api", r.URL.Path)
			assert.Equal(t, "currenthouraverage", r.URL.Query().Get("type"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"millisUTC":"1706227500000","price":"1.5"}]`))
		})

		price, err := c.GetCurrentPrice(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1.5, price.CentsPerKWH)
		assert.Equal(t, "comed", price.Provider)
		assert.True(t, time.UnixMilli(1706227500000).Equal(price.TS))
	})

	t.Run("GetCurrentPrice_FiveMinuteFeed_Latest", func(t *testing.T) {
		c := newTestComEd(t, ComEdFiveMinuteFeed, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "5minutefeed", r.URL.Query().Get("type"))
			// ComEd lists newest first but we don't rely on it
			_, _ = w.Write([]byte(`[
				{"millisUTC":"1706227800000","price":"-0.4"},
				{"millisUTC":"1706228100000","price":"2.1"},
				{"millisUTC":"1706227500000","price":"3.0"}
			]`))
		})

		price, err := c.GetCurrentPrice(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2.1, price.CentsPerKWH)
		assert.True(t, time.UnixMilli(1706228100000).Equal(price.TS))
	})

	t.Run("GetCurrentPrice_SkipsBadEntries", func(t *testing.T) {
		c := newTestComEd(t, ComEdFiveMinuteFeed, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[
				{"millisUTC":"1706228400000","price":"NaN"},
				{"millisUTC":"bogus","price":"1.0"},
				{"millisUTC":"1706227500000","price":"3.2"}
			]`))
		})

		price, err := c.GetCurrentPrice(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3.2, price.CentsPerKWH)
	})

	for name, handler := range map[string]http.HandlerFunc{
		"Status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
		"NotJSON": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>maintenance</html>`))
		},
		"Empty": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		},
		"NoParsableEntries": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"millisUTC":"1706227500000","price":"n/a"}]`))
		},
	} {
		t.Run("GetCurrentPrice_Unavailable_"+name, func(t *testing.T) {
			c := newTestComEd(t, ComEdCurrentHourAverage, handler)
			_, err := c.GetCurrentPrice(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPriceUnavailable)
		})
	}

	t.Run("GetCurrentPrice_ContextTimeout", func(t *testing.T) {
		c := newTestComEd(t, ComEdCurrentHourAverage, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := c.GetCurrentPrice(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPriceUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("Validate", func(t *testing.T) {
		assert.Error(t, (&ComEd{}).Validate())
		assert.Error(t, (&ComEd{apiURL: "https://example.com", priceType: "hourly"}).Validate())
		assert.NoError(t, (&ComEd{apiURL: "https://example.com", priceType: ComEdFiveMinuteFeed}).Validate())
	})
}

func TestMap(t *testing.T) {
	m := NewMap()
	_, err := m.Current()
	assert.Error(t, err)

	a := NewMock(1)
	b := NewMock(2)
	m.SetProvider("a", a)
	m.SetProvider("b", b)

	cur, err := m.Current()
	require.NoError(t, err)
	assert.Same(t, a, cur, "first registered provider is the default")

	m.SetCurrent("b")
	cur, err = m.Current()
	require.NoError(t, err)
	assert.Same(t, b, cur)

	_, err = m.Provider("nope")
	assert.ErrorContains(t, err, "unknown utility provider: nope")
}

func TestMock(t *testing.T) {
	p, err := NewMock(1.25).GetCurrentPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.25, p.CentsPerKWH)
	assert.Equal(t, "mock", p.Provider)
	assert.False(t, p.TS.IsZero())
}
