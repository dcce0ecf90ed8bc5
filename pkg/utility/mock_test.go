package utility

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGetCurrentPrice(t *testing.T) {
	p, err := NewMock(2.5).GetCurrentPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mock", p.Provider)
	assert.Equal(t, 2.5, p.CentsPerKWH)
	assert.False(t, p.TS.IsZero())
}

func TestParseMockPrice(t *testing.T) {
	v, err := parseMockPrice("-0.4")
	require.NoError(t, err)
	assert.Equal(t, -0.4, v)

	for _, s := range []string{"NaN", "Inf", "-Inf", "+inf", "cheap", ""} {
		_, err := parseMockPrice(s)
		assert.Error(t, err, s)
	}
	_, err = parseMockPrice("NaN")
	assert.ErrorContains(t, err, "must be finite")
}
