package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSnapshot_RoundTrip(t *testing.T) {
	inputs := []string{
		`null`,
		`{}`,
		`[]`,
		`{"stocks":[{"price":1e3,"sector":"TECH","symbol":"AAPL"}],"updated":"2025-01-01T00:00:00Z"}`,
		`[{"change":-0.000001,"id":9007199254740993,"name":"A&B <Holdings>","sector":"RETAIL"}]`,
		`{"nested":{"deep":[1,2.50,{"x":null,"y":true}]}}`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			snapshot, err := ParseSnapshot([]byte(input))
			require.NoError(t, err)

			encoded, err := snapshot.MarshalJSON()
			require.NoError(t, err)
			assert.Equal(t, input, string(encoded))

			var decoded MarketSnapshot
			require.NoError(t, json.Unmarshal(encoded, &decoded))
			assert.Equal(t, snapshot, decoded)
		})
	}
}

func TestParseSnapshot_Malformed(t *testing.T) {
	for _, input := range []string{"", "not json", `{"a":`, `{} {}`} {
		snapshot, err := ParseSnapshot([]byte(input))
		assert.Error(t, err, input)
		assert.True(t, snapshot.IsEmpty())
	}
}

func TestSnapshot_IsEmpty(t *testing.T) {
	assert.True(t, EmptySnapshot().IsEmpty())
	assert.True(t, MarketSnapshot{}.IsEmpty())
	assert.Equal(t, "{}", EmptySnapshot().String())
	assert.Equal(t, "null", MarketSnapshot{}.String())

	for input, want := range map[string]bool{
		`null`:    true,
		`{}`:      true,
		`[]`:      true,
		`{"a":1}`: false,
		`[0]`:     false,
		`"text"`:  false,
		`0`:       false,
	} {
		snapshot, err := ParseSnapshot([]byte(input))
		require.NoError(t, err)
		assert.Equal(t, want, snapshot.IsEmpty(), input)
	}
}

func TestSnapshot_Sectors(t *testing.T) {
	snapshot, err := ParseSnapshot([]byte(`{
		"stocks": [
			{"symbol": "AAPL", "sector": "tech"},
			{"symbol": "XOM", "sector": "ENERGY"},
			{"symbol": "MSFT", "sector": "TECH"}
		],
		"events": [{"sector_applied": "FINANCE"}],
		"meta": {"sectors": ["HEALTH", 3, "energy"]}
	}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"ENERGY", "FINANCE", "HEALTH", "TECH"}, snapshot.Sectors())
	assert.True(t, snapshot.HasSector("tech"))
	assert.True(t, snapshot.HasSector(" Finance "))
	assert.False(t, snapshot.HasSector("RETAIL"))

	assert.Empty(t, EmptySnapshot().Sectors())
}
