package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAsset_LightningSpellings(t *testing.T) {
	tests := []struct {
		name string
		in   AcceptedAsset
	}{
		{"lower pair", AcceptedAsset{Asset: "btc", Network: "lightning"}},
		{"LN short", AcceptedAsset{Asset: "BTC", Network: "LN"}},
		{"bare label", AcceptedAsset{Asset: "Lightning"}},
		{"network only", AcceptedAsset{Network: "Lightning Network"}},
		{"bitcoin word", AcceptedAsset{Asset: "Bitcoin", Network: "ln"}},
		{"full width", AcceptedAsset{Asset: "ＢＴＣ", Network: "ＬＮ"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pa, ok := NormalizeAsset(tt.in)
			require.True(t, ok)
			assert.Equal(t, LabelLightning, pa.Label)
			assert.Equal(t, MethodLightning, pa.Method)
		})
	}
}

func TestNormalizeAsset_SymbolPreferredOverNetwork(t *testing.T) {
	pa, ok := NormalizeAsset(AcceptedAsset{Asset: "usdt", Network: "Tron"})
	require.True(t, ok)
	assert.Equal(t, "USDT", pa.Label)
	assert.Equal(t, MethodOnchain, pa.Method)

	pa, ok = NormalizeAsset(AcceptedAsset{Asset: "bitcoin"})
	require.True(t, ok)
	assert.Equal(t, "BTC", pa.Label)

	pa, ok = NormalizeAsset(AcceptedAsset{Network: "liquid"})
	require.True(t, ok)
	assert.Equal(t, "Liquid", pa.Label)
}

func TestNormalizeAsset_Empty(t *testing.T) {
	_, ok := NormalizeAsset(AcceptedAsset{Asset: "  ", Network: ""})
	assert.False(t, ok)
}

func TestNormalizeAssets_LightningFirstForAnyPermutation(t *testing.T) {
	a := AcceptedAsset{Asset: "btc", Network: "lightning"}
	b := AcceptedAsset{Asset: "BTC", Network: "LN"}
	c := AcceptedAsset{Asset: "Lightning"}

	perms := [][]AcceptedAsset{
		{a, b, c}, {a, c, b}, {b, a, c}, {b, c, a}, {c, a, b}, {c, b, a},
	}
	for _, p := range perms {
		out := NormalizeAssets(p)
		require.Len(t, out, 1)
		assert.Equal(t, "Lightning", out[0].Label)
	}
}

func TestNormalizeAssets_DedupAndOrder(t *testing.T) {
	out := NormalizeAssets([]AcceptedAsset{
		{Asset: "usdt"},
		{Asset: "BTC"},
		{Asset: "btc", Network: "lightning", Preferred: true},
		{Asset: "USDT", Network: "tron"},
		{Asset: "bitcoin"},
	})

	labels := make([]string, 0, len(out))
	for _, pa := range out {
		labels = append(labels, pa.Label)
	}
	assert.Equal(t, []string{"Lightning", "BTC", "USDT"}, labels)
	assert.True(t, out[0].Preferred)
}

func TestNormalizeAssets_PreferredMergesAcrossDuplicates(t *testing.T) {
	out := NormalizeAssets([]AcceptedAsset{
		{Asset: "ETH"},
		{Asset: "btc"},
		{Asset: "BTC", Preferred: true},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "BTC", out[0].Label)
	assert.True(t, out[0].Preferred)
	assert.Equal(t, "ETH", out[1].Label)
}
