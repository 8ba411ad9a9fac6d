package model

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// LabelLightning is the single label every BTC-over-Lightning spelling
// collapses to.
const LabelLightning = "Lightning"

// Payment methods stored in the optional payment_accepts.method column.
const (
	MethodLightning = "lightning"
	MethodOnchain   = "onchain"
)

// PaymentAccept is one normalized acceptance fact tied to a place.
type PaymentAccept struct {
	Asset     string `json:"asset,omitempty"`
	Network   string `json:"network,omitempty"`
	Label     string `json:"label"`
	Method    string `json:"method,omitempty"`
	Preferred bool   `json:"preferred,omitempty"`
}

var (
	lightningSpellings = map[string]bool{
		"lightning":         true,
		"lightning network": true,
		"lightningnetwork":  true,
		"ln":                true,
		"lnurl":             true,
		"bolt11":            true,
	}
	bitcoinSpellings = map[string]bool{
		"btc":     true,
		"bitcoin": true,
		"xbt":     true,
	}
)

// canon folds width variants and case so "ＢＴＣ", "btc" and "BTC" compare equal.
// Casers are stateful, so each call builds its own.
func canon(s string) string {
	s = strings.TrimSpace(norm.NFKC.String(s))
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}

// NormalizeAsset maps one claimed pair to its display label and method. It
// returns ok=false when neither side carries anything.
func NormalizeAsset(a AcceptedAsset) (PaymentAccept, bool) {
	asset := canon(a.Asset)
	network := canon(a.Network)
	if asset == "" && network == "" {
		return PaymentAccept{}, false
	}

	pa := PaymentAccept{
		Asset:     strings.TrimSpace(norm.NFKC.String(a.Asset)),
		Network:   strings.TrimSpace(norm.NFKC.String(a.Network)),
		Preferred: a.Preferred,
		Method:    MethodOnchain,
	}

	switch {
	case lightningSpellings[asset],
		asset == "" && lightningSpellings[network],
		bitcoinSpellings[asset] && lightningSpellings[network]:
		pa.Label = LabelLightning
		pa.Method = MethodLightning
		pa.Asset = "BTC"
		pa.Network = LabelLightning
	case bitcoinSpellings[asset]:
		pa.Label = "BTC"
		pa.Asset = "BTC"
	case asset != "":
		pa.Label = cases.Upper(language.Und).String(strings.ReplaceAll(asset, " ", ""))
		pa.Asset = pa.Label
	default:
		pa.Label = cases.Title(language.Und).String(network)
		pa.Network = pa.Label
	}
	return pa, true
}

// NormalizeAssets normalizes, de-duplicates by label and orders a claimed
// asset list: preferred entries first, then by label. The result does not
// depend on input order.
func NormalizeAssets(in []AcceptedAsset) []PaymentAccept {
	byLabel := make(map[string]PaymentAccept, len(in))
	for _, a := range in {
		pa, ok := NormalizeAsset(a)
		if !ok {
			continue
		}
		if prev, seen := byLabel[pa.Label]; seen {
			preferred := prev.Preferred || pa.Preferred
			if pa.Network < prev.Network {
				prev = pa
			}
			prev.Preferred = preferred
			byLabel[pa.Label] = prev
			continue
		}
		byLabel[pa.Label] = pa
	}

	out := make([]PaymentAccept, 0, len(byLabel))
	for _, pa := range byLabel {
		out = append(out, pa)
	}
	SortPayments(out)
	return out
}

// SortPayments applies display order in place.
func SortPayments(p []PaymentAccept) {
	sort.SliceStable(p, func(i, j int) bool {
		if p[i].Preferred != p[j].Preferred {
			return p[i].Preferred
		}
		return p[i].Label < p[j].Label
	})
}
