package main

import (
	"bytes"
	"strings"
	"testing"

	"coinwatch-go/market"
	"coinwatch-go/portfolio"
)

func TestPrintCoinsRespectsLimit(t *testing.T) {
	var buf bytes.Buffer
	printCoins(&buf, []market.Coin{
		{ID: "bitcoin", Symbol: "btc", CurrentPrice: 64230.5, MarketCapRank: 1},
		{ID: "ethereum", Symbol: "eth", CurrentPrice: 3120, MarketCapRank: 2},
	}, 1)

	out := buf.String()
	if !strings.Contains(out, "BTC") || !strings.Contains(out, "$64,230.50") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "ETH") {
		t.Fatalf("limit not applied:\n%s", out)
	}
}

func TestPrintSummary(t *testing.T) {
	items := []portfolio.Item{{ID: "a", CoinID: "bitcoin", Quantity: 0.5, PurchasePrice: 50000}}
	var buf bytes.Buffer
	printSummary(&buf, portfolio.Valuate(items, map[string]float64{"bitcoin": 60000}))

	out := buf.String()
	for _, want := range []string{"bitcoin", "$30,000.00", "$5,000.00", "+20.00%", "TOTAL"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
}
