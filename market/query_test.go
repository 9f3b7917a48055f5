package market

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchMatchesNameOrSymbol(t *testing.T) {
	coins := []Coin{
		{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin"},
		{ID: "solana", Symbol: "sol", Name: "Solana"},
		{ID: "wrapped-bitcoin", Symbol: "wbtc", Name: "Wrapped Bitcoin"},
	}

	assert.Len(t, Search(coins, ""), 3)
	assert.Equal(t, []Coin{coins[1]}, Search(coins, " SOL "))

	var got []string
	for _, c := range Search(coins, "btc") {
		got = append(got, c.ID)
	}
	assert.Equal(t, []string{"bitcoin", "wrapped-bitcoin"}, got)
	assert.Empty(t, Search(coins, "doge"))
}

func TestPaginate(t *testing.T) {
	coins := make([]Coin, 23)
	for i := range coins {
		coins[i] = Coin{ID: fmt.Sprintf("c%d", i)}
	}

	first, pages := Paginate(coins, 1, 0)
	assert.Equal(t, 3, pages)
	assert.Len(t, first, DefaultPageSize)
	assert.Equal(t, "c0", first[0].ID)

	last, _ := Paginate(coins, 3, 10)
	assert.Len(t, last, 3)
	assert.Equal(t, "c20", last[0].ID)

	out, _ := Paginate(coins, 4, 10)
	assert.Empty(t, out)
	out, pages = Paginate(nil, 1, 10)
	assert.Empty(t, out)
	assert.Equal(t, 0, pages)
}
