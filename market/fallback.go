package market

// FallbackCoins 行情接口不可用且本地无数据时展示的内置数据集。
// 每次返回新的切片，调用方可以自由修改。
func FallbackCoins() []Coin {
	return []Coin{
		{
			ID:                       "bitcoin",
			Symbol:                   "btc",
			Name:                     "Bitcoin",
			Image:                    "https://assets.coingecko.com/coins/images/1/large/bitcoin.png",
			CurrentPrice:             64230,
			MarketCap:                1200000000,
			MarketCapRank:            1,
			PriceChangePercentage24h: 2.4,
			TotalVolume:              50000000,
			High24h:                  65000,
			Low24h:                   63000,
			SparklineIn7d:            Sparkline{Price: []float64{}},
		},
		{
			ID:                       "ethereum",
			Symbol:                   "eth",
			Name:                     "Ethereum",
			Image:                    "https://assets.coingecko.com/coins/images/279/large/ethereum.png",
			CurrentPrice:             3120,
			MarketCap:                375000000,
			MarketCapRank:            2,
			PriceChangePercentage24h: 1.1,
			TotalVolume:              18000000,
			High24h:                  3180,
			Low24h:                   3050,
			SparklineIn7d:            Sparkline{Price: []float64{}},
		},
	}
}
