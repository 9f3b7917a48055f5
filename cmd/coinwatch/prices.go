package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"coinwatch-go/config"
	"coinwatch-go/gateway"
	"coinwatch-go/market"
	"coinwatch-go/portfolio"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func pricesCommand() *cli.Command {
	return &cli.Command{
		Name:  "prices",
		Usage: "Fetch one market snapshot and print it",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Number of assets to print",
				Value:   10,
			},
		},
		Action: pricesAction,
	}
}

func pricesAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.LoadOrDefault(cmd.String("config"))
	if err != nil {
		return err
	}
	coins, err := fetchCoins(ctx, cfg)
	if err != nil {
		return err
	}
	printCoins(os.Stdout, coins, int(cmd.Int("limit")))
	return nil
}

// fetchCoins 一次性拉取快照，不启动同步会话。
func fetchCoins(ctx context.Context, cfg config.AppConfig) ([]market.Coin, error) {
	client := gateway.NewMarketRESTClient(cfg.Market.BaseURL, zap.NewNop())
	raws, err := client.FetchMarkets(ctx, gateway.MarketsQuery{
		VsCurrency: cfg.Market.VsCurrency,
		Order:      cfg.Market.Order,
		PerPage:    cfg.Market.PerPage,
		Page:       cfg.Market.Page,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch markets: %w", err)
	}
	return market.SortByRank(market.NormalizeCoins(raws)), nil
}

func printCoins(w io.Writer, coins []market.Coin, limit int) {
	if limit > 0 && limit < len(coins) {
		coins = coins[:limit]
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tASSET\tPRICE\t24H\tMARKET CAP\t")
	for _, c := range coins {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%+.2f%%\t%s\t\n",
			c.MarketCapRank,
			strings.ToUpper(c.Symbol),
			portfolio.FormatUSD(c.CurrentPrice),
			c.PriceChangePercentage24h,
			portfolio.FormatUSD(c.MarketCap))
	}
	tw.Flush()
}
