package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"coinwatch-go/config"
	"coinwatch-go/market"
	"coinwatch-go/portfolio"

	"github.com/urfave/cli/v3"
)

func portfolioCommand() *cli.Command {
	return &cli.Command{
		Name:  "portfolio",
		Usage: "Manage local holdings",
		Commands: []*cli.Command{
			{
				Name:  "ls",
				Usage: "List holdings valued at live prices",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "offline",
						Usage: "Skip the market fetch; values are shown as zero",
					},
				},
				Action: portfolioListAction,
			},
			{
				Name:      "add",
				Usage:     "Add a holding",
				ArgsUsage: " ",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "coin", Usage: "Asset id, e.g. bitcoin", Required: true},
					&cli.FloatFlag{Name: "qty", Usage: "Quantity held", Required: true},
					&cli.FloatFlag{Name: "price", Usage: "Purchase price in USD (defaults to the current price)", Value: -1},
				},
				Action: portfolioAddAction,
			},
			{
				Name:      "rm",
				Usage:     "Remove a holding by id",
				ArgsUsage: "<id>",
				Action:    portfolioRemoveAction,
			},
			{
				Name:  "reset",
				Usage: "Delete all holdings",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm the reset"},
				},
				Action: portfolioResetAction,
			},
		},
	}
}

func openLedger(cmd *cli.Command) (config.AppConfig, *portfolio.Ledger, error) {
	cfg, err := config.LoadOrDefault(cmd.String("config"))
	if err != nil {
		return cfg, nil, err
	}
	ledger, err := portfolio.NewLedger(portfolio.NewFileStore(cfg.Portfolio.Path), nil, nil)
	return cfg, ledger, err
}

func portfolioListAction(ctx context.Context, cmd *cli.Command) error {
	cfg, ledger, err := openLedger(cmd)
	if err != nil {
		return err
	}
	prices := map[string]float64{}
	if !cmd.Bool("offline") {
		coins, err := fetchCoins(ctx, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v, values shown as zero\n", err)
		} else {
			prices = market.PriceMap(coins)
		}
	}
	printSummary(os.Stdout, ledger.Valuate(prices))
	return nil
}

func portfolioAddAction(ctx context.Context, cmd *cli.Command) error {
	cfg, ledger, err := openLedger(cmd)
	if err != nil {
		return err
	}
	n := portfolio.NewItem{
		CoinID:        cmd.String("coin"),
		Quantity:      cmd.Float("qty"),
		PurchasePrice: cmd.Float("price"),
	}
	if n.PurchasePrice < 0 {
		coins, err := fetchCoins(ctx, cfg)
		if err != nil {
			return fmt.Errorf("no --price given and %w", err)
		}
		c, ok := market.Find(coins, n.CoinID)
		if !ok {
			return fmt.Errorf("unknown asset %q, pass --price explicitly", n.CoinID)
		}
		n.PurchasePrice = c.CurrentPrice
	}
	item, err := ledger.Add(n)
	if err != nil {
		return err
	}
	fmt.Printf("added %s: %g %s @ %s\n", item.ID, item.Quantity, item.CoinID, portfolio.FormatUSD(item.PurchasePrice))
	return nil
}

func portfolioRemoveAction(_ context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("holding id is required")
	}
	_, ledger, err := openLedger(cmd)
	if err != nil {
		return err
	}
	if err := ledger.Remove(id); err != nil {
		return err
	}
	fmt.Printf("removed %s\n", id)
	return nil
}

func portfolioResetAction(_ context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return fmt.Errorf("this wipes all holdings, rerun with --yes to confirm")
	}
	_, ledger, err := openLedger(cmd)
	if err != nil {
		return err
	}
	n := ledger.Len()
	if err := ledger.Clear(); err != nil {
		return err
	}
	fmt.Printf("removed %d holdings\n", n)
	return nil
}

func printSummary(w io.Writer, sum portfolio.Summary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tASSET\tQTY\tPRICE\tVALUE\tP/L\tP/L %")
	for _, p := range sum.Positions {
		fmt.Fprintf(tw, "%s\t%s\t%g\t%s\t%s\t%s\t%+.2f%%\n",
			p.ID, p.CoinID, p.Quantity,
			portfolio.FormatUSD(p.Price),
			portfolio.FormatUSD(p.Value),
			portfolio.FormatUSD(p.PnL),
			p.PnLPct)
	}
	fmt.Fprintf(tw, "TOTAL\t\t\t\t%s\t%s\t%+.2f%%\n",
		portfolio.FormatUSD(sum.TotalValue),
		portfolio.FormatUSD(sum.PnL),
		sum.PnLPct)
	tw.Flush()
}
