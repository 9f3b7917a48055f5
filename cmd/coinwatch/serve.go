package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"coinwatch-go/internal/container"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run market sync and the HTTP API until SIGINT/SIGTERM",
		Action: serveAction,
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	c, err := container.New(cmd.String("config"))
	if err != nil {
		return err
	}
	if err := c.Build(); err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start coinwatch: %w", err)
	}
	log := c.Logger()

	// 非 systemd 环境下 SdNotify 返回 (false, nil)
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn("sd_notify ready failed", zap.Error(err))
	} else if ok {
		log.Info("notified systemd: ready")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", zap.String("signal", sig.String()))

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	return c.Stop()
}
