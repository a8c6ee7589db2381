package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/HexSleeves/topbot/internal/logging"
)

func main() {
	logger := logging.NewConsole()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := application.Run(ctx, os.Args); err != nil {
		stop()
		logger.Fatal("topbot failed", zap.Error(err))
	}
}
