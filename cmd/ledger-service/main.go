package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"cashup.com/internal/ledger/app"
)

func main() {
	// 收到 SIGINT/SIGTERM 时取消 ctx，DB/Redis/HTTP 依次关闭
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Fatalf("ledger-service exited: %v", err)
	}
}
