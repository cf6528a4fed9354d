// Command notifier consumes auth events from RabbitMQ and appends one line
// per event to a rotating file. It stands in for a mail sender during
// development: password reset links show up in the file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/iliyamo/auth-service/internal/config"
	"github.com/iliyamo/auth-service/internal/logger"
	"github.com/iliyamo/auth-service/internal/queue"
)

func main() {
	cfg, err := config.LoadNotifier()
	if err != nil {
		fmt.Fprintln(os.Stderr, "notifier:", err)
		os.Exit(1)
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		fmt.Fprintln(os.Stderr, "notifier:", err)
		os.Exit(1)
	}
	defer log.Sync()

	sink := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	defer sink.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("notifier started", zap.String("file", cfg.File))
	if err := queue.NewConsumer(cfg.RabbitMQURL, queue.LineWriter(sink), log).Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("consumer stopped", zap.Error(err))
		os.Exit(1)
	}
	log.Info("notifier stopped")
}
