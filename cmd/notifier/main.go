package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-checkout-orders/internal/config"
	kafkax "github.com/ariefcatur/go-checkout-orders/internal/kafka"
	"github.com/ariefcatur/go-checkout-orders/internal/logging"
	"github.com/ariefcatur/go-checkout-orders/internal/notify"
	"github.com/ariefcatur/go-checkout-orders/internal/orders"
	"github.com/ariefcatur/go-checkout-orders/internal/redisx"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const group = "checkout-notifier"

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel).With(slog.String("service", "notifier"))

	if len(cfg.KafkaBrokers) == 0 {
		log.Error("KAFKA_BROKERS is empty, nothing to consume")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notify.Service{
		Dedup: &redisx.Deduper{RDB: rdb, Service: "notifier"},
		Log:   log,
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range []string{orders.TopicOrderCreated, orders.TopicOrderStatusChanged} {
		c := kafkax.NewConsumer(cfg.KafkaBrokers, group, topic, 4, log)
		g.Go(func() error { return c.Start(gctx, svc.HandleEvent) })
		log.Info("notifier consuming", slog.String("topic", topic), slog.String("group", group))
	}

	if err := g.Wait(); err != nil {
		log.Error("consumer stopped", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("notifier stopped")
}
