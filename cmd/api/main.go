package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-checkout-orders/internal/catalog"
	"github.com/ariefcatur/go-checkout-orders/internal/checkout"
	"github.com/ariefcatur/go-checkout-orders/internal/config"
	"github.com/ariefcatur/go-checkout-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-checkout-orders/internal/kafka"
	"github.com/ariefcatur/go-checkout-orders/internal/logging"
	"github.com/ariefcatur/go-checkout-orders/internal/mercadopago"
	"github.com/ariefcatur/go-checkout-orders/internal/metrics"
	"github.com/ariefcatur/go-checkout-orders/internal/orders"
	"github.com/ariefcatur/go-checkout-orders/internal/postgres"
	"github.com/ariefcatur/go-checkout-orders/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel).With(slog.String("service", cfg.ServiceName))
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("exit", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MPAccessToken == "" {
		log.Warn("MP_ACCESS_TOKEN is empty, every checkout will fail at the gateway")
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	repo := &orders.Repo{DB: db}
	products := catalog.Default()
	if cfg.CatalogFile != "" {
		if products, err = catalog.LoadFile(cfg.CatalogFile); err != nil {
			return err
		}
	}
	n, err := repo.SeedProducts(ctx, products)
	if err != nil {
		return err
	}
	log.Info("catalog seeded", slog.Int("inserted", n), slog.Int("products", len(products)))

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	cached := &orders.CachedRepo{Store: repo, Cache: &orders.RedisOrderCache{RDB: rdb}, Log: log}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "api")

	// Gateway
	mp := mercadopago.NewClient(cfg.MPAccessToken, cfg.MPBaseURL, cfg.GatewayTimeout)
	mp.StatementDescriptor = cfg.StatementDescriptor
	mp.PictureURL = cfg.PictureURL
	mp.NotificationURL = cfg.NotificationURL
	mp.Sandbox = cfg.MPSandbox

	svc := &checkout.Service{
		Catalog:     repo,
		Orders:      cached,
		Gateway:     mp,
		Metrics:     m,
		Log:         log,
		FrontendURL: cfg.FrontendURL,
	}

	// Kafka producers (opsional)
	var producers []*kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		created := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, log)
		changed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024, log)
		created.Start(ctx)
		changed.Start(ctx)
		producers = append(producers, created, changed)
		svc.Events = &orders.KafkaEvents{Created: created, StatusChanged: changed, Service: cfg.ServiceName, Log: log}
	}

	router := httpx.NewRouter(httpx.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     m.Middleware,
		MetricsPath: metrics.Handler(reg),
	})
	h := &httpx.CheckoutHandler{
		Service:  svc,
		Products: repo,
		Orders:   cached,
		Replay:   &redisx.ReplayStore{RDB: rdb, TTL: redisx.TTLIdempotency},
		Verifier: &mercadopago.Verifier{Secret: cfg.MPWebhookSecret},
		Log:      log,
	}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(sctx)
		for _, p := range producers {
			p.Close() // tutup inbox -> flush & close writer
		}
		for _, p := range producers {
			p.WaitClosed()
		}
		return err
	})
	return g.Wait()
}
