// Command checkoutctl is the operator CLI for the checkout database and for
// replaying payment notifications by hand.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ariefcatur/go-checkout-orders/internal/catalog"
	"github.com/ariefcatur/go-checkout-orders/internal/checkout"
	"github.com/ariefcatur/go-checkout-orders/internal/config"
	kafkax "github.com/ariefcatur/go-checkout-orders/internal/kafka"
	"github.com/ariefcatur/go-checkout-orders/internal/logging"
	"github.com/ariefcatur/go-checkout-orders/internal/mercadopago"
	"github.com/ariefcatur/go-checkout-orders/internal/orders"
	"github.com/ariefcatur/go-checkout-orders/internal/postgres"
	"github.com/ariefcatur/go-checkout-orders/internal/redisx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type app struct {
	cfg config.Config
	log *slog.Logger

	// openReconcile builds the stores reconcile writes through; nil means
	// the same Postgres, Redis cache and Kafka wiring as cmd/api.
	openReconcile func(ctx context.Context) (reconcileDeps, error)
}

// reconcileDeps is what HandlePaymentNotification needs besides the gateway.
type reconcileDeps struct {
	Orders checkout.OrderStore
	Events checkout.EventSink
	Close  func()
}

func main() {
	_ = godotenv.Load()

	a := &app{cfg: config.Load()}
	a.log = logging.New(a.cfg.LogLevel).With(slog.String("service", "checkoutctl"))

	if err := a.rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "checkoutctl",
		Short:        "Operate the checkout orders database",
		SilenceUsage: true,
	}
	root.AddCommand(a.migrateCmd(), a.seedCmd(), a.orderCmd(), a.reconcileCmd())
	return root
}

func (a *app) connect(ctx context.Context) (*pgxpool.Pool, error) {
	return postgres.Connect(ctx, a.cfg.PostgresDSN)
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			if err := postgres.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func (a *app) seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert catalog products that are not in the database yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			products := catalog.Default()
			if file != "" {
				var err error
				if products, err = catalog.LoadFile(file); err != nil {
					return err
				}
			}
			db, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			if err := postgres.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			n, err := (&orders.Repo{DB: db}).SeedProducts(cmd.Context(), products)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted %d of %d products\n", n, len(products))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "catalog YAML file (default: built-in catalog)")
	return cmd
}

func (a *app) orderCmd() *cobra.Command {
	order := &cobra.Command{Use: "order", Short: "Inspect orders"}
	order.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Print one order as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			o, err := (&orders.Repo{DB: db}).GetOrderByID(cmd.Context(), args[0])
			if errors.Is(err, orders.ErrOrderNotFound) {
				return fmt.Errorf("order %s not found", args[0])
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(o)
		},
	})
	return order
}

// reconcileCmd runs the webhook path for one payment id. Used when a
// notification was lost or acknowledged while the provider was unreachable.
func (a *app) reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <paymentId>",
		Short: "Fetch a payment from Mercado Pago and apply its status to the order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			mp := mercadopago.NewClient(a.cfg.MPAccessToken, a.cfg.MPBaseURL, a.cfg.GatewayTimeout)
			if _, err := mp.FetchPayment(ctx, args[0]); err != nil {
				if mercadopago.IsNotFound(err) {
					return fmt.Errorf("payment %s not found at Mercado Pago", args[0])
				}
				return err
			}

			open := a.openReconcile
			if open == nil {
				open = a.liveReconcileDeps
			}
			deps, err := open(ctx)
			if err != nil {
				return err
			}
			defer deps.Close()

			svc := &checkout.Service{Orders: deps.Orders, Gateway: mp, Events: deps.Events, Log: a.log}
			res, err := svc.HandlePaymentNotification(ctx, checkout.Notification{Topic: checkout.TopicPayment, PaymentID: args[0]})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "payment=%s order=%s status=%s outcome=%s\n",
				res.PaymentID, res.OrderID, res.Status, res.Outcome)
			return nil
		},
	}
}

// liveReconcileDeps writes through the order cache and publishes status
// changes, so a reconciled order looks the same as one fixed by a webhook.
func (a *app) liveReconcileDeps(ctx context.Context) (reconcileDeps, error) {
	db, err := a.connect(ctx)
	if err != nil {
		return reconcileDeps{}, err
	}
	rdb := redisx.New(a.cfg.RedisAddr)
	deps := reconcileDeps{
		Orders: &orders.CachedRepo{
			Store: &orders.Repo{DB: db},
			Cache: &orders.RedisOrderCache{RDB: rdb},
			Log:   a.log,
		},
	}

	var changed *kafkax.Producer
	if len(a.cfg.KafkaBrokers) > 0 {
		// context sendiri: Close di bawah yang menutup producer, bukan cancel
		changed = kafkax.NewProducer(a.cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 16, a.log)
		changed.Start(context.WithoutCancel(ctx))
		deps.Events = &orders.KafkaEvents{StatusChanged: changed, Service: "checkoutctl", Log: a.log}
	}

	deps.Close = func() {
		if changed != nil {
			changed.Close()
			changed.WaitClosed()
		}
		_ = rdb.Close()
		db.Close()
	}
	return deps, nil
}
