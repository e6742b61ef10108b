package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const pgUniqueViolation = "23505"

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, title, description, price::text, currency_id
	                              FROM products ORDER BY position, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) GetProduct(ctx context.Context, id string) (Product, error) {
	row := r.DB.QueryRow(ctx, `SELECT id, title, description, price::text, currency_id
	                           FROM products WHERE id=$1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p     Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &price, &p.Currency); err != nil {
		return Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return Product{}, fmt.Errorf("product %s: bad price %q: %w", p.ID, price, err)
	}
	p.Price = d
	return p, nil
}

// CreateOrder inserts the whole row in one statement, so a visible order
// always carries its payer snapshot.
func (r *Repo) CreateOrder(ctx context.Context, o Order) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO orders(id, preference_id, product_id, status, payer_email, payer_name, payer_phone, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $8)
	`, o.ID, o.GatewayRef, o.ProductID, string(o.Status), o.PayerEmail, o.PayerName, o.PayerPhone, o.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, o.ID)
	}
	return err
}

const orderColumns = `id, preference_id, product_id, status, payer_email, payer_name, payer_phone,
		       status_observed_at, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		status string
		ref    *string
	)
	if err := row.Scan(&o.ID, &ref, &o.ProductID, &status, &o.PayerEmail, &o.PayerName, &o.PayerPhone,
		&o.StatusObservedAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, err
	}
	if ref != nil {
		o.GatewayRef = *ref
	}
	o.Status = Status(status)
	return o, nil
}

func (r *Repo) GetOrderByID(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	return o, err
}

// UpdateOrderStatus overwrites the status unless a newer observation was
// already applied. applied=false with a nil error means the notification was
// older than the stored one.
func (r *Repo) UpdateOrderStatus(ctx context.Context, id string, status Status, observedAt time.Time) (applied bool, err error) {
	_, applied, err = r.SetOrderStatus(ctx, id, status, observedAt)
	return applied, err
}

// SetOrderStatus is UpdateOrderStatus returning the row as committed. The
// row lock taken by UPDATE serializes concurrent writers for the same order;
// the predicate is re-checked after the lock is acquired.
func (r *Repo) SetOrderStatus(ctx context.Context, id string, status Status, observedAt time.Time) (Order, bool, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `
		UPDATE orders
		SET status=$2, status_observed_at=$3, updated_at=now()
		WHERE id=$1 AND (status_observed_at IS NULL OR status_observed_at <= $3)
		RETURNING `+orderColumns, id, string(status), observedAt.UTC()))
	if err == nil {
		return o, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Order{}, false, err
	}

	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&exists); err != nil {
		return Order{}, false, err
	}
	if !exists {
		return Order{}, false, ErrOrderNotFound
	}
	return Order{}, false, nil
}

// SeedProducts is a bootstrap helper; existing ids are left untouched.
func (r *Repo) SeedProducts(ctx context.Context, ps []Product) (inserted int, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, p := range ps {
		ct, err := tx.Exec(ctx, `
			INSERT INTO products(id, title, description, price, currency_id, position)
			VALUES ($1, $2, $3, $4::numeric, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`, p.ID, p.Title, p.Description, p.Price.String(), p.Currency, i)
		if err != nil {
			return 0, fmt.Errorf("seed %s: %w", p.ID, err)
		}
		inserted += int(ct.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}
