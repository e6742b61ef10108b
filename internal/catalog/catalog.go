// Package catalog loads the product seed. The catalog is read-only at
// runtime; this is only used to bootstrap the products table.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ariefcatur/go-checkout-orders/internal/orders"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const DefaultCurrency = "BRL"

type file struct {
	Currency string  `yaml:"currency"`
	Products []entry `yaml:"products"`
}

type entry struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	Currency    string `yaml:"currency"`
}

var defaultYAML = `
currency: BRL
products:
  - id: kit-essencial
    title: Kit Essencial AquiComigo
    description: 1 Tag AquiComigo + Cabo Magnético + App Grátis
    price: "197.90"
  - id: kit-familia
    title: Kit Família AquiComigo
    description: 2 Tags AquiComigo + 2 Cabos Magnéticos + App Grátis + Suporte Prioritário
    price: "347.90"
`

// Default returns the built-in storefront catalog.
func Default() []orders.Product {
	ps, err := Parse(strings.NewReader(defaultYAML))
	if err != nil {
		panic(err)
	}
	return ps
}

func LoadFile(path string) ([]orders.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse validates ids (non-empty, unique) and prices (positive decimals).
// Product order is preserved.
func Parse(r io.Reader) ([]orders.Product, error) {
	var f file
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	currency := f.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	seen := map[string]bool{}
	out := make([]orders.Product, 0, len(f.Products))
	var errs []error
	for i, e := range f.Products {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			errs = append(errs, fmt.Errorf("product #%d: missing id", i+1))
			continue
		}
		if seen[id] {
			errs = append(errs, fmt.Errorf("product %s: duplicate id", id))
			continue
		}
		seen[id] = true

		price, err := decimal.NewFromString(strings.TrimSpace(e.Price))
		if err != nil || !price.IsPositive() {
			errs = append(errs, fmt.Errorf("product %s: price must be a positive decimal, got %q", id, e.Price))
			continue
		}
		c := e.Currency
		if c == "" {
			c = currency
		}
		out = append(out, orders.Product{
			ID:          id,
			Title:       e.Title,
			Description: e.Description,
			Price:       price,
			Currency:    strings.ToUpper(c),
		})
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("catalog: %w", errors.Join(errs...))
	}
	return out, nil
}
