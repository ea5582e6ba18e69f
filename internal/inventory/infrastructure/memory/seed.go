package memory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
)

type seedFile struct {
	Products []catalog.Product `yaml:"products"`
}

// LoadSeed reads the YAML product list STORE=memory starts from.
func LoadSeed(path string) ([]catalog.Product, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return ParseSeed(b)
}

func ParseSeed(b []byte) ([]catalog.Product, error) {
	var f seedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	seen := make(map[catalog.ProductID]bool, len(f.Products))
	for _, p := range f.Products {
		if p.ID <= 0 {
			return nil, fmt.Errorf("seed product %q: product_id must be positive", p.Name)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("seed product %d: duplicate product_id", p.ID)
		}
		if p.StockQuantity < 0 || p.Price.IsNegative() || p.CostPrice.IsNegative() {
			return nil, fmt.Errorf("seed product %d: negative stock or price", p.ID)
		}
		seen[p.ID] = true
	}
	return f.Products, nil
}
