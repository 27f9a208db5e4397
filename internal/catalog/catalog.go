// Package catalog provides read and admin access to the product catalog.
// The search pipeline only reads products; the admin surface writes them and
// notifies the semantic index so embeddings stay in sync.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/thanhph/mobistore/internal/storage"
)

// Category is the product category. The store sells phones and accessories.
type Category string

const (
	CategoryPhone     Category = "phone"
	CategoryAccessory Category = "accessory"
)

// ParseCategory maps a raw string to a known Category, or "" if unknown.
func ParseCategory(s string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryPhone:
		return CategoryPhone
	case CategoryAccessory:
		return CategoryAccessory
	}
	return ""
}

// Product is a catalog entry. Prices are integer VND.
type Product struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Brand         string   `json:"brand"`
	Category      Category `json:"category"`
	Price         int64    `json:"price"`
	IsSale        bool     `json:"is_sale"`
	SalePrice     int64    `json:"sale_price,omitempty"`
	Description   string   `json:"description"`
	IsActive      bool     `json:"is_active"`
	StockQuantity int      `json:"stock_quantity"`
}

// EffectivePrice returns the sale price when the product is on sale, else the
// list price. Price sorting uses this value.
func (p Product) EffectivePrice() int64 {
	if p.IsSale && p.SalePrice > 0 {
		return p.SalePrice
	}
	return p.Price
}

// Filter restricts a catalog query. Zero-value fields are not applied.
// Results are always restricted to active products and returned most recent
// first (descending id, matching catalog insertion order).
type Filter struct {
	Brand       string   // case-insensitive substring match on brand
	Category    Category // exact match
	MinPrice    *int64   // inclusive
	MaxPrice    *int64   // inclusive
	IDs         []int64  // restrict to this id set when non-nil
	NameLike    string   // case-insensitive substring match on name
	KeywordLike string   // case-insensitive substring match on name or description
	Limit       int
}

// Store reads and writes products in the catalog table.
type Store struct {
	db *sql.DB
}

// NewStore wraps an existing *sql.DB for catalog operations.
// The products table must already exist (created via migrations).
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const productColumns = `id, name, brand, category, price, is_sale, sale_price, description, is_active, stock_quantity`

// Get returns a single product by id regardless of its active flag.
func (s *Store) Get(ctx context.Context, id int64) (Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return Product{}, storage.ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("getting product %d: %w", id, err)
	}
	return p, nil
}

// ListActive returns every active product, most recent first.
func (s *Store) ListActive(ctx context.Context) ([]Product, error) {
	return s.Filter(ctx, Filter{})
}

// Filter executes a filtered catalog query.
func (s *Store) Filter(ctx context.Context, f Filter) ([]Product, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + productColumns + ` FROM products WHERE is_active = 1`)
	var args []any

	if f.Brand != "" {
		sb.WriteString(` AND LOWER(brand) LIKE '%' || LOWER(?) || '%'`)
		args = append(args, f.Brand)
	}
	if f.Category != "" {
		sb.WriteString(` AND category = ?`)
		args = append(args, string(f.Category))
	}
	if f.MinPrice != nil {
		sb.WriteString(` AND price >= ?`)
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		sb.WriteString(` AND price <= ?`)
		args = append(args, *f.MaxPrice)
	}
	if f.IDs != nil {
		if len(f.IDs) == 0 {
			return nil, nil
		}
		sb.WriteString(` AND id IN (?` + strings.Repeat(",?", len(f.IDs)-1) + `)`)
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	if f.NameLike != "" {
		sb.WriteString(` AND LOWER(name) LIKE '%' || LOWER(?) || '%'`)
		args = append(args, f.NameLike)
	}
	if f.KeywordLike != "" {
		sb.WriteString(` AND (LOWER(name) LIKE '%' || LOWER(?) || '%' OR LOWER(description) LIKE '%' || LOWER(?) || '%')`)
		args = append(args, f.KeywordLike, f.KeywordLike)
	}

	sb.WriteString(` ORDER BY id DESC`)
	if f.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("filtering products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Brands returns the distinct brand names of active products.
func (s *Store) Brands(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT brand FROM products WHERE is_active = 1 ORDER BY brand`)
	if err != nil {
		return nil, fmt.Errorf("listing brands: %w", err)
	}
	defer rows.Close()

	var brands []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

// Upsert inserts the product, or updates it in place when ID is set and
// already present. On insert the assigned id is written back to p.
func (s *Store) Upsert(ctx context.Context, p *Product) error {
	var salePrice any
	if p.IsSale {
		salePrice = p.SalePrice
	}

	if p.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO products (name, brand, category, price, is_sale, sale_price, description, is_active, stock_quantity)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Name, p.Brand, string(p.Category), p.Price, p.IsSale, salePrice, p.Description, p.IsActive, p.StockQuantity,
		)
		if err != nil {
			return fmt.Errorf("inserting product: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading inserted id: %w", err)
		}
		p.ID = id
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, brand, category, price, is_sale, sale_price, description, is_active, stock_quantity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, brand = excluded.brand, category = excluded.category,
			price = excluded.price, is_sale = excluded.is_sale, sale_price = excluded.sale_price,
			description = excluded.description, is_active = excluded.is_active,
			stock_quantity = excluded.stock_quantity`,
		p.ID, p.Name, p.Brand, string(p.Category), p.Price, p.IsSale, salePrice, p.Description, p.IsActive, p.StockQuantity,
	)
	if err != nil {
		return fmt.Errorf("upserting product %d: %w", p.ID, err)
	}
	return nil
}

// Delete removes a product by id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting product %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Recommendations returns up to limit companion products for p: accessories
// (same brand first) for a phone, same-brand products for an accessory.
func (s *Store) Recommendations(ctx context.Context, p Product, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 4
	}

	if p.Category == CategoryPhone {
		recs, err := s.Filter(ctx, Filter{Category: CategoryAccessory, Brand: p.Brand, Limit: limit})
		if err != nil {
			return nil, err
		}
		if len(recs) >= limit {
			return recs[:limit], nil
		}
		seen := make(map[int64]bool, len(recs))
		for _, r := range recs {
			seen[r.ID] = true
		}
		others, err := s.Filter(ctx, Filter{Category: CategoryAccessory, Limit: limit * 2})
		if err != nil {
			return nil, err
		}
		for _, o := range others {
			if len(recs) >= limit {
				break
			}
			if !seen[o.ID] {
				recs = append(recs, o)
				seen[o.ID] = true
			}
		}
		return recs, nil
	}

	recs, err := s.Filter(ctx, Filter{Brand: p.Brand, Limit: limit + 1})
	if err != nil {
		return nil, err
	}
	out := recs[:0]
	for _, r := range recs {
		if r.ID != p.ID {
			out = append(out, r)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(r rowScanner) (Product, error) {
	var p Product
	var category string
	var salePrice sql.NullInt64
	err := r.Scan(&p.ID, &p.Name, &p.Brand, &category, &p.Price, &p.IsSale, &salePrice, &p.Description, &p.IsActive, &p.StockQuantity)
	if err != nil {
		return Product{}, err
	}
	p.Category = Category(category)
	if salePrice.Valid {
		p.SalePrice = salePrice.Int64
	}
	return p, nil
}
