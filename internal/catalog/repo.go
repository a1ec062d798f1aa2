package catalog

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const productCols = `id, name, price, image, slug, amount, category, is_featured, description, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Image, &p.Slug, &p.Amount,
		&p.Category, &p.IsFeatured, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetProducts returns the subset of requested products that exist, keyed by id.
func (r *Repo) GetProducts(ctx context.Context, ids []string) (map[string]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productCols+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}
