package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erfanyeganegi/droplinked-market/internal/market"
	"github.com/erfanyeganegi/droplinked-market/internal/models"
)

func (q *queries) setting(ctx context.Context, key string) (models.Account, error) {
	var value string
	err := q.q.QueryRowContext(ctx,
		`SELECT value FROM market_settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("setting %q not seeded", key)
		}
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return models.Account(value), nil
}

func (q *queries) upsertSetting(ctx context.Context, key string, value models.Account) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO market_settings (key, value)
		 VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, string(value))
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

func (q *queries) Admin(ctx context.Context) (models.Account, error) {
	return q.setting(ctx, "admin")
}

func (q *queries) FeeDestination(ctx context.Context) (models.Account, error) {
	return q.setting(ctx, "fee_destination")
}

func (q *queries) SetAdmin(ctx context.Context, admin models.Account) error {
	return q.upsertSetting(ctx, "admin", admin)
}

func (q *queries) SetFeeDestination(ctx context.Context, destination models.Account) error {
	return q.upsertSetting(ctx, "fee_destination", destination)
}

// nextCounter advances one of the named id counters and returns the new
// value. Counters only ever move forward, so ids are never reused even when
// the row they named is deleted.
func (q *queries) nextCounter(ctx context.Context, name string) (int64, error) {
	var value int64
	err := q.q.QueryRowContext(ctx,
		`UPDATE market_counters
		 SET value = value + 1
		 WHERE name = $1
		 RETURNING value`, name).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("counter %q not seeded", name)
		}
		return 0, fmt.Errorf("advance counter %q: %w", name, err)
	}
	return value, nil
}

func (q *queries) Product(ctx context.Context, id int64) (models.Product, error) {
	product := models.Product{}

	query := `
		SELECT id, producer, price, commission, type, destination
		FROM products
		WHERE id = $1`

	err := q.q.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.Producer,
		&product.Price,
		&product.Commission,
		&product.Type,
		&product.Destination,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Product{}, market.ErrProductNotFound
		}
		return models.Product{}, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

func (q *queries) InsertProduct(ctx context.Context, product models.Product) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO products (id, producer, price, commission, type, destination, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		product.ID,
		string(product.Producer),
		product.Price,
		product.Commission,
		string(product.Type),
		string(product.Destination))
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (q *queries) ListProducts(ctx context.Context, page, pageSize int) (market.ProductPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	var total int64
	err := q.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total)
	if err != nil {
		return market.ProductPage{}, fmt.Errorf("count products: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT id, producer, price, commission, type, destination
		FROM products
		ORDER BY id
		LIMIT $1 OFFSET $2`

	rows, err := q.q.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return market.ProductPage{}, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	items := make([]models.Product, 0, pageSize)
	for rows.Next() {
		var product models.Product
		err := rows.Scan(
			&product.ID,
			&product.Producer,
			&product.Price,
			&product.Commission,
			&product.Type,
			&product.Destination,
		)
		if err != nil {
			return market.ProductPage{}, fmt.Errorf("scan product: %w", err)
		}
		items = append(items, product)
	}
	if err := rows.Err(); err != nil {
		return market.ProductPage{}, fmt.Errorf("rows error: %w", err)
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return market.ProductPage{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

func (q *queries) Asset(ctx context.Context, productID int64) (models.Asset, error) {
	asset := models.Asset{}

	query := `
		SELECT product_id, uri, supply
		FROM assets
		WHERE product_id = $1`

	err := q.q.QueryRowContext(ctx, query, productID).Scan(
		&asset.ProductID,
		&asset.URI,
		&asset.Supply,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Asset{}, market.ErrProductNotFound
		}
		return models.Asset{}, fmt.Errorf("get asset: %w", err)
	}

	return asset, nil
}

func (q *queries) Request(ctx context.Context, id int64) (models.Request, error) {
	request := models.Request{}

	query := `
		SELECT id, product_id, publisher, status
		FROM requests
		WHERE id = $1`

	err := q.q.QueryRowContext(ctx, query, id).Scan(
		&request.ID,
		&request.ProductID,
		&request.Publisher,
		&request.Status,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Request{}, market.ErrRequestNotFound
		}
		return models.Request{}, fmt.Errorf("get request: %w", err)
	}

	return request, nil
}

func (q *queries) HasActiveRequest(ctx context.Context, productID int64, publisher models.Account) (bool, error) {
	var exists bool
	err := q.q.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM active_requests
			WHERE product_id = $1 AND publisher = $2
		)`, productID, string(publisher)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active request: %w", err)
	}
	return exists, nil
}

func (q *queries) NextRequestID(ctx context.Context) (int64, error) {
	return q.nextCounter(ctx, "last_request_id")
}

func (q *queries) InsertRequest(ctx context.Context, request models.Request) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO requests (id, product_id, publisher, status, created_at)
		 VALUES ($1, $2, $3, $4, NOW())`,
		request.ID,
		request.ProductID,
		string(request.Publisher),
		string(request.Status))
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (q *queries) SetRequestStatus(ctx context.Context, id int64, status models.RequestStatus) error {
	result, err := q.q.ExecContext(ctx,
		`UPDATE requests SET status = $1 WHERE id = $2`,
		string(status), id)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return market.ErrRequestNotFound
	}

	return nil
}

func (q *queries) DeleteRequest(ctx context.Context, id int64) error {
	result, err := q.q.ExecContext(ctx,
		`DELETE FROM requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return market.ErrRequestNotFound
	}

	return nil
}

func (q *queries) AddActiveRequest(ctx context.Context, productID int64, publisher models.Account) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO active_requests (product_id, publisher)
		 VALUES ($1, $2)`,
		productID, string(publisher))
	if err != nil {
		return fmt.Errorf("add active request: %w", err)
	}
	return nil
}

// RemoveActiveRequest is idempotent; removing an absent membership row is not
// an error.
func (q *queries) RemoveActiveRequest(ctx context.Context, productID int64, publisher models.Account) error {
	_, err := q.q.ExecContext(ctx,
		`DELETE FROM active_requests
		 WHERE product_id = $1 AND publisher = $2`,
		productID, string(publisher))
	if err != nil {
		return fmt.Errorf("remove active request: %w", err)
	}
	return nil
}
