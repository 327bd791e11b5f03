package market

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/erfanyeganegi/droplinked-market/internal/models"
)

// CreateProduct validates the metadata, mints the initial supply to the
// recipient and inserts the catalog attributes, all in one transaction. The
// product id comes from the asset registry on mint. Returns the new id.
func (e *Engine) CreateProduct(ctx context.Context, caller, producer models.Account, meta models.ProductMetadata) (int64, error) {
	if caller != producer {
		return 0, Authorizationf("caller %q is not the producer %q", caller, producer)
	}
	if !producer.Valid() {
		return 0, Validationf("producer must not be empty")
	}
	if meta.Price < 1 || meta.Price > maxPrice {
		return 0, Validationf("price must be within [1,%d], got %d", int64(maxPrice), meta.Price)
	}
	if meta.Commission < 0 || meta.Commission > 100 {
		return 0, Validationf("commission must be within [0,100], got %d", meta.Commission)
	}
	if !meta.Type.Valid() {
		return 0, Validationf("invalid product type %q", meta.Type)
	}
	if meta.Amount < 1 {
		return 0, Validationf("amount must be at least 1, got %d", meta.Amount)
	}
	if !meta.Recipient.Valid() {
		return 0, Validationf("recipient must not be empty")
	}
	if !meta.Destination.Valid() {
		return 0, Validationf("destination must not be empty")
	}

	var id int64
	err := e.store.Transact(ctx, func(tx Tx) error {
		var err error
		id, err = tx.MintAsset(ctx, meta.URI, meta.Amount, meta.Recipient)
		if err != nil {
			return err
		}
		return tx.InsertProduct(ctx, models.Product{
			ID:          id,
			Producer:    producer,
			Price:       meta.Price,
			Commission:  meta.Commission,
			Type:        meta.Type,
			Destination: meta.Destination,
		})
	})
	if err != nil {
		return 0, err
	}

	e.log.WithFields(logrus.Fields{
		"op":       "create_product",
		"product":  id,
		"producer": producer,
		"price":    meta.Price,
		"supply":   meta.Amount,
	}).Info("product created")
	return id, nil
}

// ListProducts returns one page of the catalog.
func (e *Engine) ListProducts(ctx context.Context, page, pageSize int) (ProductPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return e.store.ListProducts(ctx, page, pageSize)
}

// Narrow attribute getters mirror the stored per-attribute tables. Each
// reports absence explicitly instead of failing on unknown ids.

func (e *Engine) Producer(ctx context.Context, id int64) (models.Account, bool, error) {
	product, ok, err := e.Product(ctx, id)
	return product.Producer, ok, err
}

func (e *Engine) Price(ctx context.Context, id int64) (int64, bool, error) {
	product, ok, err := e.Product(ctx, id)
	return product.Price, ok, err
}

func (e *Engine) Commission(ctx context.Context, id int64) (int64, bool, error) {
	product, ok, err := e.Product(ctx, id)
	return product.Commission, ok, err
}

func (e *Engine) TypeOf(ctx context.Context, id int64) (models.ProductType, bool, error) {
	product, ok, err := e.Product(ctx, id)
	return product.Type, ok, err
}

func (e *Engine) Destination(ctx context.Context, id int64) (models.Account, bool, error) {
	product, ok, err := e.Product(ctx, id)
	return product.Destination, ok, err
}
