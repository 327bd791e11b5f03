package market

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/erfanyeganegi/droplinked-market/internal/models"
)

// Engine drives the marketplace protocol: access-control guard, request
// lifecycle and purchase settlement, all over one injected Store. Every
// public operation takes the caller identity explicitly; the engine never
// reads ambient identity.
type Engine struct {
	store Store
	log   *logrus.Entry
}

func New(store Store) *Engine {
	return &Engine{
		store: store,
		log:   logrus.WithField("component", "market"),
	}
}

// Admin returns the current protocol administrator.
func (e *Engine) Admin(ctx context.Context) (models.Account, error) {
	admin, err := e.store.Admin(ctx)
	if err != nil {
		return "", fmt.Errorf("read admin: %w", err)
	}
	return admin, nil
}

// FeeDestination returns the account receiving the platform fee leg.
func (e *Engine) FeeDestination(ctx context.Context) (models.Account, error) {
	destination, err := e.store.FeeDestination(ctx)
	if err != nil {
		return "", fmt.Errorf("read fee destination: %w", err)
	}
	return destination, nil
}

// Product looks up a listing. A missing id is reported as absence, not as an
// error.
func (e *Engine) Product(ctx context.Context, id int64) (models.Product, bool, error) {
	product, err := e.store.Product(ctx, id)
	if errors.Is(err, ErrProductNotFound) {
		return models.Product{}, false, nil
	}
	if err != nil {
		return models.Product{}, false, fmt.Errorf("get product %d: %w", id, err)
	}
	return product, true, nil
}

// Request looks up an affiliate request, reporting absence explicitly.
func (e *Engine) Request(ctx context.Context, id int64) (models.Request, bool, error) {
	request, err := e.store.Request(ctx, id)
	if errors.Is(err, ErrRequestNotFound) {
		return models.Request{}, false, nil
	}
	if err != nil {
		return models.Request{}, false, fmt.Errorf("get request %d: %w", id, err)
	}
	return request, true, nil
}

// Balance returns an account's fund balance. Accounts with no ledger entry
// hold zero.
func (e *Engine) Balance(ctx context.Context, account models.Account) (int64, error) {
	balance, err := e.store.Balance(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("get balance of %s: %w", account, err)
	}
	return balance, nil
}

// Holding returns how many units of a product's asset an account holds.
func (e *Engine) Holding(ctx context.Context, productID int64, account models.Account) (int64, error) {
	holding, err := e.store.Holding(ctx, productID, account)
	if err != nil {
		return 0, fmt.Errorf("get holding of %s for product %d: %w", account, productID, err)
	}
	return holding, nil
}
