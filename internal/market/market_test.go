package market_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erfanyeganegi/droplinked-market/internal/market"
	"github.com/erfanyeganegi/droplinked-market/internal/models"
	"github.com/erfanyeganegi/droplinked-market/internal/store/memory"
)

// bootstrap starts out as both the admin and the fee destination.
const bootstrap = models.Account("droplinked")

func newEngine(t *testing.T) *market.Engine {
	t.Helper()
	return market.New(memory.New(bootstrap))
}

func mintProduct(t *testing.T, engine *market.Engine, producer models.Account, price, commission, supply int64) int64 {
	t.Helper()
	id, err := engine.CreateProduct(context.Background(), producer, producer, models.ProductMetadata{
		URI:         "ipfs://bafy/product.json",
		Price:       price,
		Amount:      supply,
		Commission:  commission,
		Type:        models.ProductTypeDigital,
		Recipient:   producer,
		Destination: producer,
	})
	require.NoError(t, err)
	return id
}

func fund(t *testing.T, engine *market.Engine, account models.Account, amount int64) {
	t.Helper()
	require.NoError(t, engine.FundAccount(context.Background(), bootstrap, account, amount))
}

func acceptedRequest(t *testing.T, engine *market.Engine, producer, publisher models.Account, productID int64) int64 {
	t.Helper()
	id, err := engine.CreateRequest(context.Background(), publisher, productID, publisher)
	require.NoError(t, err)
	_, err = engine.AcceptRequest(context.Background(), producer, id, producer)
	require.NoError(t, err)
	return id
}

func balance(t *testing.T, engine *market.Engine, account models.Account) int64 {
	t.Helper()
	got, err := engine.Balance(context.Background(), account)
	require.NoError(t, err)
	return got
}

func holding(t *testing.T, engine *market.Engine, productID int64, account models.Account) int64 {
	t.Helper()
	got, err := engine.Holding(context.Background(), productID, account)
	require.NoError(t, err)
	return got
}
