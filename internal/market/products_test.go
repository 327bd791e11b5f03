package market_test

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erfanyeganegi/droplinked-market/internal/market"
	"github.com/erfanyeganegi/droplinked-market/internal/models"
)

func TestCreateProduct(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	id, err := engine.CreateProduct(ctx, "carol", "carol", models.ProductMetadata{
		URI:         "ipfs://bafy/poster.json",
		Price:       1000,
		Amount:      25,
		Commission:  10,
		Type:        models.ProductTypePrintOnDemand,
		Recipient:   "carol",
		Destination: "carol-payout",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	product, ok, err := engine.Product(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.Account("carol"), product.Producer)
	assert.Equal(t, int64(1000), product.Price)
	assert.Equal(t, int64(10), product.Commission)
	assert.Equal(t, models.ProductTypePrintOnDemand, product.Type)
	assert.Equal(t, models.Account("carol-payout"), product.Destination)

	// The initial supply lands with the recipient.
	assert.Equal(t, int64(25), holding(t, engine, id, "carol"))
}

func TestCreateProductAssignsSequentialIDs(t *testing.T) {
	engine := newEngine(t)

	first := mintProduct(t, engine, "carol", 1000, 10, 100)
	second := mintProduct(t, engine, "dave", 500, 0, 100)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
}

func TestCreateProductValidation(t *testing.T) {
	valid := models.ProductMetadata{
		URI:         "ipfs://bafy/product.json",
		Price:       1000,
		Amount:      10,
		Commission:  10,
		Type:        models.ProductTypeDigital,
		Recipient:   "carol",
		Destination: "carol",
	}

	tests := []struct {
		name     string
		caller   models.Account
		producer models.Account
		mutate   func(*models.ProductMetadata)
		code     market.Code
	}{
		{
			name:   "caller is not the producer",
			caller: "mallory", producer: "carol",
			mutate: func(*models.ProductMetadata) {},
			code:   market.CodeAuthorization,
		},
		{
			name:   "zero price",
			caller: "carol", producer: "carol",
			mutate: func(m *models.ProductMetadata) { m.Price = 0 },
			code:   market.CodeValidation,
		},
		{
			name:   "oversized price",
			caller: "carol", producer: "carol",
			mutate: func(m *models.ProductMetadata) { m.Price = math.MaxInt64/10000 + 1 },
			code:   market.CodeValidation,
		},
		{
			name:   "negative commission",
			caller: "carol", producer: "carol",
			mutate: func(m *models.ProductMetadata) { m.Commission = -1 },
			code:   market.CodeValidation,
		},
		{
			name:   "commission above 100",
			caller: "carol", producer: "carol",
			mutate: func(m *models.ProductMetadata) { m.Commission = 101 },
			code:   market.CodeValidation,
		},
		{
			name:   "unknown type",
			caller: "carol", producer: "carol",
			mutate: func(m *models.ProductMetadata) { m.Type = "service" },
			code:   market.CodeValidation,
		},
		{
			name:   "zero supply",
			caller: "carol", producer: "carol",
			mutate: func(m *models.ProductMetadata) { m.Amount = 0 },
			code:   market.CodeValidation,
		},
		{
			name:   "empty recipient",
			caller: "carol", producer: "carol",
			mutate: func(m *models.ProductMetadata) { m.Recipient = "" },
			code:   market.CodeValidation,
		},
		{
			name:   "empty destination",
			caller: "carol", producer: "carol",
			mutate: func(m *models.ProductMetadata) { m.Destination = "" },
			code:   market.CodeValidation,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine := newEngine(t)

			meta := valid
			tc.mutate(&meta)

			_, err := engine.CreateProduct(context.Background(), tc.caller, tc.producer, meta)
			require.Error(t, err)
			assert.Equal(t, tc.code, market.CodeOf(err))

			// Rejected creations leave nothing behind.
			_, ok, err := engine.Product(context.Background(), 1)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestProductAttributeGetters(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	id, err := engine.CreateProduct(ctx, "carol", "carol", models.ProductMetadata{
		URI:         "ipfs://bafy/product.json",
		Price:       1200,
		Amount:      5,
		Commission:  42,
		Type:        models.ProductTypePhysical,
		Recipient:   "carol",
		Destination: "carol-payout",
	})
	require.NoError(t, err)

	producer, ok, err := engine.Producer(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.Account("carol"), producer)

	price, ok, err := engine.Price(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1200), price)

	commission, ok, err := engine.Commission(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(42), commission)

	productType, ok, err := engine.TypeOf(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.ProductTypePhysical, productType)

	destination, ok, err := engine.Destination(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.Account("carol-payout"), destination)
}

func TestProductGettersReportAbsence(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	_, ok, err := engine.Product(ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = engine.Price(ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListProducts(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		producer := models.Account(fmt.Sprintf("producer-%d", i))
		mintProduct(t, engine, producer, 100, 0, 10)
	}

	page1, err := engine.ListProducts(ctx, 1, 20)
	require.NoError(t, err)
	assert.Len(t, page1.Items, 20)
	assert.Equal(t, int64(25), page1.Total)
	assert.Equal(t, 2, page1.TotalPages)
	assert.Equal(t, int64(1), page1.Items[0].ID)

	page2, err := engine.ListProducts(ctx, 2, 20)
	require.NoError(t, err)
	assert.Len(t, page2.Items, 5)
	assert.Equal(t, int64(21), page2.Items[0].ID)

	// Out-of-range parameters fall back to the defaults.
	fallback, err := engine.ListProducts(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, fallback.Page)
	assert.Equal(t, 20, fallback.PageSize)
}
