package market

import (
	"context"

	"github.com/erfanyeganegi/droplinked-market/internal/models"
)

// Reader is the read-only half of the store. Lookups for missing rows return
// the package sentinels (ErrProductNotFound, ErrRequestNotFound); the engine
// translates those into explicit absence on its public read surface.
type Reader interface {
	Admin(ctx context.Context) (models.Account, error)
	FeeDestination(ctx context.Context) (models.Account, error)

	Product(ctx context.Context, id int64) (models.Product, error)
	// ListProducts pages the catalog in id order. Page and pageSize below 1
	// are clamped to 1.
	ListProducts(ctx context.Context, page, pageSize int) (ProductPage, error)
	Asset(ctx context.Context, productID int64) (models.Asset, error)

	Request(ctx context.Context, id int64) (models.Request, error)
	HasActiveRequest(ctx context.Context, productID int64, publisher models.Account) (bool, error)

	Balance(ctx context.Context, account models.Account) (int64, error)
	Holding(ctx context.Context, productID int64, account models.Account) (int64, error)
}

// Tx adds the exclusive-write methods. A Tx is only reachable through
// Store.Transact, so mutation access stays restricted to the engine; no other
// component can write catalog or ledger state.
type Tx interface {
	Reader

	SetAdmin(ctx context.Context, admin models.Account) error
	SetFeeDestination(ctx context.Context, destination models.Account) error

	// MintAsset allocates the next product id, records the asset registry
	// entry and credits the full supply to recipient, atomically with the
	// rest of the transaction.
	MintAsset(ctx context.Context, uri string, supply int64, recipient models.Account) (int64, error)
	InsertProduct(ctx context.Context, product models.Product) error

	NextRequestID(ctx context.Context) (int64, error)
	InsertRequest(ctx context.Context, request models.Request) error
	SetRequestStatus(ctx context.Context, id int64, status models.RequestStatus) error
	DeleteRequest(ctx context.Context, id int64) error
	AddActiveRequest(ctx context.Context, productID int64, publisher models.Account) error
	RemoveActiveRequest(ctx context.Context, productID int64, publisher models.Account) error

	// CreditFunds adds amount to an account's fund balance. Negative
	// amounts are rejected.
	CreditFunds(ctx context.Context, account models.Account, amount int64) error
	// TransferFunds moves amount between fund balances. Negative amounts
	// are rejected; it fails with ErrInsufficientFunds when from cannot
	// cover the amount.
	TransferFunds(ctx context.Context, from, to models.Account, amount int64) error
	// TransferAsset moves quantity units of a product's asset between
	// holdings. Negative quantities are rejected; it fails with
	// ErrInsufficientHoldings when from does not hold enough.
	TransferAsset(ctx context.Context, productID int64, from, to models.Account, quantity int64) error
}

// Store is the persistence collaborator injected into the engine. Transact
// runs fn as one atomic unit of work: every mutation made through the Tx
// commits together or not at all, and a non-nil error from fn discards all of
// them. Operations are serialized; the engine never nests transactions.
type Store interface {
	Reader
	Transact(ctx context.Context, fn func(tx Tx) error) error
}

// ProductPage is one page of catalog listings.
type ProductPage struct {
	Items      []models.Product `json:"items"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}
