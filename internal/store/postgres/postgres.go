// Package postgres implements the market store on PostgreSQL. Every unit of
// work runs as a serializable transaction retried on conflict, so the
// all-or-nothing semantics of the protocol hold under concurrent callers.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erfanyeganegi/droplinked-market/internal/database"
	"github.com/erfanyeganegi/droplinked-market/internal/market"
	"github.com/erfanyeganegi/droplinked-market/internal/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx, letting the same
// statements serve direct reads and transactional work.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// queries carries the full statement surface; handed out as a market.Tx only
// when backed by a live *sql.Tx.
type queries struct {
	q querier
}

var _ market.Tx = (*queries)(nil)

// Store is a PostgreSQL-backed market.Store.
type Store struct {
	db *sql.DB
	r  queries
}

var _ market.Store = (*Store)(nil)

// New wraps an open database and seeds both guard singletons with the
// bootstrap identity if they are not present yet. The schema itself comes
// from the migrations.
func New(ctx context.Context, db *sql.DB, bootstrap models.Account) (*Store, error) {
	if !bootstrap.Valid() {
		return nil, fmt.Errorf("bootstrap identity must not be empty")
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO market_settings (key, value)
		 VALUES ('admin', $1), ('fee_destination', $1)
		 ON CONFLICT (key) DO NOTHING`,
		string(bootstrap))
	if err != nil {
		return nil, fmt.Errorf("seed guard singletons: %w", err)
	}

	return &Store{db: db, r: queries{q: db}}, nil
}

// Transact runs fn as one serializable transaction, retrying the whole unit
// of work on serialization conflicts. fn's error is returned unwrapped so
// protocol sentinels survive.
func (s *Store) Transact(ctx context.Context, fn func(tx market.Tx) error) error {
	return database.WithRetry(ctx, s.db, database.DefaultTxOptions(), func(sqlTx *sql.Tx) error {
		return fn(&queries{q: sqlTx})
	})
}

// The Store read surface delegates to the shared statements over the bare
// connection; mutations are reachable only through Transact.

func (s *Store) Admin(ctx context.Context) (models.Account, error) {
	return s.r.Admin(ctx)
}

func (s *Store) FeeDestination(ctx context.Context) (models.Account, error) {
	return s.r.FeeDestination(ctx)
}

func (s *Store) Product(ctx context.Context, id int64) (models.Product, error) {
	return s.r.Product(ctx, id)
}

func (s *Store) ListProducts(ctx context.Context, page, pageSize int) (market.ProductPage, error) {
	return s.r.ListProducts(ctx, page, pageSize)
}

func (s *Store) Asset(ctx context.Context, productID int64) (models.Asset, error) {
	return s.r.Asset(ctx, productID)
}

func (s *Store) Request(ctx context.Context, id int64) (models.Request, error) {
	return s.r.Request(ctx, id)
}

func (s *Store) HasActiveRequest(ctx context.Context, productID int64, publisher models.Account) (bool, error) {
	return s.r.HasActiveRequest(ctx, productID, publisher)
}

func (s *Store) Balance(ctx context.Context, account models.Account) (int64, error) {
	return s.r.Balance(ctx, account)
}

func (s *Store) Holding(ctx context.Context, productID int64, account models.Account) (int64, error) {
	return s.r.Holding(ctx, productID, account)
}
