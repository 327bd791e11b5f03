// Package memory implements the market store on plain maps. Transactions
// take a snapshot of the whole state and restore it when the unit of work
// fails, so the all-or-nothing contract holds without a database. It backs
// the unit tests and works as a standalone single-process backend.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/erfanyeganegi/droplinked-market/internal/market"
	"github.com/erfanyeganegi/droplinked-market/internal/models"
)

type activeKey struct {
	ProductID int64
	Publisher models.Account
}

type holdingKey struct {
	ProductID int64
	Account   models.Account
}

type state struct {
	admin          models.Account
	feeDestination models.Account

	products map[int64]models.Product
	assets   map[int64]models.Asset
	requests map[int64]models.Request
	active   map[activeKey]struct{}

	balances map[models.Account]int64
	holdings map[holdingKey]int64

	lastRequestID int64
	lastAssetID   int64
}

// Store is an in-memory market.Store. One lock serializes all operations;
// a transaction holds it end to end, matching the protocol's sequential
// execution model.
type Store struct {
	mu sync.RWMutex
	st state
}

var _ market.Store = (*Store)(nil)

// New returns a store with both guard singletons bootstrapped to the given
// identity.
func New(bootstrap models.Account) *Store {
	return &Store{st: state{
		admin:          bootstrap,
		feeDestination: bootstrap,
		products:       make(map[int64]models.Product),
		assets:         make(map[int64]models.Asset),
		requests:       make(map[int64]models.Request),
		active:         make(map[activeKey]struct{}),
		balances:       make(map[models.Account]int64),
		holdings:       make(map[holdingKey]int64),
	}}
}

func (s *state) clone() state {
	out := state{
		admin:          s.admin,
		feeDestination: s.feeDestination,
		products:       make(map[int64]models.Product, len(s.products)),
		assets:         make(map[int64]models.Asset, len(s.assets)),
		requests:       make(map[int64]models.Request, len(s.requests)),
		active:         make(map[activeKey]struct{}, len(s.active)),
		balances:       make(map[models.Account]int64, len(s.balances)),
		holdings:       make(map[holdingKey]int64, len(s.holdings)),
		lastRequestID:  s.lastRequestID,
		lastAssetID:    s.lastAssetID,
	}
	for id, p := range s.products {
		out.products[id] = p
	}
	for id, a := range s.assets {
		out.assets[id] = a
	}
	for id, r := range s.requests {
		out.requests[id] = r
	}
	for k := range s.active {
		out.active[k] = struct{}{}
	}
	for acct, bal := range s.balances {
		out.balances[acct] = bal
	}
	for k, qty := range s.holdings {
		out.holdings[k] = qty
	}
	return out
}

// Transact runs fn against the live state under the write lock. On error the
// pre-transaction snapshot is restored, discarding every mutation fn made.
func (s *Store) Transact(ctx context.Context, fn func(tx market.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&tx{st: &s.st}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) Admin(ctx context.Context) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.admin, nil
}

func (s *Store) FeeDestination(ctx context.Context) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.feeDestination, nil
}

func (s *Store) Product(ctx context.Context, id int64) (models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.product(id)
}

func (s *Store) ListProducts(ctx context.Context, page, pageSize int) (market.ProductPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.listProducts(page, pageSize)
}

func (s *Store) Asset(ctx context.Context, productID int64) (models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.asset(productID)
}

func (s *Store) Request(ctx context.Context, id int64) (models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.request(id)
}

func (s *Store) HasActiveRequest(ctx context.Context, productID int64, publisher models.Account) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.st.active[activeKey{ProductID: productID, Publisher: publisher}]
	return ok, nil
}

func (s *Store) Balance(ctx context.Context, account models.Account) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.balances[account], nil
}

func (s *Store) Holding(ctx context.Context, productID int64, account models.Account) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.holdings[holdingKey{ProductID: productID, Account: account}], nil
}

// tx operates on the live state without locking; Transact already holds the
// write lock for the whole unit of work.
type tx struct {
	st *state
}

var _ market.Tx = (*tx)(nil)

func (t *tx) Admin(ctx context.Context) (models.Account, error) {
	return t.st.admin, nil
}

func (t *tx) FeeDestination(ctx context.Context) (models.Account, error) {
	return t.st.feeDestination, nil
}

func (t *tx) Product(ctx context.Context, id int64) (models.Product, error) {
	return t.st.product(id)
}

func (t *tx) ListProducts(ctx context.Context, page, pageSize int) (market.ProductPage, error) {
	return t.st.listProducts(page, pageSize)
}

func (t *tx) Asset(ctx context.Context, productID int64) (models.Asset, error) {
	return t.st.asset(productID)
}

func (t *tx) Request(ctx context.Context, id int64) (models.Request, error) {
	return t.st.request(id)
}

func (t *tx) HasActiveRequest(ctx context.Context, productID int64, publisher models.Account) (bool, error) {
	_, ok := t.st.active[activeKey{ProductID: productID, Publisher: publisher}]
	return ok, nil
}

func (t *tx) Balance(ctx context.Context, account models.Account) (int64, error) {
	return t.st.balances[account], nil
}

func (t *tx) Holding(ctx context.Context, productID int64, account models.Account) (int64, error) {
	return t.st.holdings[holdingKey{ProductID: productID, Account: account}], nil
}

func (t *tx) SetAdmin(ctx context.Context, admin models.Account) error {
	t.st.admin = admin
	return nil
}

func (t *tx) SetFeeDestination(ctx context.Context, destination models.Account) error {
	t.st.feeDestination = destination
	return nil
}

func (t *tx) MintAsset(ctx context.Context, uri string, supply int64, recipient models.Account) (int64, error) {
	if supply < 1 {
		return 0, market.Validationf("mint supply must be at least 1, got %d", supply)
	}
	t.st.lastAssetID++
	id := t.st.lastAssetID
	t.st.assets[id] = models.Asset{ProductID: id, URI: uri, Supply: supply}
	t.st.holdings[holdingKey{ProductID: id, Account: recipient}] += supply
	return id, nil
}

func (t *tx) InsertProduct(ctx context.Context, product models.Product) error {
	if _, ok := t.st.products[product.ID]; ok {
		return market.Conflictf("product %d already exists", product.ID)
	}
	t.st.products[product.ID] = product
	return nil
}

func (t *tx) NextRequestID(ctx context.Context) (int64, error) {
	t.st.lastRequestID++
	return t.st.lastRequestID, nil
}

func (t *tx) InsertRequest(ctx context.Context, request models.Request) error {
	if _, ok := t.st.requests[request.ID]; ok {
		return market.Conflictf("request %d already exists", request.ID)
	}
	t.st.requests[request.ID] = request
	return nil
}

func (t *tx) SetRequestStatus(ctx context.Context, id int64, status models.RequestStatus) error {
	request, ok := t.st.requests[id]
	if !ok {
		return market.ErrRequestNotFound
	}
	request.Status = status
	t.st.requests[id] = request
	return nil
}

func (t *tx) DeleteRequest(ctx context.Context, id int64) error {
	if _, ok := t.st.requests[id]; !ok {
		return market.ErrRequestNotFound
	}
	delete(t.st.requests, id)
	return nil
}

func (t *tx) AddActiveRequest(ctx context.Context, productID int64, publisher models.Account) error {
	t.st.active[activeKey{ProductID: productID, Publisher: publisher}] = struct{}{}
	return nil
}

// RemoveActiveRequest is idempotent: clearing an already-cleared membership
// succeeds, which is what repeated cancellation relies on.
func (t *tx) RemoveActiveRequest(ctx context.Context, productID int64, publisher models.Account) error {
	delete(t.st.active, activeKey{ProductID: productID, Publisher: publisher})
	return nil
}

func (t *tx) CreditFunds(ctx context.Context, account models.Account, amount int64) error {
	if amount < 0 {
		return market.Validationf("credit amount must not be negative, got %d", amount)
	}
	t.st.balances[account] += amount
	return nil
}

func (t *tx) TransferFunds(ctx context.Context, from, to models.Account, amount int64) error {
	if amount < 0 {
		return market.Validationf("transfer amount must not be negative, got %d", amount)
	}
	if t.st.balances[from] < amount {
		return market.ErrInsufficientFunds
	}
	t.st.balances[from] -= amount
	t.st.balances[to] += amount
	return nil
}

func (t *tx) TransferAsset(ctx context.Context, productID int64, from, to models.Account, quantity int64) error {
	if quantity < 0 {
		return market.Validationf("transfer quantity must not be negative, got %d", quantity)
	}
	fromKey := holdingKey{ProductID: productID, Account: from}
	if t.st.holdings[fromKey] < quantity {
		return market.ErrInsufficientHoldings
	}
	t.st.holdings[fromKey] -= quantity
	t.st.holdings[holdingKey{ProductID: productID, Account: to}] += quantity
	return nil
}

func (s *state) product(id int64) (models.Product, error) {
	product, ok := s.products[id]
	if !ok {
		return models.Product{}, market.ErrProductNotFound
	}
	return product, nil
}

func (s *state) asset(productID int64) (models.Asset, error) {
	asset, ok := s.assets[productID]
	if !ok {
		return models.Asset{}, market.ErrProductNotFound
	}
	return asset, nil
}

func (s *state) request(id int64) (models.Request, error) {
	request, ok := s.requests[id]
	if !ok {
		return models.Request{}, market.ErrRequestNotFound
	}
	return request, nil
}

func (s *state) listProducts(page, pageSize int) (market.ProductPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	ids := make([]int64, 0, len(s.products))
	for id := range s.products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	total := int64(len(ids))
	start := (page - 1) * pageSize
	if start > len(ids) {
		start = len(ids)
	}
	end := start + pageSize
	if end > len(ids) {
		end = len(ids)
	}

	items := make([]models.Product, 0, end-start)
	for _, id := range ids[start:end] {
		items = append(items, s.products[id])
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
