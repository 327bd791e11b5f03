package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/erfanyeganegi/droplinked-market/internal/market"
	"github.com/erfanyeganegi/droplinked-market/internal/models"
)

func TestFundsTransfer(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	err := store.Transact(ctx, func(tx market.Tx) error {
		return tx.CreditFunds(ctx, "alice", 100)
	})
	if err != nil {
		t.Fatalf("Credit funds: %v", err)
	}

	err = store.Transact(ctx, func(tx market.Tx) error {
		return tx.TransferFunds(ctx, "alice", "bob", 60)
	})
	if err != nil {
		t.Fatalf("Transfer funds: %v", err)
	}

	alice, err := store.Balance(ctx, "alice")
	if err != nil {
		t.Fatalf("Get balance: %v", err)
	}
	if alice != 40 {
		t.Errorf("Expected alice balance 40, got %d", alice)
	}

	bob, err := store.Balance(ctx, "bob")
	if err != nil {
		t.Fatalf("Get balance: %v", err)
	}
	if bob != 60 {
		t.Errorf("Expected bob balance 60, got %d", bob)
	}

	err = store.Transact(ctx, func(tx market.Tx) error {
		return tx.TransferFunds(ctx, "alice", "bob", 41)
	})
	if err != market.ErrInsufficientFunds {
		t.Errorf("Expected insufficient funds, got: %v", err)
	}

	alice, err = store.Balance(ctx, "alice")
	if err != nil {
		t.Fatalf("Get balance: %v", err)
	}
	if alice != 40 {
		t.Errorf("Balance should remain 40 after failed transfer, got %d", alice)
	}

	// Accounts with no row read as zero.
	ghost, err := store.Balance(ctx, "nobody")
	if err != nil {
		t.Fatalf("Get balance: %v", err)
	}
	if ghost != 0 {
		t.Errorf("Expected zero balance for unknown account, got %d", ghost)
	}
}

func TestAssetTransfer(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	var productID int64
	err := store.Transact(ctx, func(tx market.Tx) error {
		id, err := tx.MintAsset(ctx, "ipfs://bafy/a.json", 3, "carol")
		productID = id
		return err
	})
	if err != nil {
		t.Fatalf("Mint asset: %v", err)
	}

	err = store.Transact(ctx, func(tx market.Tx) error {
		return tx.TransferAsset(ctx, productID, "carol", "buyer", 2)
	})
	if err != nil {
		t.Fatalf("Transfer asset: %v", err)
	}

	carol, err := store.Holding(ctx, productID, "carol")
	if err != nil {
		t.Fatalf("Get holding: %v", err)
	}
	if carol != 1 {
		t.Errorf("Expected carol holding 1, got %d", carol)
	}

	buyer, err := store.Holding(ctx, productID, "buyer")
	if err != nil {
		t.Fatalf("Get holding: %v", err)
	}
	if buyer != 2 {
		t.Errorf("Expected buyer holding 2, got %d", buyer)
	}

	err = store.Transact(ctx, func(tx market.Tx) error {
		return tx.TransferAsset(ctx, productID, "carol", "buyer", 2)
	})
	if err != market.ErrInsufficientHoldings {
		t.Errorf("Expected insufficient holdings, got: %v", err)
	}
}

func TestLedgerRejectsNegativeAmounts(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	var productID int64
	err := store.Transact(ctx, func(tx market.Tx) error {
		id, err := tx.MintAsset(ctx, "ipfs://bafy/a.json", 3, "carol")
		if err != nil {
			return err
		}
		productID = id
		return tx.CreditFunds(ctx, "alice", 100)
	})
	if err != nil {
		t.Fatalf("Seed ledger: %v", err)
	}

	err = store.Transact(ctx, func(tx market.Tx) error {
		return tx.CreditFunds(ctx, "alice", -1)
	})
	if market.CodeOf(err) != market.CodeValidation {
		t.Errorf("Expected validation error for negative credit, got: %v", err)
	}

	// A negative amount must not turn the debit into a credit.
	err = store.Transact(ctx, func(tx market.Tx) error {
		return tx.TransferFunds(ctx, "alice", "bob", -50)
	})
	if market.CodeOf(err) != market.CodeValidation {
		t.Errorf("Expected validation error for negative transfer, got: %v", err)
	}

	err = store.Transact(ctx, func(tx market.Tx) error {
		return tx.TransferAsset(ctx, productID, "carol", "buyer", -2)
	})
	if market.CodeOf(err) != market.CodeValidation {
		t.Errorf("Expected validation error for negative asset transfer, got: %v", err)
	}

	err = store.Transact(ctx, func(tx market.Tx) error {
		_, err := tx.MintAsset(ctx, "ipfs://bafy/b.json", 0, "carol")
		return err
	})
	if market.CodeOf(err) != market.CodeValidation {
		t.Errorf("Expected validation error for zero-supply mint, got: %v", err)
	}

	alice, err := store.Balance(ctx, "alice")
	if err != nil {
		t.Fatalf("Get balance: %v", err)
	}
	if alice != 100 {
		t.Errorf("Expected alice balance untouched at 100, got %d", alice)
	}

	bob, err := store.Balance(ctx, "bob")
	if err != nil {
		t.Fatalf("Get balance: %v", err)
	}
	if bob != 0 {
		t.Errorf("Expected bob balance 0, got %d", bob)
	}

	quantity, err := store.Holding(ctx, productID, "carol")
	if err != nil {
		t.Fatalf("Get holding: %v", err)
	}
	if quantity != 3 {
		t.Errorf("Expected carol holding untouched at 3, got %d", quantity)
	}
}

func TestPurchaseSettlement(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	engine := market.New(store)

	if err := engine.SetFeeDestination(ctx, "droplinked", "fees"); err != nil {
		t.Fatalf("Set fee destination: %v", err)
	}

	productID, err := engine.CreateProduct(ctx, "carol", "carol", models.ProductMetadata{
		URI:         "ipfs://bafy/product.json",
		Price:       1000,
		Amount:      100,
		Commission:  10,
		Type:        models.ProductTypeDigital,
		Recipient:   "carol",
		Destination: "carol",
	})
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	requestID, err := engine.CreateRequest(ctx, "pat", productID, "pat")
	if err != nil {
		t.Fatalf("Create request: %v", err)
	}
	if _, err := engine.AcceptRequest(ctx, "carol", requestID, "carol"); err != nil {
		t.Fatalf("Accept request: %v", err)
	}

	if err := engine.FundAccount(ctx, "droplinked", "buyer", 1000); err != nil {
		t.Fatalf("Fund buyer: %v", err)
	}

	if _, err := engine.Purchase(ctx, "buyer", "buyer", "pat", []models.CartItem{
		{ReferenceID: requestID, Affiliate: true, Amount: 1},
	}); err != nil {
		t.Fatalf("Purchase: %v", err)
	}

	expected := map[models.Account]int64{
		"buyer": 0,
		"fees":  10,
		"pat":   1,
		"carol": 989,
	}
	for account, want := range expected {
		got, err := engine.Balance(ctx, account)
		if err != nil {
			t.Fatalf("Get balance %s: %v", account, err)
		}
		if got != want {
			t.Errorf("Expected %s balance %d, got %d", account, want, got)
		}
	}

	quantity, err := engine.Holding(ctx, productID, "buyer")
	if err != nil {
		t.Fatalf("Get holding: %v", err)
	}
	if quantity != 1 {
		t.Errorf("Expected buyer holding 1, got %d", quantity)
	}
}

func TestConcurrentPurchases(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	engine := market.New(store)

	productID, err := engine.CreateProduct(ctx, "carol", "carol", models.ProductMetadata{
		URI:         "ipfs://bafy/product.json",
		Price:       1000,
		Amount:      5,
		Commission:  0,
		Type:        models.ProductTypeDigital,
		Recipient:   "carol",
		Destination: "carol",
	})
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	concurrency := 10
	for i := 0; i < concurrency; i++ {
		buyer := models.Account(fmt.Sprintf("buyer-%d", i))
		if err := engine.FundAccount(ctx, "droplinked", buyer, 1000); err != nil {
			t.Fatalf("Fund %s: %v", buyer, err)
		}
	}

	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		buyer := models.Account(fmt.Sprintf("buyer-%d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := engine.Purchase(ctx, buyer, buyer, "carol", []models.CartItem{
				{ReferenceID: productID, Amount: 1},
			})
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	soldOutCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, market.ErrInsufficientHoldings):
			soldOutCount++
		default:
			t.Logf("Unexpected error: %v", err)
		}
	}

	if successCount != 5 {
		t.Errorf("Expected 5 successful purchases, got %d", successCount)
	}
	if soldOutCount != 5 {
		t.Errorf("Expected 5 sold-out failures, got %d", soldOutCount)
	}

	remaining, err := engine.Holding(ctx, productID, "carol")
	if err != nil {
		t.Fatalf("Get holding: %v", err)
	}
	if remaining != 0 {
		t.Errorf("Expected producer holding drained, got %d", remaining)
	}

	proceeds, err := engine.Balance(ctx, "carol")
	if err != nil {
		t.Fatalf("Get balance: %v", err)
	}
	if proceeds != 5*990 {
		t.Errorf("Expected producer proceeds 4950, got %d", proceeds)
	}
}
