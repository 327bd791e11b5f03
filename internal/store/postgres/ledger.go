package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erfanyeganegi/droplinked-market/internal/market"
	"github.com/erfanyeganegi/droplinked-market/internal/models"
)

func (q *queries) Balance(ctx context.Context, account models.Account) (int64, error) {
	var balance decimal.Decimal
	err := q.q.QueryRowContext(ctx,
		`SELECT balance FROM balances WHERE account = $1`,
		string(account)).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance.IntPart(), nil
}

func (q *queries) Holding(ctx context.Context, productID int64, account models.Account) (int64, error) {
	var quantity int64
	err := q.q.QueryRowContext(ctx,
		`SELECT quantity FROM holdings WHERE product_id = $1 AND account = $2`,
		productID, string(account)).Scan(&quantity)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("get holding: %w", err)
	}
	return quantity, nil
}

func (q *queries) MintAsset(ctx context.Context, uri string, supply int64, recipient models.Account) (int64, error) {
	if supply < 1 {
		return 0, market.Validationf("mint supply must be at least 1, got %d", supply)
	}

	id, err := q.nextCounter(ctx, "last_asset_id")
	if err != nil {
		return 0, err
	}

	_, err = q.q.ExecContext(ctx,
		`INSERT INTO assets (product_id, uri, supply)
		 VALUES ($1, $2, $3)`,
		id, uri, supply)
	if err != nil {
		return 0, fmt.Errorf("insert asset: %w", err)
	}

	if err := q.creditHolding(ctx, id, recipient, supply); err != nil {
		return 0, err
	}

	return id, nil
}

func (q *queries) CreditFunds(ctx context.Context, account models.Account, amount int64) error {
	if amount < 0 {
		return market.Validationf("credit amount must not be negative, got %d", amount)
	}

	_, err := q.q.ExecContext(ctx,
		`INSERT INTO balances (account, balance)
		 VALUES ($1, $2)
		 ON CONFLICT (account) DO UPDATE SET balance = balances.balance + EXCLUDED.balance`,
		string(account), decimal.NewFromInt(amount))
	if err != nil {
		return fmt.Errorf("credit funds: %w", err)
	}
	return nil
}

// TransferFunds debits with a conditional update so an account can never go
// negative; zero rows affected means the debit side could not cover the
// amount.
func (q *queries) TransferFunds(ctx context.Context, from, to models.Account, amount int64) error {
	if amount < 0 {
		return market.Validationf("transfer amount must not be negative, got %d", amount)
	}

	result, err := q.q.ExecContext(ctx,
		`UPDATE balances
		 SET balance = balance - $1
		 WHERE account = $2
		   AND balance >= $1`,
		decimal.NewFromInt(amount), string(from))
	if err != nil {
		return fmt.Errorf("debit funds: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return market.ErrInsufficientFunds
	}

	return q.CreditFunds(ctx, to, amount)
}

func (q *queries) creditHolding(ctx context.Context, productID int64, account models.Account, quantity int64) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO holdings (product_id, account, quantity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (product_id, account) DO UPDATE SET quantity = holdings.quantity + EXCLUDED.quantity`,
		productID, string(account), quantity)
	if err != nil {
		return fmt.Errorf("credit holding: %w", err)
	}
	return nil
}

func (q *queries) TransferAsset(ctx context.Context, productID int64, from, to models.Account, quantity int64) error {
	if quantity < 0 {
		return market.Validationf("transfer quantity must not be negative, got %d", quantity)
	}

	result, err := q.q.ExecContext(ctx,
		`UPDATE holdings
		 SET quantity = quantity - $1
		 WHERE product_id = $2
		   AND account = $3
		   AND quantity >= $1`,
		quantity, productID, string(from))
	if err != nil {
		return fmt.Errorf("debit holding: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return market.ErrInsufficientHoldings
	}

	return q.creditHolding(ctx, productID, to, quantity)
}
