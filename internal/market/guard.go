package market

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/erfanyeganegi/droplinked-market/internal/models"
)

// SetAdmin replaces the protocol administrator. Only the current admin may
// call it.
func (e *Engine) SetAdmin(ctx context.Context, caller, newAdmin models.Account) error {
	if !newAdmin.Valid() {
		return Validationf("new admin must not be empty")
	}

	err := e.store.Transact(ctx, func(tx Tx) error {
		if err := requireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		return tx.SetAdmin(ctx, newAdmin)
	})
	if err != nil {
		return err
	}

	e.log.WithFields(logrus.Fields{"op": "set_admin", "admin": newAdmin}).Info("admin replaced")
	return nil
}

// SetFeeDestination replaces the account receiving the platform fee leg.
// Only the current admin may call it.
func (e *Engine) SetFeeDestination(ctx context.Context, caller, destination models.Account) error {
	if !destination.Valid() {
		return Validationf("fee destination must not be empty")
	}

	err := e.store.Transact(ctx, func(tx Tx) error {
		if err := requireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		return tx.SetFeeDestination(ctx, destination)
	})
	if err != nil {
		return err
	}

	e.log.WithFields(logrus.Fields{"op": "set_fee_destination", "destination": destination}).Info("fee destination replaced")
	return nil
}

// FundAccount credits amount to an account's fund balance. It stands in for
// the external currency rail and is restricted to the admin.
func (e *Engine) FundAccount(ctx context.Context, caller, account models.Account, amount int64) error {
	if !account.Valid() {
		return Validationf("account must not be empty")
	}
	if amount < 1 {
		return Validationf("amount must be at least 1, got %d", amount)
	}

	err := e.store.Transact(ctx, func(tx Tx) error {
		if err := requireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		return tx.CreditFunds(ctx, account, amount)
	})
	if err != nil {
		return err
	}

	e.log.WithFields(logrus.Fields{"op": "fund_account", "account": account, "amount": amount}).Info("account funded")
	return nil
}

func requireAdmin(ctx context.Context, tx Tx, caller models.Account) error {
	admin, err := tx.Admin(ctx)
	if err != nil {
		return fmt.Errorf("read admin: %w", err)
	}
	if caller != admin {
		return ErrNotAdmin
	}
	return nil
}
