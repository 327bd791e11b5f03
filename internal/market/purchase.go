package market

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/erfanyeganegi/droplinked-market/internal/models"
)

// The platform takes a fixed cut of every settled item. Commission shares use
// the same denominator, so the stored 0-100 commission resolves to at most 1%
// of the price; this matches the published protocol arithmetic.
const (
	platformFeeBasisPoints = 100
	basisPointDenominator  = 10000

	// maxPrice bounds listable prices so the share products below stay
	// inside int64.
	maxPrice = math.MaxInt64 / basisPointDenominator
)

// split is the three-way division of one item's price. producer gets the
// remainder, so fee + publisher + producer always reconstructs the price
// exactly.
type split struct {
	fee       int64
	publisher int64
	producer  int64
}

func splitPrice(price, commission int64, affiliate bool) (split, error) {
	if price < 1 || price > maxPrice {
		return split{}, Validationf("price must be within [1,%d], got %d", int64(maxPrice), price)
	}
	if commission < 0 || commission > 100 {
		return split{}, Validationf("commission must be within [0,100], got %d", commission)
	}

	fee := price * platformFeeBasisPoints / basisPointDenominator

	var publisher int64
	if affiliate {
		publisher = price * commission / basisPointDenominator
	}

	if publisher+fee > price {
		return split{}, Validationf("fee %d and publisher share %d exceed price %d", fee, publisher, price)
	}
	return split{fee: fee, publisher: publisher, producer: price - publisher - fee}, nil
}

// Purchase settles a cart for the purchaser. Items are processed strictly
// left to right inside one transaction: each affiliate item must reference an
// accepted request whose publisher equals the shop context, direct items
// reference a product outright, and the first failing item aborts the whole
// purchase with no transfers applied for any item.
//
// Each validated item moves four legs: the platform fee to the fee
// destination, the commission to the publisher (affiliate sales only), the
// remainder to the producer, and the purchased quantity of the asset from
// the producer to the purchaser. Returns the echoed shop identity.
func (e *Engine) Purchase(ctx context.Context, caller, purchaser, shop models.Account, cart []models.CartItem) (models.Account, error) {
	if caller != purchaser {
		return "", Authorizationf("caller %q is not the purchaser %q", caller, purchaser)
	}
	if !purchaser.Valid() {
		return "", Validationf("purchaser must not be empty")
	}
	if len(cart) == 0 {
		return "", Validationf("cart must not be empty")
	}

	var settled int64
	err := e.store.Transact(ctx, func(tx Tx) error {
		feeDestination, err := tx.FeeDestination(ctx)
		if err != nil {
			return fmt.Errorf("read fee destination: %w", err)
		}

		for i, item := range cart {
			if err := e.settleItem(ctx, tx, purchaser, shop, feeDestination, item); err != nil {
				return fmt.Errorf("cart item %d: %w", i, err)
			}
			settled++
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	e.log.WithFields(logrus.Fields{
		"op":        "purchase",
		"purchaser": purchaser,
		"shop":      shop,
		"items":     settled,
	}).Info("purchase settled")
	return shop, nil
}

// settleItem validates one cart item against the running shop context and
// executes its four transfer legs. Any failure propagates and rolls back the
// enclosing transaction.
func (e *Engine) settleItem(ctx context.Context, tx Tx, purchaser, shop, feeDestination models.Account, item models.CartItem) error {
	if item.Amount < 1 {
		return Validationf("amount must be at least 1, got %d", item.Amount)
	}

	var product models.Product
	var publisher models.Account

	if item.Affiliate {
		request, err := tx.Request(ctx, item.ReferenceID)
		if err != nil {
			return err
		}
		if request.Status != models.RequestStatusAccepted {
			return ErrRequestNotAccepted
		}
		if request.Publisher != shop {
			return Authorizationf("request %d belongs to publisher %q, not shop %q", request.ID, request.Publisher, shop)
		}
		product, err = tx.Product(ctx, request.ProductID)
		if err != nil {
			return err
		}
		publisher = request.Publisher
	} else {
		var err error
		product, err = tx.Product(ctx, item.ReferenceID)
		if err != nil {
			return err
		}
	}

	shares, err := splitPrice(product.Price, product.Commission, item.Affiliate)
	if err != nil {
		return err
	}

	if shares.fee > 0 {
		if err := tx.TransferFunds(ctx, purchaser, feeDestination, shares.fee); err != nil {
			return err
		}
	}
	if shares.publisher > 0 {
		if err := tx.TransferFunds(ctx, purchaser, publisher, shares.publisher); err != nil {
			return err
		}
	}
	if shares.producer > 0 {
		if err := tx.TransferFunds(ctx, purchaser, product.Producer, shares.producer); err != nil {
			return err
		}
	}
	return tx.TransferAsset(ctx, product.ID, product.Producer, purchaser, item.Amount)
}
