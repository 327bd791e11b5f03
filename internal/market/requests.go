package market

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/erfanyeganegi/droplinked-market/internal/models"
)

// CreateRequest opens a pending affiliate request by publisher against a
// product. At most one active request may exist per (product, publisher)
// pair; a second one fails with a conflict until the first is cancelled or
// rejected. Returns the new request id.
func (e *Engine) CreateRequest(ctx context.Context, caller models.Account, productID int64, publisher models.Account) (int64, error) {
	if caller != publisher {
		return 0, Authorizationf("caller %q is not the publisher %q", caller, publisher)
	}
	if !publisher.Valid() {
		return 0, Validationf("publisher must not be empty")
	}

	var id int64
	err := e.store.Transact(ctx, func(tx Tx) error {
		if _, err := tx.Product(ctx, productID); err != nil {
			return err
		}

		active, err := tx.HasActiveRequest(ctx, productID, publisher)
		if err != nil {
			return err
		}
		if active {
			return ErrDuplicateRequest
		}

		id, err = tx.NextRequestID(ctx)
		if err != nil {
			return err
		}
		if err := tx.InsertRequest(ctx, models.Request{
			ID:        id,
			ProductID: productID,
			Publisher: publisher,
			Status:    models.RequestStatusPending,
		}); err != nil {
			return err
		}
		return tx.AddActiveRequest(ctx, productID, publisher)
	})
	if err != nil {
		return 0, err
	}

	e.log.WithFields(logrus.Fields{
		"op":        "create_request",
		"request":   id,
		"product":   productID,
		"publisher": publisher,
	}).Info("request created")
	return id, nil
}

// CancelRequest withdraws a pending request. Only the publisher who opened it
// may cancel, and only while it is pending. Cancellation clears the active
// membership entry so the pair may request again; the request record itself
// is retained.
func (e *Engine) CancelRequest(ctx context.Context, caller models.Account, requestID int64, publisher models.Account) (int64, error) {
	err := e.store.Transact(ctx, func(tx Tx) error {
		request, err := tx.Request(ctx, requestID)
		if err != nil {
			return err
		}
		if caller != publisher || caller != request.Publisher {
			return Authorizationf("caller %q is not the publisher of request %d", caller, requestID)
		}
		if request.Status != models.RequestStatusPending {
			return ErrRequestNotPending
		}
		return tx.RemoveActiveRequest(ctx, request.ProductID, request.Publisher)
	})
	if err != nil {
		return 0, err
	}

	e.log.WithFields(logrus.Fields{"op": "cancel_request", "request": requestID}).Info("request cancelled")
	return requestID, nil
}

// AcceptRequest marks a request accepted. Only the producer of the
// referenced product may accept. Accepting an already-accepted request is a
// no-op success.
func (e *Engine) AcceptRequest(ctx context.Context, caller models.Account, requestID int64, producer models.Account) (int64, error) {
	err := e.store.Transact(ctx, func(tx Tx) error {
		request, err := tx.Request(ctx, requestID)
		if err != nil {
			return err
		}
		product, err := tx.Product(ctx, request.ProductID)
		if err != nil {
			return err
		}
		if caller != producer || caller != product.Producer {
			return Authorizationf("caller %q is not the producer of product %d", caller, request.ProductID)
		}
		return tx.SetRequestStatus(ctx, requestID, models.RequestStatusAccepted)
	})
	if err != nil {
		return 0, err
	}

	e.log.WithFields(logrus.Fields{"op": "accept_request", "request": requestID}).Info("request accepted")
	return requestID, nil
}

// RejectRequest removes a request entirely and clears its active membership
// entry. Only the producer of the referenced product may reject.
func (e *Engine) RejectRequest(ctx context.Context, caller models.Account, requestID int64, producer models.Account) (int64, error) {
	err := e.store.Transact(ctx, func(tx Tx) error {
		request, err := tx.Request(ctx, requestID)
		if err != nil {
			return err
		}
		product, err := tx.Product(ctx, request.ProductID)
		if err != nil {
			return err
		}
		if caller != producer || caller != product.Producer {
			return Authorizationf("caller %q is not the producer of product %d", caller, request.ProductID)
		}
		if err := tx.DeleteRequest(ctx, requestID); err != nil {
			return err
		}
		return tx.RemoveActiveRequest(ctx, request.ProductID, request.Publisher)
	})
	if err != nil {
		return 0, err
	}

	e.log.WithFields(logrus.Fields{"op": "reject_request", "request": requestID}).Info("request rejected")
	return requestID, nil
}
