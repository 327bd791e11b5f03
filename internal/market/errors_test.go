package market_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/erfanyeganegi/droplinked-market/internal/market"
)

func TestSentinelCodes(t *testing.T) {
	tests := []struct {
		err  error
		code market.Code
	}{
		{market.ErrNotAdmin, market.CodeAuthorization},
		{market.ErrProductNotFound, market.CodeNotFound},
		{market.ErrRequestNotFound, market.CodeNotFound},
		{market.ErrDuplicateRequest, market.CodeConflict},
		{market.ErrRequestNotPending, market.CodeConflict},
		{market.ErrRequestNotAccepted, market.CodeConflict},
		{market.ErrInsufficientFunds, market.CodeConflict},
		{market.ErrInsufficientHoldings, market.CodeConflict},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.code, market.CodeOf(tc.err), "sentinel %q", tc.err)
	}
}

func TestCodeOfUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("cart item 2: %w", market.ErrRequestNotFound)
	assert.Equal(t, market.CodeNotFound, market.CodeOf(wrapped))
	assert.True(t, errors.Is(wrapped, market.ErrRequestNotFound))

	// Errors from outside the protocol core carry no code.
	assert.Equal(t, market.Code(""), market.CodeOf(errors.New("boom")))
}
