package bybit

import (
	"context"
	"fmt"
	"net/http"
)

// AccountType represents different account types in Bybit
type AccountType string

const (
	AccountTypeUnified  AccountType = "UNIFIED"
	AccountTypeContract AccountType = "CONTRACT"
)

// GetBalance returns the coin balances of the unified trading account. An
// account without any coin entries yields an empty slice.
func (c *Client) GetBalance(ctx context.Context) ([]CoinBalance, error) {
	params := Params{
		{Key: "accountType", Value: string(AccountTypeUnified)},
	}

	result, err := c.request(ctx, "/v5/account/wallet-balance", http.MethodGet, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	var wallet walletResult
	if err := decodeResult(result, &wallet); err != nil {
		return nil, fmt.Errorf("failed to parse balance response: %w", err)
	}

	if len(wallet.List) == 0 || wallet.List[0].Coin == nil {
		return []CoinBalance{}, nil
	}
	return wallet.List[0].Coin, nil
}
