package order

import "context"

// Balance is one asset entry of an account snapshot.
type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}

// AccountReader fetches the current account balances.
type AccountReader interface {
	Balances(ctx context.Context) ([]Balance, error)
}

// FetchBalances returns the free balance of each symbol in order, -1 for any
// symbol missing from the account response.
func FetchBalances(ctx context.Context, account AccountReader, symbols []string) ([]float64, error) {
	balances, err := account.Balances(ctx)
	if err != nil {
		return nil, err
	}
	free := make(map[string]float64, len(balances))
	for _, b := range balances {
		free[b.Asset] = b.Free
	}

	out := make([]float64, len(symbols))
	for i, s := range symbols {
		v, ok := free[s]
		if !ok {
			v = -1
		}
		out[i] = v
	}
	return out, nil
}
