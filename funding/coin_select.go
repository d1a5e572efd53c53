package funding

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// ErrInsufficientFunds is a type matching the error interface which is
// returned when coin selection for the commit transaction fails due to having
// an insufficient amount of spendable funds.
type ErrInsufficientFunds struct {
	amountAvailable btcutil.Amount
	amountSelected  btcutil.Amount
}

// Error returns a human-readable string describing the error.
func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("not enough outputs to fund commit transaction, "+
		"need %v only have %v available", e.amountSelected,
		e.amountAvailable)
}

// Coin is a wallet output that may fund a commit transaction.
type Coin struct {
	// OutPoint is the output.
	OutPoint wire.OutPoint

	// Value is the output value.
	Value btcutil.Amount

	// PkScript is the output script.
	PkScript []byte

	// Inscribed is set when the output carries inscriptions. Such
	// outputs are never spent as fee money.
	Inscribed bool
}

// selectInputs selects the largest coins first until amt is covered. The
// total of the selected coins is returned so the caller can handle change
// and fees.
func selectInputs(amt btcutil.Amount,
	coins []Coin) (btcutil.Amount, []Coin, error) {

	arranged := make([]Coin, len(coins))
	copy(arranged, coins)
	sort.SliceStable(arranged, func(i, j int) bool {
		return arranged[i].Value > arranged[j].Value
	})

	var (
		total    btcutil.Amount
		selected []Coin
	)
	for _, coin := range arranged {
		if total >= amt {
			break
		}

		total += coin.Value
		selected = append(selected, coin)
	}

	if total < amt {
		return 0, nil, &ErrInsufficientFunds{
			amountAvailable: total,
			amountSelected:  amt,
		}
	}

	return total, selected, nil
}
