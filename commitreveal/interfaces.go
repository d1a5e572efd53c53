package commitreveal

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/ordkit/brc20mint/funding"
	"github.com/ordkit/brc20mint/openapi"
	"github.com/ordkit/brc20mint/sessionstore"
)

// DataProvider queries inscriptions and wallet outputs and broadcasts
// transactions.
type DataProvider interface {
	// InscriptionInfo returns an inscription and the output holding it.
	InscriptionInfo(ctx context.Context,
		inscriptionID string) (*openapi.InscriptionInfo, error)

	// AddressUTXOs returns the unspent outputs of an address.
	AddressUTXOs(ctx context.Context, address string) ([]openapi.UTXO,
		error)

	// PushTx broadcasts a raw transaction and returns its txid.
	PushTx(ctx context.Context, txHex string) (string, error)
}

// Funder pays a set of outputs from its own coins with an ordinary
// transaction.
type Funder interface {
	// Address returns the address holding the funder's coins.
	Address() btcutil.Address

	// Fund returns a signed transaction paying outputs in order.
	Fund(outputs []*wire.TxOut, coins []funding.Coin) (*wire.MsgTx, error)
}

// ExternalSigner signs one input of a serialized psbt.
type ExternalSigner interface {
	// SignInput returns the psbt with the input at index signed.
	SignInput(ctx context.Context, draft []byte, index int) ([]byte, error)
}

// SessionStore journals commit/reveal sessions by commitment address.
type SessionStore interface {
	// Put records a session.
	Put(session *sessionstore.Session) error

	// Fetch returns the session of a commitment address.
	Fetch(commitAddr string) (*sessionstore.Session, error)

	// MarkState advances a session.
	MarkState(commitAddr string, state sessionstore.State,
		revealTxid [32]byte) error
}
