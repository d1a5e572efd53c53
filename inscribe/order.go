package inscribe

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/ordkit/brc20mint/chainfee"
	"github.com/ordkit/brc20mint/envelope"
	"github.com/ordkit/brc20mint/tweaks"
)

// InscribeFile is one piece of content to inscribe.
type InscribeFile struct {
	// DataURL holds the content and its type.
	DataURL string

	// Address receives the inscription.
	Address btcutil.Address

	// Parent optionally points at the inscription this one descends
	// from.
	Parent fn.Option[envelope.InscriptionID]
}

// ParentReference describes the parent inscription that is co-spent by the
// reveal transaction and forwarded to its owner with its value unchanged.
type ParentReference struct {
	// ID is the parent inscription id.
	ID envelope.InscriptionID

	// Value is the value of the output holding the parent.
	Value btcutil.Amount

	// Address is the owner address. Its type selects the spend path.
	Address btcutil.Address

	// PkScript is the output script of the parent output. Derived from
	// Address when empty.
	PkScript []byte

	// OutPoint is the output currently holding the parent.
	OutPoint wire.OutPoint

	// PubKey is the owner public key.
	PubKey *btcec.PublicKey

	// RawTx is the transaction that created OutPoint, required for
	// P2PKH and P2SH-P2WPKH owners.
	RawTx fn.Option[*wire.MsgTx]
}

// pkScript returns the parent output script.
func (p *ParentReference) pkScript() ([]byte, error) {
	if len(p.PkScript) != 0 {
		return p.PkScript, nil
	}

	return payToAddr(p.Address)
}

// Order is an inscription order. It is not modified by the assembler.
type Order struct {
	// Files holds the content to inscribe. Exactly one file is
	// supported by the assembler.
	Files []InscribeFile

	// Value is paid to the first file's address.
	Value btcutil.Amount

	// FeeRate is the reveal fee rate.
	FeeRate chainfee.SatPerVByte

	// PrivKey is the order key from which the internal and leaf keys are
	// derived.
	PrivKey *btcec.PrivateKey

	// Parent is co-spent and forwarded by the reveal transaction.
	Parent ParentReference
}

// Validate checks the order is complete and can be assembled.
func (o *Order) Validate() error {
	switch {
	case len(o.Files) == 0:
		return ErrNoFiles

	case len(o.Files) > 1:
		return fmt.Errorf("%w: got %d files", ErrMultiFileOrder,
			len(o.Files))

	case o.PrivKey == nil:
		return fmt.Errorf("%w: missing order key", tweaks.ErrInvalidKey)

	case o.Files[0].Address == nil:
		return fmt.Errorf("%w: missing destination address",
			ErrInvalidOrder)

	case o.Parent.Address == nil:
		return fmt.Errorf("%w: missing parent address", ErrInvalidOrder)

	case o.Parent.PubKey == nil:
		return fmt.Errorf("%w: missing parent public key",
			ErrInvalidOrder)

	case o.Value <= 0:
		return fmt.Errorf("%w: non positive output value %v",
			ErrInvalidOrder, o.Value)
	}

	return nil
}

// ParseOrderKey decodes the WIF encoded order key.
func ParseOrderKey(wif string) (*btcec.PrivateKey, error) {
	decoded, err := btcutil.DecodeWIF(wif)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tweaks.ErrInvalidKey, err)
	}

	return decoded.PrivKey, nil
}

// DeriveLeafKeys derives the leaf key of every file position from the order
// key, tagging it with the decimal file index.
func DeriveLeafKeys(orderKey *btcec.PrivateKey,
	numFiles int) ([]*btcec.PrivateKey, error) {

	leafKeys := make([]*btcec.PrivateKey, 0, numFiles)
	for i := 0; i < numFiles; i++ {
		leafKey, err := tweaks.TagTweakPrivKey(
			orderKey, tweaks.IndexTag(i),
		)
		if err != nil {
			return nil, fmt.Errorf("unable to derive leaf key %d: "+
				"%w", i, err)
		}

		leafKeys = append(leafKeys, leafKey)
	}

	return leafKeys, nil
}

// SpendableOutput is a confirmed or placeholder output fed to the assembler.
type SpendableOutput struct {
	// OutPoint is the output being spent.
	OutPoint wire.OutPoint

	// Value is the output value.
	Value btcutil.Amount
}
