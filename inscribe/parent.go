package inscribe

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ParentSpend is the spend path of the parent input. It is implemented only
// by the four spend types in this file.
type ParentSpend interface {
	// String names the spend path.
	String() string

	// populate fills in the psbt input for the parent.
	populate(pIn *psbt.PInput)

	sealed()
}

// TaprootKeySpend spends a P2TR parent through its key path.
type TaprootKeySpend struct {
	// Utxo is the parent output.
	Utxo *wire.TxOut

	// InternalKey is the x-only owner key.
	InternalKey []byte
}

// NativeSegwitSpend spends a P2WPKH parent.
type NativeSegwitSpend struct {
	// Utxo is the parent output.
	Utxo *wire.TxOut
}

// LegacySpend spends a P2PKH parent.
type LegacySpend struct {
	// PrevTx is the transaction that created the parent output.
	PrevTx *wire.MsgTx
}

// WrappedSegwitSpend spends a P2SH-P2WPKH parent.
type WrappedSegwitSpend struct {
	// PrevTx is the transaction that created the parent output.
	PrevTx *wire.MsgTx

	// RedeemScript is the P2WPKH program of the owner key.
	RedeemScript []byte
}

func (TaprootKeySpend) sealed()    {}
func (NativeSegwitSpend) sealed()  {}
func (LegacySpend) sealed()        {}
func (WrappedSegwitSpend) sealed() {}

func (TaprootKeySpend) String() string    { return "p2tr" }
func (NativeSegwitSpend) String() string  { return "p2wpkh" }
func (LegacySpend) String() string        { return "p2pkh" }
func (WrappedSegwitSpend) String() string { return "p2sh-p2wpkh" }

func (s TaprootKeySpend) populate(pIn *psbt.PInput) {
	pIn.WitnessUtxo = s.Utxo
	pIn.TaprootInternalKey = s.InternalKey
}

func (s NativeSegwitSpend) populate(pIn *psbt.PInput) {
	pIn.WitnessUtxo = s.Utxo
}

func (s LegacySpend) populate(pIn *psbt.PInput) {
	pIn.NonWitnessUtxo = s.PrevTx
}

func (s WrappedSegwitSpend) populate(pIn *psbt.PInput) {
	pIn.NonWitnessUtxo = s.PrevTx
	pIn.RedeemScript = s.RedeemScript
}

// ClassifyParent selects the spend path of the parent from its address type.
func ClassifyParent(parent *ParentReference) (ParentSpend, error) {
	switch parent.Address.(type) {
	case *btcutil.AddressTaproot:
		pkScript, err := parent.pkScript()
		if err != nil {
			return nil, err
		}

		return TaprootKeySpend{
			Utxo: wire.NewTxOut(
				int64(parent.Value), pkScript,
			),
			InternalKey: schnorr.SerializePubKey(parent.PubKey),
		}, nil

	case *btcutil.AddressWitnessPubKeyHash:
		pkScript, err := parent.pkScript()
		if err != nil {
			return nil, err
		}

		return NativeSegwitSpend{
			Utxo: wire.NewTxOut(int64(parent.Value), pkScript),
		}, nil

	case *btcutil.AddressPubKeyHash:
		prevTx, err := parentTx(parent)
		if err != nil {
			return nil, err
		}

		return LegacySpend{PrevTx: prevTx}, nil

	case *btcutil.AddressScriptHash:
		prevTx, err := parentTx(parent)
		if err != nil {
			return nil, err
		}

		redeemScript, err := txscript.NewScriptBuilder().
			AddOp(txscript.OP_0).
			AddData(btcutil.Hash160(
				parent.PubKey.SerializeCompressed(),
			)).
			Script()
		if err != nil {
			return nil, err
		}

		return WrappedSegwitSpend{
			PrevTx:       prevTx,
			RedeemScript: redeemScript,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %T (%v)", ErrUnsupportedAddressType,
			parent.Address, parent.Address)
	}
}

// parentTx returns the raw transaction of a legacy parent after checking it
// actually created the parent outpoint.
func parentTx(parent *ParentReference) (*wire.MsgTx, error) {
	prevTx, err := parent.RawTx.UnwrapOrErr(fmt.Errorf("%w: %v owner "+
		"%v", ErrMissingParentTx, parent.OutPoint, parent.Address))
	if err != nil {
		return nil, err
	}

	if prevTx.TxHash() != parent.OutPoint.Hash {
		return nil, fmt.Errorf("%w: raw transaction %v does not "+
			"create %v", ErrMissingParentTx, prevTx.TxHash(),
			parent.OutPoint)
	}
	if int(parent.OutPoint.Index) >= len(prevTx.TxOut) {
		return nil, fmt.Errorf("%w: raw transaction %v has no output "+
			"%d", ErrMissingParentTx, prevTx.TxHash(),
			parent.OutPoint.Index)
	}

	return prevTx, nil
}

// payToAddr returns the output script paying to addr.
func payToAddr(addr btcutil.Address) ([]byte, error) {
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("unable to build script for %v: %w",
			addr, err)
	}

	return pkScript, nil
}
