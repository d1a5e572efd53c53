package inscribe

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/ordkit/brc20mint/envelope"
	"github.com/stretchr/testify/require"
)

const (
	helloDataURL = "data:text/plain;charset=utf-8;base64,aGVsbG8="

	parentInscription = "245b6d52838e18317338615b82808da81fd1a0a85ec0d9" +
		"988a8247517650dd0ai0"

	parentValue = btcutil.Amount(600)
)

var (
	testParams = &chaincfg.MainNetParams

	orderKey, _  = btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x31}, 32))
	parentKey, _ = btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x42}, 32))
	destKey, _   = btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x53}, 32))
)

type addrType uint8

const (
	addrP2TR addrType = iota
	addrP2WPKH
	addrP2PKH
	addrP2SH
	addrP2WSH
)

// taprootAddr returns the BIP-86 address of a key.
func taprootAddr(t testing.TB, key *btcec.PrivateKey) *btcutil.AddressTaproot {
	t.Helper()

	outputKey := txscript.ComputeTaprootOutputKey(key.PubKey(), nil)
	addr, err := btcutil.NewAddressTaproot(
		schnorr.SerializePubKey(outputKey), testParams,
	)
	require.NoError(t, err)

	return addr
}

// parentAddr returns an address of the requested type owned by parentKey.
func parentAddr(t testing.TB, typ addrType) btcutil.Address {
	t.Helper()

	pubKeyHash := btcutil.Hash160(parentKey.PubKey().SerializeCompressed())

	var (
		addr btcutil.Address
		err  error
	)
	switch typ {
	case addrP2TR:
		return taprootAddr(t, parentKey)

	case addrP2WPKH:
		addr, err = btcutil.NewAddressWitnessPubKeyHash(
			pubKeyHash, testParams,
		)

	case addrP2PKH:
		addr, err = btcutil.NewAddressPubKeyHash(pubKeyHash, testParams)

	case addrP2SH:
		redeem, rerr := txscript.NewScriptBuilder().
			AddOp(txscript.OP_0).AddData(pubKeyHash).Script()
		require.NoError(t, rerr)
		addr, err = btcutil.NewAddressScriptHash(redeem, testParams)

	case addrP2WSH:
		witnessScript := []byte{txscript.OP_TRUE}
		scriptHash := chainhash.HashB(witnessScript)
		addr, err = btcutil.NewAddressWitnessScriptHash(
			scriptHash, testParams,
		)
	}
	require.NoError(t, err)

	return addr
}

// parentFundingTx returns a transaction paying parentValue to addr at output
// 1.
func parentFundingTx(t testing.TB, addr btcutil.Address) *wire.MsgTx {
	t.Helper()

	pkScript, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 7}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000, []byte{txscript.OP_TRUE}))
	tx.AddTxOut(wire.NewTxOut(int64(parentValue), pkScript))

	return tx
}

// testOrder builds the single file order with a parent owned by an address of
// the given type.
func testOrder(t testing.TB, typ addrType) *Order {
	t.Helper()

	parentID, err := envelope.ParseParentRef(parentInscription)
	require.NoError(t, err)

	addr := parentAddr(t, typ)
	prevTx := parentFundingTx(t, addr)

	return &Order{
		Files: []InscribeFile{{
			DataURL: helloDataURL,
			Address: taprootAddr(t, destKey),
			Parent:  fn.Some(parentID),
		}},
		Value:   546,
		FeeRate: 2,
		PrivKey: orderKey,
		Parent: ParentReference{
			ID:      parentID,
			Value:   parentValue,
			Address: addr,
			OutPoint: wire.OutPoint{
				Hash:  prevTx.TxHash(),
				Index: 1,
			},
			PubKey: parentKey.PubKey(),
			RawTx:  fn.Some(prevTx),
		},
	}
}

// realOutputs returns two outputs of a fake commit transaction.
func realOutputs(value1, value2 btcutil.Amount) (SpendableOutput,
	SpendableOutput) {

	commitHash := chainhash.DoubleHashH([]byte("commit"))

	return SpendableOutput{
			OutPoint: wire.OutPoint{Hash: commitHash, Index: 0},
			Value:    value1,
		}, SpendableOutput{
			OutPoint: wire.OutPoint{Hash: commitHash, Index: 1},
			Value:    value2,
		}
}
