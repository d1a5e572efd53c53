package localsigner

import (
	"bytes"
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/ordkit/brc20mint/envelope"
	"github.com/ordkit/brc20mint/inscribe"
	"github.com/stretchr/testify/require"
)

var (
	testParams = &chaincfg.RegressionNetParams

	orderKey, _  = btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x0a}, 32))
	parentKey, _ = btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x0b}, 32))
	otherKey, _  = btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x0c}, 32))
)

// ownerAddrs returns the four supported addresses of a key.
func ownerAddrs(t *testing.T, key *btcec.PrivateKey) map[string]btcutil.Address {
	t.Helper()

	pubKeyHash := btcutil.Hash160(key.PubKey().SerializeCompressed())

	p2tr, err := btcutil.NewAddressTaproot(
		schnorr.SerializePubKey(
			txscript.ComputeTaprootOutputKey(key.PubKey(), nil),
		), testParams,
	)
	require.NoError(t, err)

	p2wpkh, err := btcutil.NewAddressWitnessPubKeyHash(
		pubKeyHash, testParams,
	)
	require.NoError(t, err)

	p2pkh, err := btcutil.NewAddressPubKeyHash(pubKeyHash, testParams)
	require.NoError(t, err)

	redeem, err := txscript.NewScriptBuilder().AddOp(txscript.OP_0).
		AddData(pubKeyHash).Script()
	require.NoError(t, err)
	p2sh, err := btcutil.NewAddressScriptHash(redeem, testParams)
	require.NoError(t, err)

	return map[string]btcutil.Address{
		"p2tr":        p2tr,
		"p2wpkh":      p2wpkh,
		"p2pkh":       p2pkh,
		"p2sh-p2wpkh": p2sh,
	}
}

// revealDraft assembles the reveal transaction of a one file order whose
// parent is held by addr.
func revealDraft(t *testing.T, addr btcutil.Address) *inscribe.Draft {
	t.Helper()

	pkScript, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	prevTx := wire.NewMsgTx(2)
	prevTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 3}, nil, nil))
	prevTx.AddTxOut(wire.NewTxOut(600, pkScript))

	dest := ownerAddrs(t, otherKey)["p2tr"]
	order := &inscribe.Order{
		Files: []inscribe.InscribeFile{{
			DataURL: "data:text/plain;charset=utf-8;base64,aGVsbG8=",
			Address: dest,
			Parent: fn.Some(envelope.InscriptionID{
				Txid: prevTx.TxHash(),
			}),
		}},
		Value:   546,
		FeeRate: 3,
		PrivKey: orderKey,
		Parent: inscribe.ParentReference{
			Value:    600,
			Address:  addr,
			OutPoint: wire.OutPoint{Hash: prevTx.TxHash()},
			PubKey:   parentKey.PubKey(),
			RawTx:    fn.Some(prevTx),
		},
	}

	commitHash := chainhash.DoubleHashH([]byte("commit tx"))
	draft, err := inscribe.NewAssembler(testParams).Assemble(
		order,
		inscribe.SpendableOutput{
			OutPoint: wire.OutPoint{Hash: commitHash, Index: 0},
			Value:    546,
		},
		inscribe.SpendableOutput{
			OutPoint: wire.OutPoint{Hash: commitHash, Index: 1},
			Value:    1050,
		},
	)
	require.NoError(t, err)

	return draft
}

// TestSignParentAndVerify signs the parent input for every owner type,
// finalizes the reveal and runs every input through the script engine.
func TestSignParentAndVerify(t *testing.T) {
	t.Parallel()

	for name, addr := range ownerAddrs(t, parentKey) {
		name, addr := name, addr
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			draft := revealDraft(t, addr)
			estimate, err := inscribe.EstimateRevealVSize(draft.Packet)
			require.NoError(t, err)

			raw, err := draft.Serialize()
			require.NoError(t, err)

			signed, err := New(parentKey).SignInput(
				context.Background(), raw, 1,
			)
			require.NoError(t, err)

			packet, err := inscribe.ParseDraft(signed)
			require.NoError(t, err)

			// Signing the parent must not disturb the local
			// signatures.
			require.Equal(
				t, draft.Packet.Inputs[2].TaprootKeySpendSig,
				packet.Inputs[2].TaprootKeySpendSig,
			)

			fetcher, err := inscribe.PrevOutFetcher(packet)
			require.NoError(t, err)

			tx, err := inscribe.Finalize(packet)
			require.NoError(t, err)

			sigHashes := txscript.NewTxSigHashes(tx, fetcher)
			for idx, txIn := range tx.TxIn {
				prevOut := fetcher.FetchPrevOutput(
					txIn.PreviousOutPoint,
				)
				vm, err := txscript.NewEngine(
					prevOut.PkScript, tx, idx,
					txscript.StandardVerifyFlags, nil,
					sigHashes, prevOut.Value, fetcher,
				)
				require.NoError(t, err)
				require.NoError(t, vm.Execute(), "input %d", idx)
			}

			// The parent value is forwarded in full: the fee is
			// paid by the bonus input alone.
			require.EqualValues(t, 600, tx.TxOut[1].Value)

			// The estimate is exact for schnorr signatures and an
			// upper bound a few bytes off for DER ones.
			vsize := mempool.GetTxVirtualSize(btcutil.NewTx(tx))
			if name == "p2tr" {
				require.Equal(t, estimate, vsize)
			} else {
				require.GreaterOrEqual(t, estimate, vsize)
				require.LessOrEqual(t, estimate-vsize, int64(3))
			}
		})
	}
}

// TestSignInputErrors covers key mismatches and bad indexes.
func TestSignInputErrors(t *testing.T) {
	t.Parallel()

	addrs := ownerAddrs(t, parentKey)
	ctx := context.Background()

	for _, name := range []string{"p2tr", "p2wpkh", "p2pkh", "p2sh-p2wpkh"} {
		raw, err := revealDraft(t, addrs[name]).Serialize()
		require.NoError(t, err)

		_, err = New(otherKey).SignInput(ctx, raw, 1)
		require.ErrorIs(t, err, ErrKeyMismatch, name)
	}

	raw, err := revealDraft(t, addrs["p2tr"]).Serialize()
	require.NoError(t, err)

	_, err = New(parentKey).SignInput(ctx, raw, 3)
	require.Error(t, err)

	// The envelope input is a script path spend.
	_, err = New(parentKey).SignInput(ctx, raw, 0)
	require.ErrorIs(t, err, ErrUnsupportedScript)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = New(parentKey).SignInput(canceled, raw, 1)
	require.ErrorIs(t, err, context.Canceled)
}
