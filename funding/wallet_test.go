package funding

import (
	"bytes"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/ordkit/brc20mint/chainfee"
	"github.com/stretchr/testify/require"
)

var (
	gasKey, _ = btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x5a}, 32))

	// commitScript stands in for the commitment output script.
	commitScript = append(
		[]byte{txscript.OP_1, txscript.OP_DATA_32},
		bytes.Repeat([]byte{0x77}, 32)...,
	)
)

func newTestWallet(t *testing.T, addrType AddressType) *Wallet {
	t.Helper()

	w, err := NewWallet(Config{
		Key:       gasKey,
		AddrType:  addrType,
		FeeRate:   5,
		NetParams: &chaincfg.RegressionNetParams,
	})
	require.NoError(t, err)

	return w
}

func walletCoin(t *testing.T, w *Wallet, seed string,
	value btcutil.Amount) Coin {

	t.Helper()

	pkScript, err := txscript.PayToAddrScript(w.Address())
	require.NoError(t, err)

	return Coin{
		OutPoint: wire.OutPoint{
			Hash:  chainhash.DoubleHashH([]byte(seed)),
			Index: 2,
		},
		Value:    value,
		PkScript: pkScript,
	}
}

// TestFundAndVerify funds the two commitment outputs with every wallet type
// and runs the signed inputs through the script engine.
func TestFundAndVerify(t *testing.T) {
	t.Parallel()

	for _, addrType := range []AddressType{
		TaprootPubkey, WitnessPubKey, NestedWitnessPubKey, PubKeyHash,
	} {
		addrType := addrType
		t.Run(addrType.String(), func(t *testing.T) {
			t.Parallel()

			w := newTestWallet(t, addrType)
			coins := []Coin{
				walletCoin(t, w, "small", 800),
				walletCoin(t, w, "big", 50_000),
			}

			outputs := []*wire.TxOut{
				wire.NewTxOut(546, commitScript),
				wire.NewTxOut(700, commitScript),
			}
			tx, err := w.Fund(outputs, coins)
			require.NoError(t, err)

			// The largest coin covers everything alone.
			require.Len(t, tx.TxIn, 1)
			require.Equal(t, coins[1].OutPoint, tx.TxIn[0].PreviousOutPoint)
			require.Equal(t, RBFSequence, tx.TxIn[0].Sequence)

			// Commitment outputs stay first, change comes last.
			require.Len(t, tx.TxOut, 3)
			require.EqualValues(t, 546, tx.TxOut[0].Value)
			require.EqualValues(t, 700, tx.TxOut[1].Value)
			require.Equal(t, commitScript, tx.TxOut[0].PkScript)
			require.Equal(t, coins[1].PkScript, tx.TxOut[2].PkScript)

			fee := int64(coins[1].Value) - tx.TxOut[0].Value -
				tx.TxOut[1].Value - tx.TxOut[2].Value
			vsize := mempool.GetTxVirtualSize(btcutil.NewTx(tx))
			require.GreaterOrEqual(t, fee, 5*vsize)

			fetcher := txscript.NewCannedPrevOutputFetcher(
				coins[1].PkScript, int64(coins[1].Value),
			)
			vm, err := txscript.NewEngine(
				coins[1].PkScript, tx, 0,
				txscript.StandardVerifyFlags, nil,
				txscript.NewTxSigHashes(tx, fetcher),
				int64(coins[1].Value), fetcher,
			)
			require.NoError(t, err)
			require.NoError(t, vm.Execute())
		})
	}
}

// TestFundRelayFloor checks that a fee rate under the relay minimum is raised
// to it before the commit tx is funded.
func TestFundRelayFloor(t *testing.T) {
	t.Parallel()

	w, err := NewWallet(Config{
		Key:       gasKey,
		AddrType:  TaprootPubkey,
		FeeRate:   0,
		NetParams: &chaincfg.RegressionNetParams,
	})
	require.NoError(t, err)

	coin := walletCoin(t, w, "floor", 20_000)
	tx, err := w.Fund(
		[]*wire.TxOut{wire.NewTxOut(546, commitScript)}, []Coin{coin},
	)
	require.NoError(t, err)

	fee := int64(coin.Value)
	for _, txOut := range tx.TxOut {
		fee -= txOut.Value
	}
	vsize := mempool.GetTxVirtualSize(btcutil.NewTx(tx))
	floor := chainfee.SatPerKVByte(txrules.DefaultRelayFeePerKb)
	require.GreaterOrEqual(t, fee, int64(floor.FeeForVSize(vsize)))
	require.Positive(t, fee)
}

// TestFundSkipsCoins makes sure inscribed and foreign coins are never spent.
func TestFundSkipsCoins(t *testing.T) {
	t.Parallel()

	w := newTestWallet(t, WitnessPubKey)

	inscribed := walletCoin(t, w, "inscribed", 100_000)
	inscribed.Inscribed = true

	foreign := walletCoin(t, w, "foreign", 100_000)
	foreign.PkScript = commitScript

	outputs := []*wire.TxOut{wire.NewTxOut(546, commitScript)}

	_, err := w.Fund(outputs, []Coin{inscribed, foreign})
	var insufficient *ErrInsufficientFunds
	require.True(t, errors.As(err, &insufficient), err)
	require.Zero(t, insufficient.amountAvailable)

	spendable := walletCoin(t, w, "plain", 3_000)
	tx, err := w.Fund(outputs, []Coin{inscribed, foreign, spendable})
	require.NoError(t, err)
	require.Len(t, tx.TxIn, 1)
	require.Equal(t, spendable.OutPoint, tx.TxIn[0].PreviousOutPoint)
}

// TestSelectInputs checks the largest first selection.
func TestSelectInputs(t *testing.T) {
	t.Parallel()

	coins := []Coin{{Value: 100}, {Value: 500}, {Value: 300}}

	total, selected, err := selectInputs(600, coins)
	require.NoError(t, err)
	require.EqualValues(t, 800, total)
	require.Len(t, selected, 2)
	require.EqualValues(t, 500, selected[0].Value)
	require.EqualValues(t, 300, selected[1].Value)

	// The caller's slice keeps its order.
	require.EqualValues(t, 100, coins[0].Value)

	_, _, err = selectInputs(1000, coins)
	var insufficient *ErrInsufficientFunds
	require.True(t, errors.As(err, &insufficient))
	require.EqualValues(t, 900, insufficient.amountAvailable)
	require.Contains(t, err.Error(), "not enough outputs")
}

// TestParseAddressType round trips the command line names.
func TestParseAddressType(t *testing.T) {
	t.Parallel()

	for _, addrType := range []AddressType{
		TaprootPubkey, WitnessPubKey, NestedWitnessPubKey, PubKeyHash,
	} {
		parsed, err := ParseAddressType(addrType.String())
		require.NoError(t, err)
		require.Equal(t, addrType, parsed)
	}

	_, err := ParseAddressType("p2wsh")
	require.Error(t, err)
}

// TestSecretSource checks the key is only released for the wallet address.
func TestSecretSource(t *testing.T) {
	t.Parallel()

	w := newTestWallet(t, NestedWitnessPubKey)
	other := newTestWallet(t, WitnessPubKey)
	secrets := &secretSource{wallet: w}

	key, compressed, err := secrets.GetKey(w.Address())
	require.NoError(t, err)
	require.True(t, compressed)
	require.Equal(t, gasKey.Serialize(), key.Serialize())

	redeem, err := secrets.GetScript(w.Address())
	require.NoError(t, err)
	require.True(t, txscript.IsPayToWitnessPubKeyHash(redeem))

	_, _, err = secrets.GetKey(other.Address())
	require.ErrorIs(t, err, ErrUnknownAddress)
	_, err = (&secretSource{wallet: other}).GetScript(other.Address())
	require.ErrorIs(t, err, ErrUnknownAddress)
}
