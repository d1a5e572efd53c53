package funding

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txauthor"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/ordkit/brc20mint/chainfee"
	"github.com/ordkit/brc20mint/lnutils"
)

// RBFSequence signals replaceability on every commit input.
const RBFSequence uint32 = 0xfffffffd

// ErrUnknownAddress is returned when the wallet is asked for the key of an
// address it does not own.
var ErrUnknownAddress = errors.New("address not owned by wallet")

// ErrFeeTooLow is returned when a signed commit tx pays less than the
// configured fee rate for its final size.
var ErrFeeTooLow = errors.New("commit fee below fee rate")

// AddressType is the script type of a single key wallet.
type AddressType uint8

const (
	// TaprootPubkey is a BIP-86 P2TR address.
	TaprootPubkey AddressType = iota

	// WitnessPubKey is a P2WPKH address.
	WitnessPubKey

	// NestedWitnessPubKey is a P2SH-P2WPKH address.
	NestedWitnessPubKey

	// PubKeyHash is a legacy P2PKH address.
	PubKeyHash
)

// String returns the name used for the address type on the command line.
func (a AddressType) String() string {
	switch a {
	case TaprootPubkey:
		return "p2tr"
	case WitnessPubKey:
		return "p2wpkh"
	case NestedWitnessPubKey:
		return "np2wpkh"
	case PubKeyHash:
		return "p2pkh"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// ParseAddressType parses the command line name of an address type.
func ParseAddressType(s string) (AddressType, error) {
	switch strings.ToLower(s) {
	case "p2tr":
		return TaprootPubkey, nil
	case "p2wpkh":
		return WitnessPubKey, nil
	case "np2wpkh", "p2sh-p2wpkh":
		return NestedWitnessPubKey, nil
	case "p2pkh":
		return PubKeyHash, nil
	default:
		return 0, fmt.Errorf("unknown address type %q", s)
	}
}

// Config holds the parameters of a single key wallet.
type Config struct {
	// Key is the wallet key.
	Key *btcec.PrivateKey

	// AddrType selects the wallet address, which is also used for
	// change.
	AddrType AddressType

	// FeeRate is the fee rate of funding transactions.
	FeeRate chainfee.SatPerVByte

	// NetParams is the network the wallet lives on.
	NetParams *chaincfg.Params
}

// Wallet funds commit transactions from the coins of a single key. It performs
// no I/O: coins are handed in by the caller.
type Wallet struct {
	cfg Config

	addr     btcutil.Address
	pkScript []byte
}

// NewWallet derives the wallet address from its key.
func NewWallet(cfg Config) (*Wallet, error) {
	if cfg.Key == nil {
		return nil, errors.New("wallet key required")
	}

	addr, err := deriveAddress(cfg.Key.PubKey(), cfg.AddrType, cfg.NetParams)
	if err != nil {
		return nil, err
	}
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}

	return &Wallet{
		cfg:      cfg,
		addr:     addr,
		pkScript: pkScript,
	}, nil
}

func deriveAddress(pub *btcec.PublicKey, addrType AddressType,
	params *chaincfg.Params) (btcutil.Address, error) {

	pubKeyHash := btcutil.Hash160(pub.SerializeCompressed())

	switch addrType {
	case TaprootPubkey:
		outputKey := txscript.ComputeTaprootOutputKey(pub, nil)
		return btcutil.NewAddressTaproot(
			schnorr.SerializePubKey(outputKey), params,
		)

	case WitnessPubKey:
		return btcutil.NewAddressWitnessPubKeyHash(pubKeyHash, params)

	case NestedWitnessPubKey:
		redeem, err := nestedRedeemScript(pubKeyHash)
		if err != nil {
			return nil, err
		}
		return btcutil.NewAddressScriptHash(redeem, params)

	case PubKeyHash:
		return btcutil.NewAddressPubKeyHash(pubKeyHash, params)

	default:
		return nil, fmt.Errorf("unknown address type %v", addrType)
	}
}

func nestedRedeemScript(pubKeyHash []byte) ([]byte, error) {
	return txscript.NewScriptBuilder().AddOp(txscript.OP_0).
		AddData(pubKeyHash).Script()
}

// Address returns the wallet address, which also receives change.
func (w *Wallet) Address() btcutil.Address {
	return w.addr
}

// PubKey returns the wallet public key.
func (w *Wallet) PubKey() *btcec.PublicKey {
	return w.cfg.Key.PubKey()
}

// Fund builds and signs a transaction paying the given outputs, in order,
// from the wallet coins. Change, if above dust, is appended as the last
// output. Every input signals RBF.
func (w *Wallet) Fund(outputs []*wire.TxOut,
	coins []Coin) (*wire.MsgTx, error) {

	spendable := lnutils.Filter(coins, func(c Coin) bool {
		return !c.Inscribed && string(c.PkScript) == string(w.pkScript)
	})

	log.Debugf("Funding %d outputs from %d of %d wallet coins",
		len(outputs), len(spendable), len(coins))

	// All coin selection code in the btcwallet library requires sat/KB.
	feeRate := w.cfg.FeeRate.FeePerKVByte()
	relayFloor := chainfee.SatPerKVByte(txrules.DefaultRelayFeePerKb)
	if feeRate < relayFloor {
		feeRate = relayFloor
	}

	inputSource := func(target btcutil.Amount) (btcutil.Amount,
		[]*wire.TxIn, []btcutil.Amount, [][]byte, error) {

		total, selected, err := selectInputs(target, spendable)
		if err != nil {
			return 0, nil, nil, nil, err
		}

		txIns := make([]*wire.TxIn, 0, len(selected))
		values := make([]btcutil.Amount, 0, len(selected))
		scripts := make([][]byte, 0, len(selected))
		for _, coin := range selected {
			txIn := wire.NewTxIn(&coin.OutPoint, nil, nil)
			txIn.Sequence = RBFSequence

			txIns = append(txIns, txIn)
			values = append(values, coin.Value)
			scripts = append(scripts, coin.PkScript)
		}

		return total, txIns, values, scripts, nil
	}

	changeSource := &txauthor.ChangeSource{
		NewScript: func() ([]byte, error) {
			return w.pkScript, nil
		},
		ScriptSize: len(w.pkScript),
	}

	authored, err := txauthor.NewUnsignedTransaction(
		outputs, btcutil.Amount(feeRate), inputSource, changeSource,
	)
	if err != nil {
		return nil, err
	}

	err = txauthor.AddAllInputScripts(
		authored.Tx, authored.PrevScripts, authored.PrevInputValues,
		&secretSource{wallet: w},
	)
	if err != nil {
		return nil, fmt.Errorf("unable to sign commit tx: %w", err)
	}

	fee := authored.TotalInput
	for _, txOut := range authored.Tx.TxOut {
		fee -= btcutil.Amount(txOut.Value)
	}
	vsize := mempool.GetTxVirtualSize(btcutil.NewTx(authored.Tx))
	if minFee := feeRate.FeeForVSize(vsize); fee < minFee {
		return nil, fmt.Errorf("%w: commit tx pays %v, %v needs %v",
			ErrFeeTooLow, fee, feeRate, minFee)
	}

	log.Infof("Funded commit tx %v: %d inputs, total_in=%v, fee=%v "+
		"(%v), change=%v", authored.Tx.TxHash(), len(authored.Tx.TxIn),
		authored.TotalInput, fee, feeRate, authored.ChangeIndex >= 0)
	log.Tracef("Commit tx: %v", lnutils.TxHexLogClosure(authored.Tx))

	return authored.Tx, nil
}

// secretSource hands the wallet key to txauthor.
type secretSource struct {
	wallet *Wallet
}

// GetKey returns the wallet key for the wallet address.
func (s *secretSource) GetKey(addr btcutil.Address) (*btcec.PrivateKey,
	bool, error) {

	if addr.EncodeAddress() != s.wallet.addr.EncodeAddress() {
		return nil, false, fmt.Errorf("%w: %v", ErrUnknownAddress, addr)
	}

	return s.wallet.cfg.Key, true, nil
}

// GetScript returns the redeem script of a nested segwit wallet.
func (s *secretSource) GetScript(addr btcutil.Address) ([]byte, error) {
	if addr.EncodeAddress() != s.wallet.addr.EncodeAddress() ||
		s.wallet.cfg.AddrType != NestedWitnessPubKey {

		return nil, fmt.Errorf("%w: %v", ErrUnknownAddress, addr)
	}

	return nestedRedeemScript(
		btcutil.Hash160(s.wallet.cfg.Key.PubKey().SerializeCompressed()),
	)
}

// ChainParams returns the wallet network.
func (s *secretSource) ChainParams() *chaincfg.Params {
	return s.wallet.cfg.NetParams
}
